package heap

import (
	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/types"
)

// A relation stored in a heap file. Columns and their attributes are
// fixed at creation and kept in the schema catalog; tuples are
// marshalled against them in declared column order.
type HeapTable struct {
	tableName        string
	columnNames      types.ColumnNames
	columnAttributes types.ColumnAttributes
	primaryKey       types.ColumnNames
	file             *HeapFile
}

func NewHeapTable(env *file.DbEnv, tableName string, columnNames types.ColumnNames,
	columnAttributes types.ColumnAttributes, primaryKey types.ColumnNames) *HeapTable {
	return &HeapTable{
		tableName:        tableName,
		columnNames:      columnNames,
		columnAttributes: columnAttributes,
		primaryKey:       primaryKey,
		file:             NewHeapFile(env, tableName),
	}
}

func (t *HeapTable) Create() error {
	return t.file.Create()
}

func (t *HeapTable) CreateIfNotExists() error {
	if err := t.Open(); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return t.Create()
		}
		return err
	}
	return nil
}

func (t *HeapTable) Open() error {
	return t.file.Open()
}

func (t *HeapTable) Close() error {
	return t.file.Close()
}

func (t *HeapTable) Drop() error {
	return t.file.Drop()
}

// Insert validates the row against the schema and appends it to the
// last block, allocating a new block when the page is full.
func (t *HeapTable) Insert(row types.ValueDict) (types.Handle, error) {
	if err := t.Open(); err != nil {
		return types.Handle{}, err
	}
	full, err := t.validate(row)
	if err != nil {
		return types.Handle{}, err
	}
	return t.append(full)
}

// Update is a delete plus insert; the tuple gets a new handle.
func (t *HeapTable) Update(h types.Handle, newValues types.ValueDict) (types.Handle, error) {
	row, err := t.Project(h)
	if err != nil {
		return types.Handle{}, err
	}
	for name, v := range newValues {
		if !t.columnNames.Contains(name) {
			return types.Handle{}, errors.Wrapf(types.ErrInvalidArgument,
				"unknown column %s in %s", name, t.tableName)
		}
		row[name] = v
	}
	if err := t.Del(h); err != nil {
		return types.Handle{}, err
	}
	return t.Insert(row)
}

func (t *HeapTable) Del(h types.Handle) error {
	if err := t.Open(); err != nil {
		return err
	}
	block, err := t.file.Get(h.BlockID)
	if err != nil {
		return err
	}
	if err := block.Del(h.RecordID); err != nil {
		return err
	}
	return t.file.Put(block)
}

// Select yields every handle in (block ascending, record ascending)
// order.
func (t *HeapTable) Select() (types.Handles, error) {
	if err := t.Open(); err != nil {
		return nil, err
	}
	var handles types.Handles
	for _, blockID := range t.file.BlockIDs() {
		block, err := t.file.Get(blockID)
		if err != nil {
			return nil, err
		}
		for _, recordID := range block.IDs() {
			handles = append(handles, types.NewHandle(blockID, recordID))
		}
	}
	return handles, nil
}

// SelectWhere returns every handle; it is not authoritative
// filtering. Exact filtering is the executor's job, via Filter.
func (t *HeapTable) SelectWhere(where types.ValueDict) (types.Handles, error) {
	return t.Select()
}

// Filter keeps exactly the handles whose tuples satisfy the
// conjunction.
func (t *HeapTable) Filter(current types.Handles, where types.ValueDict) (types.Handles, error) {
	if len(where) == 0 {
		return current, nil
	}
	var out types.Handles
	for _, h := range current {
		ok, err := t.selected(h, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *HeapTable) selected(h types.Handle, where types.ValueDict) (bool, error) {
	row, err := t.Project(h)
	if err != nil {
		return false, err
	}
	for name, want := range where {
		got, ok := row[name]
		if !ok {
			return false, errors.Wrapf(types.ErrInvalidArgument,
				"unknown column %s in %s", name, t.tableName)
		}
		c, err := got.Compare(want)
		if err != nil {
			return false, errors.Mark(err, types.ErrSchemaViolation)
		}
		if c != 0 {
			return false, nil
		}
	}
	return true, nil
}

// Project reads and unmarshals the tuple at the handle.
func (t *HeapTable) Project(h types.Handle) (types.ValueDict, error) {
	if err := t.Open(); err != nil {
		return nil, err
	}
	block, err := t.file.Get(h.BlockID)
	if err != nil {
		return nil, err
	}
	data, err := block.Get(h.RecordID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.Wrapf(types.ErrNotFound,
			"record %d of block %d in %s", h.RecordID, h.BlockID, t.tableName)
	}
	return UnmarshalRow(data, t.columnNames, t.columnAttributes)
}

// ProjectNames returns the subset of the tuple named by names.
func (t *HeapTable) ProjectNames(h types.Handle, names types.ColumnNames) (types.ValueDict, error) {
	row, err := t.Project(h)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return row, nil
	}
	out := make(types.ValueDict, len(names))
	for _, name := range names {
		v, ok := row[name]
		if !ok {
			return nil, errors.Wrapf(types.ErrInvalidArgument,
				"unknown column %s in %s", name, t.tableName)
		}
		out[name] = v
	}
	return out, nil
}

func (t *HeapTable) ColumnNames() types.ColumnNames {
	return t.columnNames
}

func (t *HeapTable) ColumnAttributes() types.ColumnAttributes {
	return t.columnAttributes
}

// AttributesFor returns the attributes of the named columns, in the
// given order.
func (t *HeapTable) AttributesFor(names types.ColumnNames) (types.ColumnAttributes, error) {
	attrs := make(types.ColumnAttributes, 0, len(names))
	for _, name := range names {
		found := false
		for i, cn := range t.columnNames {
			if cn == name {
				attrs = append(attrs, t.columnAttributes[i])
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(types.ErrInvalidArgument,
				"unknown column %s in %s", name, t.tableName)
		}
	}
	return attrs, nil
}

func (t *HeapTable) TableName() string {
	return t.tableName
}

func (t *HeapTable) PrimaryKey() types.ColumnNames {
	return t.primaryKey
}

// File exposes the backing heap file.
func (t *HeapTable) File() *HeapFile {
	return t.file
}

// validate checks that every declared column appears in the row with
// the declared type, and drops extraneous entries.
func (t *HeapTable) validate(row types.ValueDict) (types.ValueDict, error) {
	full := make(types.ValueDict, len(t.columnNames))
	for i, name := range t.columnNames {
		v, ok := row[name]
		if !ok {
			return nil, errors.Wrapf(types.ErrInvalidArgument,
				"incorrect value: row is missing column %s", name)
		}
		if v.Type != t.columnAttributes[i].DataType {
			return nil, errors.Wrapf(types.ErrSchemaViolation,
				"column %s is %s, got %s", name, t.columnAttributes[i].DataType, v.Type)
		}
		full[name] = v
	}
	return full, nil
}

// append marshals the row and adds it to the last block, allocating
// a fresh block when the page reports no room.
func (t *HeapTable) append(row types.ValueDict) (types.Handle, error) {
	data, err := MarshalRow(row, t.columnNames, t.columnAttributes)
	if err != nil {
		return types.Handle{}, err
	}

	block, err := t.file.Get(t.file.Last())
	if err != nil {
		return types.Handle{}, err
	}
	recordID, err := block.Add(data)
	if errors.Is(err, types.ErrNoRoom) {
		block, err = t.file.GetNew()
		if err != nil {
			return types.Handle{}, err
		}
		recordID, err = block.Add(data)
	}
	if err != nil {
		return types.Handle{}, err
	}
	if err := t.file.Put(block); err != nil {
		return types.Handle{}, err
	}
	return types.NewHandle(block.ID(), recordID), nil
}
