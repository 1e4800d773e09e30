package btree

import (
	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/heap"
	"vela/internal/app/types"
)

// A relation stored entirely in a B+Tree keyed by its primary key;
// the table's own file holds the tree, and leaf values carry the
// marshalled non-key columns. Handles into a BTreeTable carry the
// tuple's key instead of a block/record pair.
type BTreeTable struct {
	btreeBase
	tableName        string
	columnNames      types.ColumnNames
	columnAttributes types.ColumnAttributes
	primaryKey       types.ColumnNames
	nonKeyNames      types.ColumnNames
	nonKeyAttrs      types.ColumnAttributes
}

func NewBTreeTable(env *file.DbEnv, tableName string, columnNames types.ColumnNames,
	columnAttributes types.ColumnAttributes, primaryKey types.ColumnNames) (*BTreeTable, error) {
	if len(primaryKey) == 0 {
		return nil, errors.Wrapf(types.ErrSchemaViolation,
			"table %s needs a primary key to use the BTREE engine", tableName)
	}

	t := &BTreeTable{
		tableName:        tableName,
		columnNames:      columnNames,
		columnAttributes: columnAttributes,
		primaryKey:       primaryKey,
	}
	profile := make([]types.DataType, 0, len(primaryKey))
	for _, name := range primaryKey {
		attr, err := t.attributeOf(name)
		if err != nil {
			return nil, err
		}
		profile = append(profile, attr.DataType)
	}
	for i, name := range columnNames {
		if !primaryKey.Contains(name) {
			t.nonKeyNames = append(t.nonKeyNames, name)
			t.nonKeyAttrs = append(t.nonKeyAttrs, columnAttributes[i])
		}
	}

	t.file = heap.NewHeapFile(env, tableName)
	t.profile = profile
	t.codec = rowCodec{names: t.nonKeyNames, attrs: t.nonKeyAttrs}
	t.closed = true
	return t, nil
}

func (t *BTreeTable) Create() error {
	return t.create()
}

func (t *BTreeTable) CreateIfNotExists() error {
	if err := t.Open(); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return t.Create()
		}
		return err
	}
	return nil
}

func (t *BTreeTable) Drop() error {
	return t.drop()
}

func (t *BTreeTable) Open() error {
	return t.open()
}

func (t *BTreeTable) Close() error {
	return t.close()
}

// Insert validates the row and stores its non-key columns under its
// primary key. A duplicate key is a schema violation.
func (t *BTreeTable) Insert(row types.ValueDict) (types.Handle, error) {
	if err := t.open(); err != nil {
		return types.Handle{}, err
	}
	full, err := t.validate(row)
	if err != nil {
		return types.Handle{}, err
	}
	kv, err := tkey(full, t.primaryKey, t.profile)
	if err != nil {
		return types.Handle{}, err
	}
	nonKey := make(types.ValueDict, len(t.nonKeyNames))
	for _, name := range t.nonKeyNames {
		nonKey[name] = full[name]
	}
	if err := t.insertKey(kv, leafValue{row: nonKey}); err != nil {
		return types.Handle{}, err
	}
	return types.KeyHandle(kv), nil
}

// Update is a delete plus insert; changing key columns moves the
// tuple and yields a new handle.
func (t *BTreeTable) Update(h types.Handle, newValues types.ValueDict) (types.Handle, error) {
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

func (t *BTreeTable) Del(h types.Handle) error {
	if err := t.open(); err != nil {
		return err
	}
	if h.Key == nil {
		return errors.Wrapf(types.ErrInvalidArgument,
			"handle into %s carries no key", t.tableName)
	}
	return t.delKey(h.Key)
}

// Select walks the leaf chain and yields a key handle per tuple, in
// key-ascending order.
func (t *BTreeTable) Select() (types.Handles, error) {
	if err := t.open(); err != nil {
		return nil, err
	}
	var handles types.Handles
	err := t.rangeScan(nil, nil, func(key types.KeyValue, _ leafValue) error {
		kv := make(types.KeyValue, len(key))
		copy(kv, key)
		handles = append(handles, types.KeyHandle(kv))
		return nil
	})
	return handles, err
}

// SelectWhere narrows to a point lookup when the conjunction binds
// the whole primary key; residual predicates are the caller's job.
func (t *BTreeTable) SelectWhere(where types.ValueDict) (types.Handles, error) {
	if err := t.open(); err != nil {
		return nil, err
	}
	for _, name := range t.primaryKey {
		if _, ok := where[name]; !ok {
			return t.Select()
		}
	}
	kv, err := tkey(where, t.primaryKey, t.profile)
	if err != nil {
		return nil, err
	}
	_, found, err := t.lookupKey(kv)
	if err != nil {
		return nil, err
	}
	if !found {
		return types.Handles{}, nil
	}
	return types.Handles{types.KeyHandle(kv)}, nil
}

// Filter keeps exactly the handles whose tuples satisfy the
// conjunction.
func (t *BTreeTable) Filter(current types.Handles, where types.ValueDict) (types.Handles, error) {
	if len(where) == 0 {
		return current, nil
	}
	var out types.Handles
	for _, h := range current {
		row, err := t.Project(h)
		if err != nil {
			return nil, err
		}
		match := true
		for name, want := range where {
			got, ok := row[name]
			if !ok {
				return nil, errors.Wrapf(types.ErrInvalidArgument,
					"unknown column %s in %s", name, t.tableName)
			}
			c, err := got.Compare(want)
			if err != nil {
				return nil, errors.Mark(err, types.ErrSchemaViolation)
			}
			if c != 0 {
				match = false
				break
			}
		}
		if match {
			out = append(out, h)
		}
	}
	return out, nil
}

// Project resolves the handle's key in the tree and reassembles the
// full tuple from the leaf value and the key itself.
func (t *BTreeTable) Project(h types.Handle) (types.ValueDict, error) {
	if err := t.open(); err != nil {
		return nil, err
	}
	if h.Key == nil {
		return nil, errors.Wrapf(types.ErrInvalidArgument,
			"handle into %s carries no key", t.tableName)
	}
	value, found, err := t.lookupKey(h.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(types.ErrNotFound, "key %v in %s", h.Key, t.tableName)
	}
	row := value.row.Clone()
	for i, name := range t.primaryKey {
		row[name] = h.Key[i]
	}
	return row, nil
}

func (t *BTreeTable) ProjectNames(h types.Handle, names types.ColumnNames) (types.ValueDict, error) {
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

func (t *BTreeTable) ColumnNames() types.ColumnNames {
	return t.columnNames
}

func (t *BTreeTable) ColumnAttributes() types.ColumnAttributes {
	return t.columnAttributes
}

func (t *BTreeTable) AttributesFor(names types.ColumnNames) (types.ColumnAttributes, error) {
	attrs := make(types.ColumnAttributes, 0, len(names))
	for _, name := range names {
		attr, err := t.attributeOf(name)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func (t *BTreeTable) TableName() string {
	return t.tableName
}

func (t *BTreeTable) PrimaryKey() types.ColumnNames {
	return t.primaryKey
}

func (t *BTreeTable) attributeOf(name string) (types.ColumnAttribute, error) {
	for i, cn := range t.columnNames {
		if cn == name {
			return t.columnAttributes[i], nil
		}
	}
	return types.ColumnAttribute{}, errors.Wrapf(types.ErrInvalidArgument,
		"unknown column %s in %s", name, t.tableName)
}

func (t *BTreeTable) validate(row types.ValueDict) (types.ValueDict, error) {
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
