package interfaces

import "vela/internal/app/types"

// The capability set of a stored relation. Implemented by heap
// tables, tree-organised tables and the catalog tables; the schema
// catalog hands these out by name.
type DbRelation interface {
	Create() error
	CreateIfNotExists() error
	Drop() error
	Open() error
	Close() error

	Insert(row types.ValueDict) (types.Handle, error)
	Update(h types.Handle, newValues types.ValueDict) (types.Handle, error)
	Del(h types.Handle) error

	// Select returns the handle of every tuple: in (block ascending,
	// record ascending) order for heap tables, in key-ascending order
	// for tree-organised tables.
	Select() (types.Handles, error)

	// SelectWhere returns candidate handles for the given
	// conjunction. Implementations may return supersets; callers
	// needing exact results filter with Filter.
	SelectWhere(where types.ValueDict) (types.Handles, error)

	// Filter keeps exactly the handles whose tuples satisfy the
	// conjunction.
	Filter(current types.Handles, where types.ValueDict) (types.Handles, error)

	Project(h types.Handle) (types.ValueDict, error)
	ProjectNames(h types.Handle, names types.ColumnNames) (types.ValueDict, error)

	ColumnNames() types.ColumnNames
	ColumnAttributes() types.ColumnAttributes
	AttributesFor(names types.ColumnNames) (types.ColumnAttributes, error)
	TableName() string
	PrimaryKey() types.ColumnNames
}

// ProjectRows projects every handle in order.
func ProjectRows(rel DbRelation, handles types.Handles, names types.ColumnNames) ([]types.ValueDict, error) {
	rows := make([]types.ValueDict, 0, len(handles))
	for _, h := range handles {
		var row types.ValueDict
		var err error
		if names == nil {
			row, err = rel.Project(h)
		} else {
			row, err = rel.ProjectNames(h, names)
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
