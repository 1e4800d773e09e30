package schema

import (
	"vela/internal/app/file"
	"vela/internal/app/heap"
	"vela/internal/app/types"
)

// The reserved, self-describing catalog tables.
const (
	TablesTableName  = "_tables"
	ColumnsTableName = "_columns"
	IndicesTableName = "_indices"
)

// IsSchemaTable reports whether name is one of the reserved catalog
// tables.
func IsSchemaTable(name string) bool {
	return name == TablesTableName || name == ColumnsTableName || name == IndicesTableName
}

// _tables(table_name TEXT, storage_engine TEXT): one row per
// relation, including the catalog tables themselves.
type Tables struct {
	*heap.HeapTable
	cat *Catalog
}

func newTables(env *file.DbEnv, cat *Catalog) *Tables {
	return &Tables{
		HeapTable: heap.NewHeapTable(env, TablesTableName,
			types.ColumnNames{"table_name", "storage_engine"},
			types.ColumnAttributes{
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.TEXT),
			}, nil),
		cat: cat,
	}
}

// Insert adds the row and invalidates any cached relation under
// that name.
func (t *Tables) Insert(row types.ValueDict) (types.Handle, error) {
	h, err := t.HeapTable.Insert(row)
	if err == nil {
		t.cat.invalidateTable(row["table_name"].S)
	}
	return h, err
}

// Del removes the row and invalidates the cached relation.
func (t *Tables) Del(h types.Handle) error {
	if row, err := t.HeapTable.Project(h); err == nil {
		t.cat.invalidateTable(row["table_name"].S)
	}
	return t.HeapTable.Del(h)
}

// _columns(table_name TEXT, column_name TEXT, data_type TEXT,
// primary_key_seq INT): one row per column, in declared order.
type Columns struct {
	*heap.HeapTable
	cat *Catalog
}

func newColumns(env *file.DbEnv, cat *Catalog) *Columns {
	return &Columns{
		HeapTable: heap.NewHeapTable(env, ColumnsTableName,
			types.ColumnNames{"table_name", "column_name", "data_type", "primary_key_seq"},
			types.ColumnAttributes{
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.INT),
			}, nil),
		cat: cat,
	}
}

func (t *Columns) Insert(row types.ValueDict) (types.Handle, error) {
	h, err := t.HeapTable.Insert(row)
	if err == nil {
		t.cat.invalidateTable(row["table_name"].S)
	}
	return h, err
}

func (t *Columns) Del(h types.Handle) error {
	if row, err := t.HeapTable.Project(h); err == nil {
		t.cat.invalidateTable(row["table_name"].S)
	}
	return t.HeapTable.Del(h)
}

// _indices(table_name TEXT, index_name TEXT, seq_in_index INT,
// column_name TEXT, index_type TEXT, is_unique BOOLEAN): one row per
// key column of every index.
type Indices struct {
	*heap.HeapTable
	cat *Catalog
}

func newIndices(env *file.DbEnv, cat *Catalog) *Indices {
	return &Indices{
		HeapTable: heap.NewHeapTable(env, IndicesTableName,
			types.ColumnNames{"table_name", "index_name", "seq_in_index", "column_name", "index_type", "is_unique"},
			types.ColumnAttributes{
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.INT),
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.TEXT),
				types.NewColumnAttribute(types.BOOLEAN),
			}, nil),
		cat: cat,
	}
}

func (t *Indices) Insert(row types.ValueDict) (types.Handle, error) {
	h, err := t.HeapTable.Insert(row)
	if err == nil {
		t.cat.invalidateIndex(row["table_name"].S, row["index_name"].S)
	}
	return h, err
}

func (t *Indices) Del(h types.Handle) error {
	if row, err := t.HeapTable.Project(h); err == nil {
		t.cat.invalidateIndex(row["table_name"].S, row["index_name"].S)
	}
	return t.HeapTable.Del(h)
}
