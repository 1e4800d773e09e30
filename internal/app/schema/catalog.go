package schema

import (
	"sort"

	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/heap"
	"vela/internal/app/index/btree"
	"vela/internal/app/interfaces"
	"vela/internal/app/types"
)

type indexCacheKey struct {
	table string
	index string
}

// The schema catalog: bootstraps the reserved tables on cold start
// and hands out live relation and index objects by name, caching one
// instance per name until a catalog row for that name is inserted or
// deleted.
type Catalog struct {
	env        *file.DbEnv
	tables     *Tables
	columns    *Columns
	indices    *Indices
	tableCache map[string]interfaces.DbRelation
	indexCache map[indexCacheKey]interfaces.DbIndex
}

// NewCatalog opens the catalog, creating and seeding the schema
// tables on first use.
func NewCatalog(env *file.DbEnv) (*Catalog, error) {
	c := &Catalog{
		env:        env,
		tableCache: make(map[string]interfaces.DbRelation),
		indexCache: make(map[indexCacheKey]interfaces.DbIndex),
	}
	c.tables = newTables(env, c)
	c.columns = newColumns(env, c)
	c.indices = newIndices(env, c)

	if err := c.initializeSchemaTables(); err != nil {
		return nil, errors.Mark(err, types.ErrCatalog)
	}
	return c, nil
}

// initializeSchemaTables ensures _tables, _columns and _indices
// exist, seeding their own metadata rows when their files are first
// created.
func (c *Catalog) initializeSchemaTables() error {
	created, err := openOrCreate(c.tables.HeapTable)
	if err != nil {
		return err
	}
	if created {
		c.env.Log.Debug().Msg("seeding schema tables")
		for _, name := range []string{TablesTableName, ColumnsTableName, IndicesTableName} {
			row := types.ValueDict{
				"table_name":     types.TextValue(name),
				"storage_engine": types.TextValue("HEAP"),
			}
			if _, err := c.tables.HeapTable.Insert(row); err != nil {
				return err
			}
		}
	}

	created, err = openOrCreate(c.columns.HeapTable)
	if err != nil {
		return err
	}
	if created {
		seed := []struct {
			table  *heap.HeapTable
			target string
		}{
			{c.tables.HeapTable, TablesTableName},
			{c.columns.HeapTable, ColumnsTableName},
			{c.indices.HeapTable, IndicesTableName},
		}
		for _, s := range seed {
			names := s.table.ColumnNames()
			attrs := s.table.ColumnAttributes()
			for i, col := range names {
				row := types.ValueDict{
					"table_name":      types.TextValue(s.target),
					"column_name":     types.TextValue(col),
					"data_type":       types.TextValue(attrs[i].DataType.String()),
					"primary_key_seq": types.IntValue(0),
				}
				if _, err := c.columns.HeapTable.Insert(row); err != nil {
					return err
				}
			}
		}
	}

	_, err = openOrCreate(c.indices.HeapTable)
	return err
}

func openOrCreate(t *heap.HeapTable) (created bool, err error) {
	if err := t.Open(); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return true, t.Create()
		}
		return false, err
	}
	return false, nil
}

// Tables returns the _tables catalog relation.
func (c *Catalog) Tables() *Tables {
	return c.tables
}

// Columns returns the _columns catalog relation.
func (c *Catalog) Columns() *Columns {
	return c.columns
}

// Indices returns the _indices catalog relation.
func (c *Catalog) Indices() *Indices {
	return c.indices
}

// GetTable returns the relation registered under the name,
// constructing it from the catalog rows on a cache miss. The same
// instance is returned until a _tables or _columns row for the name
// is inserted or deleted, which drops it from the cache.
func (c *Catalog) GetTable(name string) (interfaces.DbRelation, error) {
	switch name {
	case TablesTableName:
		return c.tables, nil
	case ColumnsTableName:
		return c.columns, nil
	case IndicesTableName:
		return c.indices, nil
	}
	if rel, ok := c.tableCache[name]; ok {
		return rel, nil
	}

	columnNames, columnAttributes, primaryKey, err := c.tableColumns(name)
	if err != nil {
		return nil, err
	}
	engine, err := c.storageEngine(name)
	if err != nil {
		return nil, err
	}

	var rel interfaces.DbRelation
	if engine == "BTREE" {
		rel, err = btree.NewBTreeTable(c.env, name, columnNames, columnAttributes, primaryKey)
		if err != nil {
			return nil, err
		}
	} else {
		rel = heap.NewHeapTable(c.env, name, columnNames, columnAttributes, primaryKey)
	}
	c.tableCache[name] = rel
	return rel, nil
}

// GetIndex returns the index registered under (table, name),
// constructing it from the catalog rows on a cache miss.
func (c *Catalog) GetIndex(table, name string) (interfaces.DbIndex, error) {
	key := indexCacheKey{table: table, index: name}
	if idx, ok := c.indexCache[key]; ok {
		return idx, nil
	}

	where := types.ValueDict{
		"table_name": types.TextValue(table),
		"index_name": types.TextValue(name),
	}
	rows, err := c.matchRows(c.indices.HeapTable, where)
	if err != nil {
		return nil, errors.Mark(err, types.ErrCatalog)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(types.ErrNotFound, "no index %s on %s", name, table)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["seq_in_index"].N < rows[j]["seq_in_index"].N
	})
	keyColumns := make(types.ColumnNames, 0, len(rows))
	for _, row := range rows {
		keyColumns = append(keyColumns, row["column_name"].S)
	}
	if indexType := rows[0]["index_type"].S; indexType != "BTREE" {
		return nil, errors.Wrapf(types.ErrUnsupported, "index type %s", indexType)
	}

	rel, err := c.GetTable(table)
	if err != nil {
		return nil, err
	}
	idx, err := btree.NewBTreeIndex(c.env, rel, name, keyColumns, rows[0]["is_unique"].Bool())
	if err != nil {
		return nil, err
	}
	c.indexCache[key] = idx
	return idx, nil
}

// GetIndexNames returns the distinct index names on the table, in
// first-seen catalog order.
func (c *Catalog) GetIndexNames(table string) ([]string, error) {
	rows, err := c.matchRows(c.indices.HeapTable,
		types.ValueDict{"table_name": types.TextValue(table)})
	if err != nil {
		return nil, errors.Mark(err, types.ErrCatalog)
	}
	var names []string
	seen := make(map[string]bool)
	for _, row := range rows {
		name := row["index_name"].S
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// tableColumns reads the table's declared columns from _columns, in
// insertion order, along with the primary key in seq order.
func (c *Catalog) tableColumns(name string) (types.ColumnNames, types.ColumnAttributes, types.ColumnNames, error) {
	rows, err := c.matchRows(c.columns.HeapTable,
		types.ValueDict{"table_name": types.TextValue(name)})
	if err != nil {
		return nil, nil, nil, errors.Mark(err, types.ErrCatalog)
	}
	if len(rows) == 0 {
		return nil, nil, nil, errors.Wrapf(types.ErrNotFound, "unknown table %s", name)
	}

	var columnNames types.ColumnNames
	var columnAttributes types.ColumnAttributes
	type pkEntry struct {
		seq  int32
		name string
	}
	var pk []pkEntry
	for _, row := range rows {
		dt, err := types.DataTypeFromString(row["data_type"].S)
		if err != nil {
			return nil, nil, nil, errors.Mark(err, types.ErrCatalog)
		}
		columnNames = append(columnNames, row["column_name"].S)
		columnAttributes = append(columnAttributes, types.NewColumnAttribute(dt))
		if seq := row["primary_key_seq"].N; seq > 0 {
			pk = append(pk, pkEntry{seq: seq, name: row["column_name"].S})
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].seq < pk[j].seq })
	var primaryKey types.ColumnNames
	for _, e := range pk {
		primaryKey = append(primaryKey, e.name)
	}
	return columnNames, columnAttributes, primaryKey, nil
}

func (c *Catalog) storageEngine(name string) (string, error) {
	rows, err := c.matchRows(c.tables.HeapTable,
		types.ValueDict{"table_name": types.TextValue(name)})
	if err != nil {
		return "", errors.Mark(err, types.ErrCatalog)
	}
	if len(rows) == 0 {
		return "", errors.Wrapf(types.ErrCatalog,
			"table %s has columns but no _tables row", name)
	}
	return rows[0]["storage_engine"].S, nil
}

// matchRows scans the catalog table and projects the rows matching
// the conjunction, in handle order.
func (c *Catalog) matchRows(t *heap.HeapTable, where types.ValueDict) ([]types.ValueDict, error) {
	handles, err := t.Select()
	if err != nil {
		return nil, err
	}
	handles, err = t.Filter(handles, where)
	if err != nil {
		return nil, err
	}
	return interfaces.ProjectRows(t, handles, nil)
}

func (c *Catalog) invalidateTable(name string) {
	delete(c.tableCache, name)
	for key := range c.indexCache {
		if key.table == name {
			delete(c.indexCache, key)
		}
	}
}

func (c *Catalog) invalidateIndex(table, name string) {
	delete(c.indexCache, indexCacheKey{table: table, index: name})
}
