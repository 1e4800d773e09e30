package exec

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/interfaces"
	"vela/internal/app/parse"
	"vela/internal/app/plan"
	"vela/internal/app/schema"
	"vela/internal/app/types"
)

// The typed result of one statement: a result set for SELECT and
// SHOW, or just a message for everything else.
type QueryResult struct {
	ColumnNames      types.ColumnNames
	ColumnAttributes types.ColumnAttributes
	Rows             []types.ValueDict
	Message          string
}

func messageResult(format string, args ...interface{}) *QueryResult {
	return &QueryResult{Message: fmt.Sprintf(format, args...)}
}

// Translates parsed statements into catalog mutations and evaluation
// plans.
type SQLExec struct {
	env     *file.DbEnv
	catalog *schema.Catalog
}

// NewSQLExec opens the catalog, bootstrapping the schema tables on
// first use.
func NewSQLExec(env *file.DbEnv) (*SQLExec, error) {
	catalog, err := schema.NewCatalog(env)
	if err != nil {
		return nil, err
	}
	return &SQLExec{env: env, catalog: catalog}, nil
}

// Catalog exposes the live catalog, mainly to the shell's self-tests.
func (e *SQLExec) Catalog() *schema.Catalog {
	return e.catalog
}

// Execute dispatches one parsed statement.
func (e *SQLExec) Execute(stmt parse.Statement) (*QueryResult, error) {
	e.env.Log.Debug().Stringer("statement", stmt).Msg("executing")
	switch s := stmt.(type) {
	case *parse.CreateTableStatement:
		return e.createTable(s)
	case *parse.CreateIndexStatement:
		return e.createIndex(s)
	case *parse.DropTableStatement:
		return e.dropTable(s)
	case *parse.DropIndexStatement:
		return e.dropIndex(s)
	case *parse.ShowStatement:
		return e.show(s)
	case *parse.InsertStatement:
		return e.insert(s)
	case *parse.DeleteStatement:
		return e.delete(s)
	case *parse.SelectStatement:
		return e.selectStatement(s)
	}
	return nil, errors.Wrapf(types.ErrUnsupported, "statement %T", stmt)
}

// CREATE TABLE: one row into _tables, one per column into _columns,
// then create the relation. Failures unwind the catalog rows in
// reverse, best effort, without masking the original error.
func (e *SQLExec) createTable(s *parse.CreateTableStatement) (*QueryResult, error) {
	if s.IfNotExists {
		if _, err := e.catalog.GetTable(s.TableName); err == nil {
			return messageResult("%s already exists", s.TableName), nil
		}
	}

	engine := "HEAP"
	if len(s.PrimaryKey) > 0 {
		engine = "BTREE"
	}
	columnNames := make(types.ColumnNames, 0, len(s.Columns))
	for _, col := range s.Columns {
		columnNames = append(columnNames, col.Name)
	}
	for _, pk := range s.PrimaryKey {
		if !columnNames.Contains(pk) {
			return nil, errors.Wrapf(types.ErrInvalidArgument,
				"primary key column %s is not a column of %s", pk, s.TableName)
		}
	}

	tHandle, err := e.catalog.Tables().Insert(types.ValueDict{
		"table_name":     types.TextValue(s.TableName),
		"storage_engine": types.TextValue(engine),
	})
	if err != nil {
		return nil, err
	}

	var cHandles types.Handles
	insertColumns := func() error {
		for _, col := range s.Columns {
			pkSeq := int32(0)
			for i, pk := range s.PrimaryKey {
				if pk == col.Name {
					pkSeq = int32(i + 1)
					break
				}
			}
			h, err := e.catalog.Columns().Insert(types.ValueDict{
				"table_name":      types.TextValue(s.TableName),
				"column_name":     types.TextValue(col.Name),
				"data_type":       types.TextValue(col.Type.String()),
				"primary_key_seq": types.IntValue(pkSeq),
			})
			if err != nil {
				return err
			}
			cHandles = append(cHandles, h)
		}

		table, err := e.catalog.GetTable(s.TableName)
		if err != nil {
			return err
		}
		if s.IfNotExists {
			return table.CreateIfNotExists()
		}
		return table.Create()
	}

	if err := insertColumns(); err != nil {
		// Compensate in reverse; a failing compensation must not
		// mask the original error.
		for _, h := range cHandles {
			if derr := e.catalog.Columns().Del(h); derr != nil {
				e.env.Log.Error().Err(derr).Msg("could not unwind _columns row")
			}
		}
		if derr := e.catalog.Tables().Del(tHandle); derr != nil {
			e.env.Log.Error().Err(derr).Msg("could not unwind _tables row")
		}
		return nil, err
	}
	return messageResult("created %s", s.TableName), nil
}

// CREATE INDEX: one row per key column into _indices, then build the
// index, unwinding the rows on failure.
func (e *SQLExec) createIndex(s *parse.CreateIndexStatement) (*QueryResult, error) {
	table, err := e.catalog.GetTable(s.TableName)
	if err != nil {
		return nil, err
	}
	if len(table.PrimaryKey()) > 0 {
		return nil, errors.Wrapf(types.ErrUnsupported,
			"secondary indices on tree-organised table %s", s.TableName)
	}
	tableColumns := table.ColumnNames()
	for _, col := range s.Columns {
		if !tableColumns.Contains(col) {
			return nil, errors.Wrapf(types.ErrInvalidArgument,
				"column %s does not exist in %s", col, s.TableName)
		}
	}

	indexType := strings.ToUpper(s.IndexType)
	isUnique := indexType == "BTREE"
	var iHandles types.Handles
	buildIndex := func() error {
		for seq, col := range s.Columns {
			h, err := e.catalog.Indices().Insert(types.ValueDict{
				"table_name":   types.TextValue(s.TableName),
				"index_name":   types.TextValue(s.IndexName),
				"seq_in_index": types.IntValue(int32(seq + 1)),
				"column_name":  types.TextValue(col),
				"index_type":   types.TextValue(indexType),
				"is_unique":    types.BoolValue(isUnique),
			})
			if err != nil {
				return err
			}
			iHandles = append(iHandles, h)
		}

		index, err := e.catalog.GetIndex(s.TableName, s.IndexName)
		if err != nil {
			return err
		}
		return index.Create()
	}

	if err := buildIndex(); err != nil {
		for _, h := range iHandles {
			if derr := e.catalog.Indices().Del(h); derr != nil {
				e.env.Log.Error().Err(derr).Msg("could not unwind _indices row")
			}
		}
		return nil, err
	}
	return messageResult("created index %s", s.IndexName), nil
}

// DROP TABLE: drop every index, delete the _indices and _columns
// rows, drop the relation, delete the _tables row.
func (e *SQLExec) dropTable(s *parse.DropTableStatement) (*QueryResult, error) {
	if schema.IsSchemaTable(s.TableName) {
		return nil, errors.Wrap(types.ErrSchemaViolation, "cannot drop a schema table")
	}
	table, err := e.catalog.GetTable(s.TableName)
	if err != nil {
		return nil, err
	}
	where := types.ValueDict{"table_name": types.TextValue(s.TableName)}

	indexNames, err := e.catalog.GetIndexNames(s.TableName)
	if err != nil {
		return nil, err
	}
	for _, name := range indexNames {
		index, err := e.catalog.GetIndex(s.TableName, name)
		if err != nil {
			return nil, err
		}
		if err := index.Drop(); err != nil {
			return nil, err
		}
	}
	if err := e.deleteMatching(e.catalog.Indices(), where); err != nil {
		return nil, err
	}

	if err := e.deleteMatching(e.catalog.Columns(), where); err != nil {
		return nil, err
	}

	if err := table.Drop(); err != nil {
		return nil, err
	}

	if err := e.deleteMatching(e.catalog.Tables(), where); err != nil {
		return nil, err
	}
	return messageResult("dropped %s", s.TableName), nil
}

// DROP INDEX: drop the index file and delete its _indices rows.
func (e *SQLExec) dropIndex(s *parse.DropIndexStatement) (*QueryResult, error) {
	index, err := e.catalog.GetIndex(s.TableName, s.IndexName)
	if err != nil {
		return nil, err
	}
	if err := index.Drop(); err != nil {
		return nil, err
	}

	where := types.ValueDict{
		"table_name": types.TextValue(s.TableName),
		"index_name": types.TextValue(s.IndexName),
	}
	if err := e.deleteMatching(e.catalog.Indices(), where); err != nil {
		return nil, err
	}
	return messageResult("dropped index %s", s.IndexName), nil
}

func (e *SQLExec) show(s *parse.ShowStatement) (*QueryResult, error) {
	switch s.Type {
	case parse.ShowTables:
		return e.showTables()
	case parse.ShowColumns:
		return e.showColumns(s.TableName)
	}
	return e.showIndex(s.TableName)
}

// SHOW TABLES: every _tables row except the schema tables.
func (e *SQLExec) showTables() (*QueryResult, error) {
	tables := e.catalog.Tables()
	columnNames := types.ColumnNames{"table_name", "storage_engine"}

	handles, err := tables.Select()
	if err != nil {
		return nil, err
	}
	var rows []types.ValueDict
	for _, h := range handles {
		row, err := tables.ProjectNames(h, columnNames)
		if err != nil {
			return nil, err
		}
		if !schema.IsSchemaTable(row["table_name"].S) {
			rows = append(rows, row)
		}
	}
	attrs, _ := tables.AttributesFor(columnNames)
	return &QueryResult{
		ColumnNames:      columnNames,
		ColumnAttributes: attrs,
		Rows:             rows,
		Message:          fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

// SHOW COLUMNS FROM t: the _columns rows for the table.
func (e *SQLExec) showColumns(tableName string) (*QueryResult, error) {
	columns := e.catalog.Columns()
	columnNames := types.ColumnNames{"table_name", "column_name", "data_type", "primary_key_seq"}

	rows, err := e.matching(columns, types.ValueDict{"table_name": types.TextValue(tableName)}, columnNames)
	if err != nil {
		return nil, err
	}
	attrs, _ := columns.AttributesFor(columnNames)
	return &QueryResult{
		ColumnNames:      columnNames,
		ColumnAttributes: attrs,
		Rows:             rows,
		Message:          fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

// SHOW INDEX FROM t: the _indices rows for the table.
func (e *SQLExec) showIndex(tableName string) (*QueryResult, error) {
	indices := e.catalog.Indices()
	columnNames := types.ColumnNames{"table_name", "index_name", "column_name", "seq_in_index", "index_type", "is_unique"}

	rows, err := e.matching(indices, types.ValueDict{"table_name": types.TextValue(tableName)}, columnNames)
	if err != nil {
		return nil, err
	}
	attrs, _ := indices.AttributesFor(columnNames)
	return &QueryResult{
		ColumnNames:      columnNames,
		ColumnAttributes: attrs,
		Rows:             rows,
		Message:          fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

// INSERT: build the row from the literals, insert into the table,
// then into every index on the table.
func (e *SQLExec) insert(s *parse.InsertStatement) (*QueryResult, error) {
	table, err := e.catalog.GetTable(s.TableName)
	if err != nil {
		return nil, err
	}

	columnNames := s.Columns
	if len(columnNames) == 0 {
		columnNames = table.ColumnNames()
	}
	if len(s.Values) != len(columnNames) {
		return nil, errors.Wrapf(types.ErrInvalidArgument,
			"%d values for %d columns", len(s.Values), len(columnNames))
	}
	row := make(types.ValueDict, len(columnNames))
	for i, name := range columnNames {
		row[name] = s.Values[i]
	}

	handle, err := table.Insert(row)
	if err != nil {
		return nil, err
	}

	indexNames, err := e.catalog.GetIndexNames(s.TableName)
	if err != nil {
		return nil, err
	}
	for _, name := range indexNames {
		index, err := e.catalog.GetIndex(s.TableName, name)
		if err != nil {
			return nil, err
		}
		if err := index.Insert(handle); err != nil {
			return nil, err
		}
	}

	msg := fmt.Sprintf("successfully inserted 1 row into %s", s.TableName)
	if len(indexNames) > 0 {
		msg += fmt.Sprintf(" and %d indices", len(indexNames))
	}
	return messageResult("%s", msg), nil
}

// DELETE: pipeline the optimised plan, then delete each handle from
// every index first and the table second.
func (e *SQLExec) delete(s *parse.DeleteStatement) (*QueryResult, error) {
	table, err := e.catalog.GetTable(s.TableName)
	if err != nil {
		return nil, err
	}

	p := plan.NewTableScan(table)
	if s.Where != nil {
		p = plan.NewSelect(s.Where.Conjunction(), p)
	}
	_, handles, err := p.Optimize(e.catalog).Pipeline()
	if err != nil {
		return nil, err
	}

	indexNames, err := e.catalog.GetIndexNames(s.TableName)
	if err != nil {
		return nil, err
	}
	for _, h := range handles {
		for _, name := range indexNames {
			index, err := e.catalog.GetIndex(s.TableName, name)
			if err != nil {
				return nil, err
			}
			if err := index.Del(h); err != nil {
				return nil, err
			}
		}
		if err := table.Del(h); err != nil {
			return nil, err
		}
	}

	msg := fmt.Sprintf("successfully deleted %d rows from %s", len(handles), s.TableName)
	if len(indexNames) > 0 {
		msg += fmt.Sprintf(" and %d indices", len(indexNames))
	}
	return messageResult("%s", msg), nil
}

// SELECT: wrap a TableScan in Select and Project nodes, optimise,
// evaluate.
func (e *SQLExec) selectStatement(s *parse.SelectStatement) (*QueryResult, error) {
	table, err := e.catalog.GetTable(s.TableName)
	if err != nil {
		return nil, err
	}

	p := plan.NewTableScan(table)
	if s.Where != nil {
		p = plan.NewSelect(s.Where.Conjunction(), p)
	}

	var columnNames types.ColumnNames
	var attrs types.ColumnAttributes
	if s.Star {
		columnNames = table.ColumnNames()
		attrs = table.ColumnAttributes()
		p = plan.NewProjectAll(p)
	} else {
		columnNames = s.Columns
		if attrs, err = table.AttributesFor(columnNames); err != nil {
			return nil, err
		}
		p = plan.NewProject(columnNames, p)
	}

	rows, err := p.Optimize(e.catalog).Evaluate()
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		ColumnNames:      columnNames,
		ColumnAttributes: attrs,
		Rows:             rows,
		Message:          fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

// matching projects the catalog rows satisfying the conjunction.
func (e *SQLExec) matching(rel interfaces.DbRelation, where types.ValueDict, names types.ColumnNames) ([]types.ValueDict, error) {
	handles, err := rel.Select()
	if err != nil {
		return nil, err
	}
	handles, err = rel.Filter(handles, where)
	if err != nil {
		return nil, err
	}
	return interfaces.ProjectRows(rel, handles, names)
}

// deleteMatching removes every catalog row satisfying the
// conjunction.
func (e *SQLExec) deleteMatching(rel interfaces.DbRelation, where types.ValueDict) error {
	handles, err := rel.Select()
	if err != nil {
		return err
	}
	handles, err = rel.Filter(handles, where)
	if err != nil {
		return err
	}
	for _, h := range handles {
		if err := rel.Del(h); err != nil {
			return err
		}
	}
	return nil
}
