package exec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/app/file"
	"vela/internal/app/parse"
	"vela/internal/app/plan"
	"vela/internal/app/types"
)

func testEnv(t *testing.T) *file.DbEnv {
	t.Helper()
	return &file.DbEnv{Dir: t.TempDir(), Log: zerolog.Nop()}
}

func newExec(t *testing.T, env *file.DbEnv) *SQLExec {
	t.Helper()
	e, err := NewSQLExec(env)
	require.NoError(t, err)
	return e
}

func run(t *testing.T, e *SQLExec, sql string) *QueryResult {
	t.Helper()
	stmt, err := parse.Parse(sql)
	require.NoError(t, err, "parse %q", sql)
	result, err := e.Execute(stmt)
	require.NoError(t, err, "execute %q", sql)
	return result
}

func runErr(t *testing.T, e *SQLExec, sql string) error {
	t.Helper()
	stmt, err := parse.Parse(sql)
	require.NoError(t, err, "parse %q", sql)
	_, err = e.Execute(stmt)
	require.Error(t, err, "execute %q", sql)
	return err
}

func TestInsertSelectRoundTrip(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int, b text)")
	run(t, e, `insert into foo values (1, "hello")`)

	result := run(t, e, "select * from foo")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, types.ColumnNames{"a", "b"}, result.ColumnNames)
	assert.Equal(t, int32(1), result.Rows[0]["a"].N)
	assert.Equal(t, "hello", result.Rows[0]["b"].S)
	assert.Equal(t, "successfully returned 1 rows", result.Message)
}

func TestSelectSpillsAcrossBlocks(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int, b text)")
	payload := strings.Repeat("x", 100)
	for i := 0; i < 500; i++ {
		run(t, e, fmt.Sprintf(`insert into foo values (%d, %q)`, i, payload))
	}

	result := run(t, e, "select * from foo")
	assert.Len(t, result.Rows, 500)

	result = run(t, e, "select a from foo where a = 499")
	require.Len(t, result.Rows, 1)
	assert.Len(t, result.Rows[0], 1)
}

func TestIndexDrivenSelect(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int, b int)")
	run(t, e, "insert into foo values (12, 99)")
	run(t, e, "insert into foo values (88, 101)")
	for i := 0; i < 1000; i++ {
		run(t, e, fmt.Sprintf("insert into foo values (%d, %d)", 100+i, -i))
	}
	run(t, e, "create index fooIndex on foo using BTREE (a)")

	// The optimiser must rewrite the scan into an index lookup.
	table, err := e.catalog.GetTable("foo")
	require.NoError(t, err)
	p := plan.NewSelect(types.ValueDict{"a": types.IntValue(500)}, plan.NewTableScan(table))
	assert.Equal(t, plan.IndexLookup, p.Optimize(e.catalog).Type())

	result := run(t, e, "select a, b from foo where a = 500")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int32(500), result.Rows[0]["a"].N)
	assert.Equal(t, int32(-400), result.Rows[0]["b"].N)

	result = run(t, e, "select * from foo where a = 12")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int32(99), result.Rows[0]["b"].N)

	result = run(t, e, "select * from foo where a = 44")
	assert.Empty(t, result.Rows)
}

func TestInsertMaintainsIndices(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int, b int)")
	run(t, e, "create index fooIndex on foo using BTREE (a)")

	result := run(t, e, "insert into foo values (1, 2)")
	assert.Contains(t, result.Message, "1 indices")

	idx, err := e.catalog.GetIndex("foo", "fooIndex")
	require.NoError(t, err)
	handles, err := idx.Lookup(types.ValueDict{"a": types.IntValue(1)})
	require.NoError(t, err)
	assert.Len(t, handles, 1)

	// A duplicate key is rejected by the unique index.
	err = runErr(t, e, "insert into foo values (1, 3)")
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
}

func TestDeleteThroughIndices(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int, b int)")
	for i := 0; i < 10; i++ {
		run(t, e, fmt.Sprintf("insert into foo values (%d, %d)", i, i*10))
	}
	run(t, e, "create index fooIndex on foo using BTREE (a)")

	result := run(t, e, "delete from foo where a = 4")
	assert.Contains(t, result.Message, "deleted 1 rows")

	rows := run(t, e, "select * from foo")
	assert.Len(t, rows.Rows, 9)
	idx, err := e.catalog.GetIndex("foo", "fooIndex")
	require.NoError(t, err)
	handles, err := idx.Lookup(types.ValueDict{"a": types.IntValue(4)})
	require.NoError(t, err)
	assert.Empty(t, handles)

	result = run(t, e, "delete from foo")
	assert.Contains(t, result.Message, "deleted 9 rows")
	assert.Empty(t, run(t, e, "select * from foo").Rows)
}

func TestCreateTableRollsBackOnFailure(t *testing.T) {
	env := testEnv(t)
	e := newExec(t, env)

	// Pre-create the table's file so the exclusive create fails
	// after the catalog rows were inserted.
	require.NoError(t, os.WriteFile(filepath.Join(env.Dir, "t.db"), nil, 0644))
	err := runErr(t, e, "create table t (a int)")
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))

	// The compensations removed the _tables and _columns rows.
	assert.Empty(t, run(t, e, "show tables").Rows)
	assert.Empty(t, run(t, e, "show columns from t").Rows)
}

func TestCreateIndexRollsBackOnFailure(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int)")
	run(t, e, "insert into foo values (5)")
	run(t, e, "insert into foo values (5)")

	// The bulk build hits the duplicate and unwinds the catalog.
	err := runErr(t, e, "create index uniq on foo using BTREE (a)")
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
	assert.Empty(t, run(t, e, "show index from foo").Rows)
}

func TestCreateIndexValidatesColumns(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int)")
	err := runErr(t, e, "create index fx on foo using BTREE (nope)")
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestDropTableRemovesEverything(t *testing.T) {
	env := testEnv(t)
	e := newExec(t, env)
	run(t, e, "create table foo (a int, b text)")
	run(t, e, `insert into foo values (1, "x")`)
	run(t, e, "create index fx on foo using BTREE (a)")

	run(t, e, "drop table foo")
	assert.Empty(t, run(t, e, "show tables").Rows)
	assert.Empty(t, run(t, e, "show columns from foo").Rows)
	assert.Empty(t, run(t, e, "show index from foo").Rows)
	_, err := os.Stat(filepath.Join(env.Dir, "foo.db"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(env.Dir, "foo-fx.db"))
	assert.True(t, os.IsNotExist(err))

	err = runErr(t, e, "drop table _tables")
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
}

func TestDropIndex(t *testing.T) {
	env := testEnv(t)
	e := newExec(t, env)
	run(t, e, "create table foo (a int)")
	run(t, e, "create index fx on foo using BTREE (a)")
	require.Len(t, run(t, e, "show index from foo").Rows, 1)

	run(t, e, "drop index fx from foo")
	assert.Empty(t, run(t, e, "show index from foo").Rows)
	_, err := os.Stat(filepath.Join(env.Dir, "foo-fx.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestShowStatements(t *testing.T) {
	e := newExec(t, testEnv(t))
	assert.Empty(t, run(t, e, "show tables").Rows)

	run(t, e, "create table foo (a int, b text)")
	run(t, e, "create table bar (c boolean)")

	tables := run(t, e, "show tables")
	require.Len(t, tables.Rows, 2)
	var names []string
	for _, row := range tables.Rows {
		names = append(names, row["table_name"].S)
	}
	assert.ElementsMatch(t, []string{"foo", "bar"}, names)

	columns := run(t, e, "show columns from foo")
	require.Len(t, columns.Rows, 2)
	assert.Equal(t, "INT", columns.Rows[0]["data_type"].S)
	assert.Equal(t, "TEXT", columns.Rows[1]["data_type"].S)

	run(t, e, "create index fx on foo using BTREE (a)")
	index := run(t, e, "show index from foo")
	require.Len(t, index.Rows, 1)
	assert.Equal(t, "fx", index.Rows[0]["index_name"].S)
	assert.True(t, index.Rows[0]["is_unique"].Bool())
}

func TestBTreeTableThroughSQL(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table keyed (id int, name text, primary key (id))")

	tables := run(t, e, "show tables")
	require.Len(t, tables.Rows, 1)
	assert.Equal(t, "BTREE", tables.Rows[0]["storage_engine"].S)

	run(t, e, `insert into keyed values (2, "two")`)
	run(t, e, `insert into keyed values (1, "one")`)

	result := run(t, e, "select * from keyed")
	require.Len(t, result.Rows, 2)
	// Tree-organised tables scan in key order.
	assert.Equal(t, int32(1), result.Rows[0]["id"].N)
	assert.Equal(t, int32(2), result.Rows[1]["id"].N)

	result = run(t, e, `select name from keyed where id = 2`)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "two", result.Rows[0]["name"].S)

	err := runErr(t, e, `insert into keyed values (1, "dup")`)
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))

	run(t, e, "delete from keyed where id = 1")
	assert.Len(t, run(t, e, "select * from keyed").Rows, 1)
}

func TestCatalogSurvivesRestart(t *testing.T) {
	env := testEnv(t)
	e := newExec(t, env)
	run(t, e, "create table foo (a int)")
	run(t, e, "insert into foo values (3)")

	// A fresh executor over the same directory plays the part of a
	// process restart.
	restarted := newExec(t, env)
	tables := run(t, restarted, "show tables")
	require.Len(t, tables.Rows, 1)
	assert.Equal(t, "foo", tables.Rows[0]["table_name"].S)
	rows := run(t, restarted, "select * from foo")
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, int32(3), rows.Rows[0]["a"].N)
}

func TestInsertErrors(t *testing.T) {
	e := newExec(t, testEnv(t))
	run(t, e, "create table foo (a int, b text)")

	err := runErr(t, e, "insert into foo values (1)")
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
	err = runErr(t, e, `insert into foo values ("one", "two")`)
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
	err = runErr(t, e, `insert into nosuch values (1)`)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}
