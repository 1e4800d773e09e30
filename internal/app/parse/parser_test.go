package parse

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/app/types"
)

func TestParseCanonicalForms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "create table",
			input: "create table foo (a int, b text)",
			want:  "CREATE TABLE foo (a INT, b TEXT)",
		},
		{
			name:  "create table if not exists with primary key",
			input: "CREATE TABLE IF NOT EXISTS foo (a INT, b BOOLEAN, PRIMARY KEY (a))",
			want:  "CREATE TABLE IF NOT EXISTS foo (a INT, b BOOLEAN, PRIMARY KEY (a))",
		},
		{
			name:  "create index defaults to btree",
			input: "create index fx on foo (a, b)",
			want:  "CREATE INDEX fx ON foo USING BTREE (a, b)",
		},
		{
			name:  "create index using",
			input: "create index fx on foo using BTREE (a)",
			want:  "CREATE INDEX fx ON foo USING BTREE (a)",
		},
		{
			name:  "drop table",
			input: "drop table foo",
			want:  "DROP TABLE foo",
		},
		{
			name:  "drop index",
			input: "drop index fx from foo",
			want:  "DROP INDEX fx FROM foo",
		},
		{
			name:  "show tables",
			input: "show tables",
			want:  "SHOW TABLES",
		},
		{
			name:  "show columns",
			input: "show columns from _tables",
			want:  "SHOW COLUMNS FROM _tables",
		},
		{
			name:  "show index",
			input: "show index from foo",
			want:  "SHOW INDEX FROM foo",
		},
		{
			name:  "insert",
			input: `insert into foo values (1, "hello")`,
			want:  `INSERT INTO foo VALUES (1, "hello")`,
		},
		{
			name:  "insert with columns and negative int",
			input: `insert into foo (a, b) values (-42, true)`,
			want:  `INSERT INTO foo (a, b) VALUES (-42, true)`,
		},
		{
			name:  "delete",
			input: "delete from foo where a = 1",
			want:  "DELETE FROM foo WHERE a = 1",
		},
		{
			name:  "delete without where",
			input: "delete from foo",
			want:  "DELETE FROM foo",
		},
		{
			name:  "select star",
			input: "select * from foo",
			want:  "SELECT * FROM foo",
		},
		{
			name:  "select with conjunction",
			input: `select a, b from foo where a = 1 and b = "x"`,
			want:  `SELECT a, b FROM foo WHERE a = 1 AND b = "x"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.String())
		})
	}
}

func TestParseStatementShapes(t *testing.T) {
	stmt, err := Parse("create table t (a int, b text, primary key (b, a))")
	require.NoError(t, err)
	create := stmt.(*CreateTableStatement)
	assert.Equal(t, "t", create.TableName)
	assert.Equal(t, types.ColumnNames{"b", "a"}, create.PrimaryKey)
	require.Len(t, create.Columns, 2)
	assert.Equal(t, types.INT, create.Columns[0].Type)
	assert.Equal(t, types.TEXT, create.Columns[1].Type)

	stmt, err = Parse(`select * from foo where a = 3 and b = "s"`)
	require.NoError(t, err)
	sel := stmt.(*SelectStatement)
	assert.True(t, sel.Star)
	conj := sel.Where.Conjunction()
	assert.Equal(t, types.IntValue(3), conj["a"])
	assert.Equal(t, types.TextValue("s"), conj["b"])
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"frobnicate the database",
		"select from foo",
		"select * foo",
		"insert into foo values 1",
		"create table foo",
		"create table foo (a int) garbage",
		"delete foo",
		"show me the money",
		`select * from foo where a > 1`,
		`select * from foo where a = b`,
	}
	for _, input := range inputs {
		_, err := Parse(input)
		assert.Error(t, err, "input %q", input)
		if err != nil {
			assert.True(t, errors.Is(err, types.ErrInvalidArgument), "input %q", input)
		}
	}
}
