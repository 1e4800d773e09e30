package heap

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/app/file"
	"vela/internal/app/types"
)

func testEnv(t *testing.T) *file.DbEnv {
	t.Helper()
	return &file.DbEnv{Dir: t.TempDir(), Log: zerolog.Nop()}
}

func newFooTable(t *testing.T, env *file.DbEnv) *HeapTable {
	t.Helper()
	table := NewHeapTable(env, "foo",
		types.ColumnNames{"a", "b"},
		types.ColumnAttributes{
			types.NewColumnAttribute(types.INT),
			types.NewColumnAttribute(types.TEXT),
		}, nil)
	require.NoError(t, table.Create())
	return table
}

func TestMarshalRowRoundTrip(t *testing.T) {
	names := types.ColumnNames{"n", "s", "flag"}
	attrs := types.ColumnAttributes{
		types.NewColumnAttribute(types.INT),
		types.NewColumnAttribute(types.TEXT),
		types.NewColumnAttribute(types.BOOLEAN),
	}
	rows := []types.ValueDict{
		{"n": types.IntValue(1), "s": types.TextValue("hello"), "flag": types.BoolValue(true)},
		{"n": types.IntValue(-42), "s": types.TextValue(""), "flag": types.BoolValue(false)},
		{"n": types.IntValue(0), "s": types.TextValue(strings.Repeat("x", 999)), "flag": types.BoolValue(true)},
	}
	for _, row := range rows {
		data, err := MarshalRow(row, names, attrs)
		require.NoError(t, err)
		got, err := UnmarshalRow(data, names, attrs)
		require.NoError(t, err)
		assert.Equal(t, row, got)
	}
}

func TestMarshalRowRejectsTypeMismatch(t *testing.T) {
	names := types.ColumnNames{"n"}
	attrs := types.ColumnAttributes{types.NewColumnAttribute(types.INT)}
	_, err := MarshalRow(types.ValueDict{"n": types.TextValue("nope")}, names, attrs)
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
}

func TestHeapTableInsertSelectProject(t *testing.T) {
	table := newFooTable(t, testEnv(t))

	h, err := table.Insert(types.ValueDict{
		"a": types.IntValue(1),
		"b": types.TextValue("hello"),
	})
	require.NoError(t, err)

	handles, err := table.Select()
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, h, handles[0])

	row, err := table.Project(h)
	require.NoError(t, err)
	assert.Equal(t, int32(1), row["a"].N)
	assert.Equal(t, "hello", row["b"].S)

	partial, err := table.ProjectNames(h, types.ColumnNames{"b"})
	require.NoError(t, err)
	assert.Len(t, partial, 1)
	assert.Equal(t, "hello", partial["b"].S)
}

func TestHeapTableInsertMissingColumn(t *testing.T) {
	table := newFooTable(t, testEnv(t))
	_, err := table.Insert(types.ValueDict{"a": types.IntValue(1)})
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestHeapTableOverflowsOntoNewBlocks(t *testing.T) {
	table := newFooTable(t, testEnv(t))

	for i := 0; i < 500; i++ {
		_, err := table.Insert(types.ValueDict{
			"a": types.IntValue(int32(i)),
			"b": types.TextValue(strings.Repeat("x", 100)),
		})
		require.NoError(t, err)
	}

	handles, err := table.Select()
	require.NoError(t, err)
	assert.Len(t, handles, 500)
	assert.GreaterOrEqual(t, int(table.File().Last()), 2)

	// Handles come back in (block, record) ascending order and
	// project back to the inserted rows.
	for i := 1; i < len(handles); i++ {
		prev, cur := handles[i-1], handles[i]
		less := prev.BlockID < cur.BlockID ||
			(prev.BlockID == cur.BlockID && prev.RecordID < cur.RecordID)
		assert.True(t, less, "handles out of order at %d", i)
	}
	row, err := table.Project(handles[499])
	require.NoError(t, err)
	assert.Equal(t, int32(499), row["a"].N)
}

func TestHeapTableDelAndUpdate(t *testing.T) {
	table := newFooTable(t, testEnv(t))

	h1, err := table.Insert(types.ValueDict{"a": types.IntValue(1), "b": types.TextValue("one")})
	require.NoError(t, err)
	h2, err := table.Insert(types.ValueDict{"a": types.IntValue(2), "b": types.TextValue("two")})
	require.NoError(t, err)

	require.NoError(t, table.Del(h1))
	handles, err := table.Select()
	require.NoError(t, err)
	assert.Equal(t, types.Handles{h2}, handles)
	_, err = table.Project(h1)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	h3, err := table.Update(h2, types.ValueDict{"b": types.TextValue("deux")})
	require.NoError(t, err)
	assert.NotEqual(t, h2, h3)
	row, err := table.Project(h3)
	require.NoError(t, err)
	assert.Equal(t, "deux", row["b"].S)
	assert.Equal(t, int32(2), row["a"].N)
}

func TestHeapTableFilter(t *testing.T) {
	table := newFooTable(t, testEnv(t))
	for i := 0; i < 10; i++ {
		_, err := table.Insert(types.ValueDict{
			"a": types.IntValue(int32(i % 3)),
			"b": types.TextValue("row"),
		})
		require.NoError(t, err)
	}

	all, err := table.Select()
	require.NoError(t, err)

	// SelectWhere is not authoritative: it returns every handle.
	candidates, err := table.SelectWhere(types.ValueDict{"a": types.IntValue(1)})
	require.NoError(t, err)
	assert.Len(t, candidates, 10)

	matched, err := table.Filter(all, types.ValueDict{"a": types.IntValue(1)})
	require.NoError(t, err)
	assert.Len(t, matched, 3)

	_, err = table.Filter(all, types.ValueDict{"nope": types.IntValue(1)})
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = table.Filter(all, types.ValueDict{"a": types.TextValue("1")})
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
}

func TestHeapTablePersistsAcrossReopen(t *testing.T) {
	env := testEnv(t)
	table := newFooTable(t, env)
	h, err := table.Insert(types.ValueDict{"a": types.IntValue(7), "b": types.TextValue("persist")})
	require.NoError(t, err)
	require.NoError(t, table.Close())

	reopened := NewHeapTable(env, "foo", table.ColumnNames(), table.ColumnAttributes(), nil)
	require.NoError(t, reopened.Open())
	row, err := reopened.Project(h)
	require.NoError(t, err)
	assert.Equal(t, int32(7), row["a"].N)
	assert.Equal(t, "persist", row["b"].S)
}

func TestHeapTableCreateTwiceFails(t *testing.T) {
	env := testEnv(t)
	table := newFooTable(t, env)
	other := NewHeapTable(env, "foo", table.ColumnNames(), table.ColumnAttributes(), nil)
	err := other.Create()
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
	assert.NoError(t, other.CreateIfNotExists())
}
