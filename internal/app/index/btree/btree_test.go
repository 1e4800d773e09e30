package btree

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/app/file"
	"vela/internal/app/heap"
	"vela/internal/app/types"
)

func testEnv(t *testing.T) *file.DbEnv {
	t.Helper()
	return &file.DbEnv{Dir: t.TempDir(), Log: zerolog.Nop()}
}

func intAttr() types.ColumnAttribute {
	return types.NewColumnAttribute(types.INT)
}

func textAttr() types.ColumnAttribute {
	return types.NewColumnAttribute(types.TEXT)
}

// The table of the btree seed scenario: (12,99), (88,101), then
// 1000 rows (100+i, -i).
func seedTable(t *testing.T, env *file.DbEnv) *heap.HeapTable {
	t.Helper()
	table := heap.NewHeapTable(env, "foo",
		types.ColumnNames{"a", "b"},
		types.ColumnAttributes{intAttr(), intAttr()}, nil)
	require.NoError(t, table.Create())

	insert := func(a, b int32) {
		_, err := table.Insert(types.ValueDict{"a": types.IntValue(a), "b": types.IntValue(b)})
		require.NoError(t, err)
	}
	insert(12, 99)
	insert(88, 101)
	for i := int32(0); i < 1000; i++ {
		insert(100+i, -i)
	}
	return table
}

func TestBTreeIndexLookup(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)

	idx, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())

	lookup := func(a int32) types.Handles {
		handles, err := idx.Lookup(types.ValueDict{"a": types.IntValue(a)})
		require.NoError(t, err)
		return handles
	}

	for i := int32(0); i < 1000; i++ {
		handles := lookup(100 + i)
		require.Len(t, handles, 1, "a=%d", 100+i)
		row, err := table.Project(handles[0])
		require.NoError(t, err)
		require.Equal(t, -i, row["b"].N)
	}

	handles := lookup(12)
	require.Len(t, handles, 1)
	row, err := table.Project(handles[0])
	require.NoError(t, err)
	assert.Equal(t, int32(99), row["b"].N)

	// Misses are an empty list, not an error.
	assert.Empty(t, lookup(6))
	assert.Empty(t, lookup(5000))
}

func TestBTreeIndexGrowsBeyondRoot(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)

	idx, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())

	// 1002 keys cannot fit in one leaf, so the root must have
	// split at least once.
	assert.Greater(t, idx.stat.height, uint32(1))
	assert.Greater(t, int(idx.file.Last()), 2)
}

func TestBTreeIndexLeafChainIsSorted(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)

	idx, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())

	var keys []types.KeyValue
	err = idx.rangeScan(nil, nil, func(key types.KeyValue, _ leafValue) error {
		kv := make(types.KeyValue, len(key))
		copy(kv, key)
		keys = append(keys, kv)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, keys, 1002)
	for i := 1; i < len(keys); i++ {
		assert.Negative(t, compareKeys(keys[i-1], keys[i]))
	}
}

func TestBTreeIndexDuplicateKey(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)

	idx, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())

	h, err := table.Insert(types.ValueDict{"a": types.IntValue(12), "b": types.IntValue(0)})
	require.NoError(t, err)
	err = idx.Insert(h)
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestBTreeIndexDelete(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)

	idx, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())

	handles, err := idx.Lookup(types.ValueDict{"a": types.IntValue(500)})
	require.NoError(t, err)
	require.Len(t, handles, 1)
	require.NoError(t, idx.Del(handles[0]))

	handles, err = idx.Lookup(types.ValueDict{"a": types.IntValue(500)})
	require.NoError(t, err)
	assert.Empty(t, handles)

	// Neighbouring keys survive the delete.
	handles, err = idx.Lookup(types.ValueDict{"a": types.IntValue(501)})
	require.NoError(t, err)
	assert.Len(t, handles, 1)
}

func TestBTreeIndexTextKeysSplitDeep(t *testing.T) {
	env := testEnv(t)
	table := heap.NewHeapTable(env, "words",
		types.ColumnNames{"w", "n"},
		types.ColumnAttributes{textAttr(), intAttr()}, nil)
	require.NoError(t, table.Create())

	// Wide keys force small fan-out, so the tree grows past two
	// levels with a modest row count.
	key := func(i int) string {
		return fmt.Sprintf("%04d-%s", i, strings.Repeat("k", 200))
	}
	for i := 0; i < 500; i++ {
		_, err := table.Insert(types.ValueDict{
			"w": types.TextValue(key(i)),
			"n": types.IntValue(int32(i)),
		})
		require.NoError(t, err)
	}

	idx, err := NewBTreeIndex(env, table, "byWord", types.ColumnNames{"w"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())
	assert.Greater(t, idx.stat.height, uint32(2))

	for i := 0; i < 500; i++ {
		handles, err := idx.Lookup(types.ValueDict{"w": types.TextValue(key(i))})
		require.NoError(t, err)
		require.Len(t, handles, 1, "key %d", i)
		row, err := table.Project(handles[0])
		require.NoError(t, err)
		require.Equal(t, int32(i), row["n"].N)
	}
}

func TestBTreeIndexPersistsAcrossReopen(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)

	idx, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())
	require.NoError(t, idx.Close())

	reopened, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	handles, err := reopened.Lookup(types.ValueDict{"a": types.IntValue(88)})
	require.NoError(t, err)
	require.Len(t, handles, 1)
	row, err := table.Project(handles[0])
	require.NoError(t, err)
	assert.Equal(t, int32(101), row["b"].N)
}

func TestBTreeIndexBulkBuildFailureDropsFile(t *testing.T) {
	env := testEnv(t)
	table := heap.NewHeapTable(env, "dups",
		types.ColumnNames{"a"},
		types.ColumnAttributes{intAttr()}, nil)
	require.NoError(t, table.Create())
	for i := 0; i < 2; i++ {
		_, err := table.Insert(types.ValueDict{"a": types.IntValue(7)})
		require.NoError(t, err)
	}

	idx, err := NewBTreeIndex(env, table, "uniq", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	err = idx.Create()
	assert.True(t, errors.Is(err, types.ErrSchemaViolation))

	// The half-built file must be gone, so a retry can create it.
	rf := file.NewRecordFile(env, "dups-uniq")
	assert.True(t, errors.Is(rf.Open(), types.ErrNotFound))
}

func TestBTreeIndexRejectsNonUnique(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)
	_, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, false)
	assert.True(t, errors.Is(err, types.ErrUnsupported))
}

func TestBTreeIndexRangeUnsupported(t *testing.T) {
	env := testEnv(t)
	table := seedTable(t, env)
	idx, err := NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, idx.Create())

	_, err = idx.Range(nil, nil)
	assert.True(t, errors.Is(err, types.ErrUnsupported))
}
