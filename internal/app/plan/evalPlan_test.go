package plan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/app/file"
	"vela/internal/app/heap"
	"vela/internal/app/index/btree"
	"vela/internal/app/interfaces"
	"vela/internal/app/types"
)

// A registry serving one index, the way the catalog would.
type singleIndexRegistry struct {
	table string
	name  string
	index interfaces.DbIndex
}

func (r *singleIndexRegistry) GetIndexNames(table string) ([]string, error) {
	if table == r.table {
		return []string{r.name}, nil
	}
	return nil, nil
}

func (r *singleIndexRegistry) GetIndex(table, name string) (interfaces.DbIndex, error) {
	if table == r.table && name == r.name {
		return r.index, nil
	}
	return nil, errors.Wrapf(types.ErrNotFound, "no index %s on %s", name, table)
}

type emptyRegistry struct{}

func (emptyRegistry) GetIndexNames(table string) ([]string, error) { return nil, nil }
func (emptyRegistry) GetIndex(table, name string) (interfaces.DbIndex, error) {
	return nil, errors.Wrap(types.ErrNotFound, "no indices")
}

func planFixture(t *testing.T) (*heap.HeapTable, IndexRegistry) {
	t.Helper()
	env := &file.DbEnv{Dir: t.TempDir(), Log: zerolog.Nop()}
	table := heap.NewHeapTable(env, "foo",
		types.ColumnNames{"a", "b"},
		types.ColumnAttributes{
			types.NewColumnAttribute(types.INT),
			types.NewColumnAttribute(types.INT),
		}, nil)
	require.NoError(t, table.Create())
	for i := int32(0); i < 1000; i++ {
		_, err := table.Insert(types.ValueDict{
			"a": types.IntValue(100 + i),
			"b": types.IntValue(-i),
		})
		require.NoError(t, err)
	}

	index, err := btree.NewBTreeIndex(env, table, "fooIndex", types.ColumnNames{"a"}, true)
	require.NoError(t, err)
	require.NoError(t, index.Create())

	return table, &singleIndexRegistry{table: "foo", name: "fooIndex", index: index}
}

func TestOptimizeRewritesSelectOverTableScan(t *testing.T) {
	table, reg := planFixture(t)

	p := NewSelect(types.ValueDict{"a": types.IntValue(500)}, NewTableScan(table))
	optimized := p.Optimize(reg)
	require.Equal(t, IndexLookup, optimized.Type())

	_, handles, err := optimized.Pipeline()
	require.NoError(t, err)
	require.Len(t, handles, 1)
	row, err := table.Project(handles[0])
	require.NoError(t, err)
	assert.Equal(t, int32(-400), row["b"].N)
}

func TestOptimizeKeepsResidualPredicates(t *testing.T) {
	table, reg := planFixture(t)

	conj := types.ValueDict{
		"a": types.IntValue(500),
		"b": types.IntValue(-400),
	}
	optimized := NewSelect(conj, NewTableScan(table)).Optimize(reg)
	require.Equal(t, Select, optimized.Type())
	require.Equal(t, IndexLookup, optimized.Relation().Type())

	_, handles, err := optimized.Pipeline()
	require.NoError(t, err)
	assert.Len(t, handles, 1)

	// A residual predicate that contradicts the row filters it out.
	conj["b"] = types.IntValue(12345)
	optimized = NewSelect(conj, NewTableScan(table)).Optimize(reg)
	require.Equal(t, Select, optimized.Type())
	_, handles, err = optimized.Pipeline()
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestOptimizeSkipsUnboundIndex(t *testing.T) {
	table, reg := planFixture(t)

	// The conjunction binds no key column, so the scan stays.
	optimized := NewSelect(types.ValueDict{"b": types.IntValue(-1)}, NewTableScan(table)).Optimize(reg)
	require.Equal(t, Select, optimized.Type())
	assert.Equal(t, TableScan, optimized.Relation().Type())
}

func TestOptimizeWithoutIndexes(t *testing.T) {
	table, _ := planFixture(t)
	optimized := NewSelect(types.ValueDict{"a": types.IntValue(500)}, NewTableScan(table)).Optimize(emptyRegistry{})
	require.Equal(t, Select, optimized.Type())

	_, handles, err := optimized.Pipeline()
	require.NoError(t, err)
	assert.Len(t, handles, 1)
}

func TestOptimizeRecursesThroughProjection(t *testing.T) {
	table, reg := planFixture(t)

	p := NewProject(types.ColumnNames{"a", "b"},
		NewSelect(types.ValueDict{"a": types.IntValue(500)}, NewTableScan(table)))
	optimized := p.Optimize(reg)
	require.Equal(t, Project, optimized.Type())
	require.Equal(t, IndexLookup, optimized.Relation().Type())

	rows, err := optimized.Evaluate()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(500), rows[0]["a"].N)
	assert.Equal(t, int32(-400), rows[0]["b"].N)
}

func TestEvaluateSelectsAndProjects(t *testing.T) {
	table, _ := planFixture(t)

	rows, err := NewProjectAll(NewTableScan(table)).Evaluate()
	require.NoError(t, err)
	assert.Len(t, rows, 1000)

	rows, err = NewProject(types.ColumnNames{"b"},
		NewSelect(types.ValueDict{"a": types.IntValue(101)}, NewTableScan(table))).Evaluate()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 1)
	assert.Equal(t, int32(-1), rows[0]["b"].N)
}

func TestEvaluateRequiresProjection(t *testing.T) {
	table, _ := planFixture(t)
	_, err := NewTableScan(table).Evaluate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid evaluation plan")
}

func TestPipelineRejectsProjection(t *testing.T) {
	table, _ := planFixture(t)
	_, _, err := NewProjectAll(NewTableScan(table)).Pipeline()
	assert.Error(t, err)
}
