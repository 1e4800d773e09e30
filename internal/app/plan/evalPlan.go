package plan

import (
	"github.com/cockroachdb/errors"

	"vela/internal/app/interfaces"
	"vela/internal/app/types"
)

// PlanType identifies the node kinds of an evaluation plan.
type PlanType int

const (
	ProjectAll PlanType = iota
	Project
	Select
	IndexLookup
	TableScan
)

// What the catalog must answer for the optimiser: which indices
// exist on a table, and their live objects.
type IndexRegistry interface {
	GetIndexNames(table string) ([]string, error)
	GetIndex(table, name string) (interfaces.DbIndex, error)
}

// A tree of TableScan / Select / IndexLookup / Project nodes.
// Pipeline yields handles from a non-projection subtree; Evaluate
// yields tuples from a terminal projection.
type EvalPlan struct {
	planType    PlanType
	relation    *EvalPlan             // child, except for TableScan and IndexLookup
	projection  types.ColumnNames     // for Project
	conjunction types.ValueDict       // for Select
	table       interfaces.DbRelation // for TableScan
	key         types.ValueDict       // for IndexLookup
	index       interfaces.DbIndex    // for IndexLookup
}

func NewProjectAll(relation *EvalPlan) *EvalPlan {
	return &EvalPlan{planType: ProjectAll, relation: relation}
}

func NewProject(projection types.ColumnNames, relation *EvalPlan) *EvalPlan {
	return &EvalPlan{planType: Project, projection: projection, relation: relation}
}

func NewSelect(conjunction types.ValueDict, relation *EvalPlan) *EvalPlan {
	return &EvalPlan{planType: Select, conjunction: conjunction, relation: relation}
}

func NewTableScan(table interfaces.DbRelation) *EvalPlan {
	return &EvalPlan{planType: TableScan, table: table}
}

func NewIndexLookup(key types.ValueDict, index interfaces.DbIndex) *EvalPlan {
	return &EvalPlan{planType: IndexLookup, key: key, index: index}
}

func (p *EvalPlan) Type() PlanType {
	return p.planType
}

func (p *EvalPlan) Relation() *EvalPlan {
	return p.relation
}

func (p *EvalPlan) Index() interfaces.DbIndex {
	return p.index
}

// Optimize returns the best equivalent plan it knows how to build.
// The one rule: a Select over a TableScan becomes an IndexLookup
// when some index's key columns are all bound by the conjunction;
// predicates not covered by the key stay in a Select above the
// lookup. Children are optimised before the node itself.
func (p *EvalPlan) Optimize(reg IndexRegistry) *EvalPlan {
	switch p.planType {
	case ProjectAll:
		return NewProjectAll(p.relation.Optimize(reg))
	case Project:
		return NewProject(p.projection, p.relation.Optimize(reg))
	case Select:
		if p.relation.planType == TableScan {
			if rewritten := p.rewriteAsIndexLookup(reg); rewritten != nil {
				return rewritten
			}
		}
		return NewSelect(p.conjunction, p.relation.Optimize(reg))
	}
	return p
}

func (p *EvalPlan) rewriteAsIndexLookup(reg IndexRegistry) *EvalPlan {
	tableName := p.relation.table.TableName()
	names, err := reg.GetIndexNames(tableName)
	if err != nil {
		return nil
	}
	for _, name := range names {
		index, err := reg.GetIndex(tableName, name)
		if err != nil {
			continue
		}
		keyColumns := index.KeyColumns()
		if len(keyColumns) == 0 {
			continue
		}
		// A unique lookup needs every key column bound.
		key := make(types.ValueDict, len(keyColumns))
		covered := true
		for _, cn := range keyColumns {
			v, ok := p.conjunction[cn]
			if !ok {
				covered = false
				break
			}
			key[cn] = v
		}
		if !covered {
			continue
		}

		residual := make(types.ValueDict)
		for cn, v := range p.conjunction {
			if !keyColumns.Contains(cn) {
				residual[cn] = v
			}
		}
		lookup := NewIndexLookup(key, index)
		if len(residual) > 0 {
			return NewSelect(residual, lookup)
		}
		return lookup
	}
	return nil
}

// Pipeline evaluates the non-projection subtree to a relation and
// the handles flowing out of it.
func (p *EvalPlan) Pipeline() (interfaces.DbRelation, types.Handles, error) {
	switch p.planType {
	case TableScan:
		handles, err := p.table.Select()
		return p.table, handles, err

	case IndexLookup:
		handles, err := p.index.Lookup(p.key)
		return p.index.Relation(), handles, err

	case Select:
		table, handles, err := p.relation.Pipeline()
		if err != nil {
			return nil, nil, err
		}
		handles, err = table.Filter(handles, p.conjunction)
		return table, handles, err
	}
	return nil, nil, errors.Wrap(types.ErrInvalidArgument,
		"invalid evaluation plan: pipeline on a projection node")
}

// Evaluate runs a terminal projection and returns its tuples.
func (p *EvalPlan) Evaluate() ([]types.ValueDict, error) {
	if p.planType != ProjectAll && p.planType != Project {
		return nil, errors.Wrap(types.ErrInvalidArgument,
			"invalid evaluation plan: not ending with a projection")
	}
	table, handles, err := p.relation.Pipeline()
	if err != nil {
		return nil, err
	}
	if p.planType == ProjectAll {
		return interfaces.ProjectRows(table, handles, nil)
	}
	return interfaces.ProjectRows(table, handles, p.projection)
}
