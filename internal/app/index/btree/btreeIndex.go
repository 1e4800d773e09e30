package btree

import (
	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/heap"
	"vela/internal/app/interfaces"
	"vela/internal/app/types"
)

// A persistent secondary index over a relation, stored as a B+Tree
// in its own heap file named <table>-<index>. Leaf values are
// handles into the indexed relation. Only unique keys are supported.
type BTreeIndex struct {
	btreeBase
	relation   interfaces.DbRelation
	name       string
	keyColumns types.ColumnNames
	unique     bool
}

func NewBTreeIndex(env *file.DbEnv, relation interfaces.DbRelation, name string,
	keyColumns types.ColumnNames, unique bool) (*BTreeIndex, error) {
	if !unique {
		return nil, errors.Wrap(types.ErrUnsupported,
			"a btree index must be on a unique search key")
	}
	attrs, err := relation.AttributesFor(keyColumns)
	if err != nil {
		return nil, err
	}
	profile := make([]types.DataType, len(attrs))
	for i, a := range attrs {
		profile[i] = a.DataType
	}

	idx := &BTreeIndex{
		relation:   relation,
		name:       name,
		keyColumns: keyColumns,
		unique:     unique,
	}
	idx.file = heap.NewHeapFile(env, relation.TableName()+"-"+name)
	idx.profile = profile
	idx.codec = handleCodec{}
	idx.closed = true
	return idx, nil
}

// Create builds the index file and bulk-loads it from the relation's
// current tuples. Any failure during the bulk build drops the file.
func (idx *BTreeIndex) Create() error {
	if err := idx.create(); err != nil {
		return err
	}

	handles, err := idx.relation.Select()
	if err == nil {
		for _, h := range handles {
			if err = idx.Insert(h); err != nil {
				break
			}
		}
	}
	if err != nil {
		_ = idx.drop()
		return err
	}
	return nil
}

func (idx *BTreeIndex) Drop() error {
	return idx.drop()
}

func (idx *BTreeIndex) Open() error {
	return idx.open()
}

func (idx *BTreeIndex) Close() error {
	return idx.close()
}

// Lookup returns the handle stored under the key values, or an
// empty list on a miss.
func (idx *BTreeIndex) Lookup(key types.ValueDict) (types.Handles, error) {
	if err := idx.open(); err != nil {
		return nil, err
	}
	kv, err := tkey(key, idx.keyColumns, idx.profile)
	if err != nil {
		return nil, err
	}
	value, found, err := idx.lookupKey(kv)
	if err != nil {
		return nil, err
	}
	if !found {
		return types.Handles{}, nil
	}
	return types.Handles{value.handle}, nil
}

// Range queries are not implemented for secondary indices.
func (idx *BTreeIndex) Range(minKey, maxKey types.ValueDict) (types.Handles, error) {
	return nil, errors.Wrap(types.ErrUnsupported, "range index query not supported")
}

// Insert adds the tuple at the handle under its key columns.
func (idx *BTreeIndex) Insert(h types.Handle) error {
	if err := idx.open(); err != nil {
		return err
	}
	kv, err := idx.handleKey(h)
	if err != nil {
		return err
	}
	return idx.insertKey(kv, leafValue{handle: h})
}

// Del removes the tuple's entry from its leaf. The leaf may
// underflow; no merging is attempted.
func (idx *BTreeIndex) Del(h types.Handle) error {
	if err := idx.open(); err != nil {
		return err
	}
	kv, err := idx.handleKey(h)
	if err != nil {
		return err
	}
	return idx.delKey(kv)
}

func (idx *BTreeIndex) KeyColumns() types.ColumnNames {
	return idx.keyColumns
}

func (idx *BTreeIndex) Relation() interfaces.DbRelation {
	return idx.relation
}

func (idx *BTreeIndex) Name() string {
	return idx.name
}

func (idx *BTreeIndex) handleKey(h types.Handle) (types.KeyValue, error) {
	row, err := idx.relation.ProjectNames(h, idx.keyColumns)
	if err != nil {
		return nil, err
	}
	return tkey(row, idx.keyColumns, idx.profile)
}
