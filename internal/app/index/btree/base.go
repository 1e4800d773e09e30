package btree

import (
	"github.com/cockroachdb/errors"

	"vela/internal/app/heap"
	"vela/internal/app/types"
)

// The tree machinery shared by secondary indices and tree-organised
// tables: a heap file whose block 1 is the stat node, recursive
// insert with split propagation up to the root, point lookup, and a
// leaf-chain range walk.
type btreeBase struct {
	file    *heap.HeapFile
	profile []types.DataType
	codec   leafCodec
	stat    *btreeStat
	closed  bool
}

// create allocates the stat node in block 1 (already present in a
// freshly created heap file) and an empty root leaf in block 2.
func (b *btreeBase) create() error {
	if err := b.file.Create(); err != nil {
		return err
	}
	rootPage, err := b.file.GetNew()
	if err != nil {
		return err
	}
	root := leafAt(b.file, rootPage.ID(), b.profile, b.codec)
	if err := root.save(); err != nil {
		return err
	}
	b.stat = newBTreeStat(b.file, root.id, 1)
	if err := b.stat.save(); err != nil {
		return err
	}
	b.closed = false
	return nil
}

func (b *btreeBase) open() error {
	if !b.closed {
		return nil
	}
	if err := b.file.Open(); err != nil {
		return err
	}
	stat, err := loadBTreeStat(b.file)
	if err != nil {
		return err
	}
	b.stat = stat
	b.closed = false
	return nil
}

func (b *btreeBase) close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.stat = nil
	return b.file.Close()
}

func (b *btreeBase) drop() error {
	b.closed = true
	b.stat = nil
	return b.file.Drop()
}

// tkey projects the dictionary onto the key columns, in order,
// checking each component against the key profile.
func tkey(key types.ValueDict, keyColumns types.ColumnNames, profile []types.DataType) (types.KeyValue, error) {
	kv := make(types.KeyValue, 0, len(keyColumns))
	for i, name := range keyColumns {
		v, ok := key[name]
		if !ok {
			return nil, errors.Wrapf(types.ErrInvalidArgument, "key is missing column %s", name)
		}
		if v.Type != profile[i] {
			return nil, errors.Wrapf(types.ErrSchemaViolation,
				"key column %s is %s, got %s", name, profile[i], v.Type)
		}
		kv = append(kv, v)
	}
	return kv, nil
}

// insertKey inserts the entry, splitting nodes on the way back up;
// if the split reaches the root, a new interior root is installed
// and the tree grows one level.
func (b *btreeBase) insertKey(key types.KeyValue, value leafValue) error {
	ins, err := b.insertAt(b.stat.rootID, b.stat.height, key, value)
	if err != nil {
		return err
	}
	if ins.isNone() {
		return nil
	}

	newRoot, err := newBTreeInterior(b.file, b.profile)
	if err != nil {
		return err
	}
	newRoot.first = b.stat.rootID
	newRoot.boundaries = append(newRoot.boundaries, ins.boundary)
	newRoot.pointers = append(newRoot.pointers, ins.blockID)
	if err := newRoot.save(); err != nil {
		return err
	}

	b.stat.rootID = newRoot.id
	b.stat.height++
	return b.stat.save()
}

func (b *btreeBase) insertAt(nodeID types.BlockID, height uint32, key types.KeyValue, value leafValue) (insertion, error) {
	if height == 1 {
		leaf, err := loadBTreeLeaf(b.file, nodeID, b.profile, b.codec)
		if err != nil {
			return insertion{}, err
		}
		return leaf.insert(key, value)
	}

	node, err := loadBTreeInterior(b.file, nodeID, b.profile)
	if err != nil {
		return insertion{}, err
	}
	ins, err := b.insertAt(node.find(key), height-1, key, value)
	if err != nil || ins.isNone() {
		return insertion{}, err
	}
	return node.insert(ins.boundary, ins.blockID)
}

// lookupKey descends to the leaf for the key and returns its value;
// found is false on a miss.
func (b *btreeBase) lookupKey(key types.KeyValue) (leafValue, bool, error) {
	leaf, err := b.leafFor(key)
	if err != nil {
		return leafValue{}, false, err
	}
	value, err := leaf.findEq(key)
	if errors.Is(err, types.ErrNotFound) {
		return leafValue{}, false, nil
	}
	if err != nil {
		return leafValue{}, false, err
	}
	return value, true, nil
}

// delKey removes the key's entry from its leaf. Leaves may
// underflow; interior boundaries are left as is.
func (b *btreeBase) delKey(key types.KeyValue) error {
	leaf, err := b.leafFor(key)
	if err != nil {
		return err
	}
	return leaf.del(key)
}

func (b *btreeBase) leafFor(key types.KeyValue) (*btreeLeaf, error) {
	nodeID := b.stat.rootID
	for height := b.stat.height; height > 1; height-- {
		node, err := loadBTreeInterior(b.file, nodeID, b.profile)
		if err != nil {
			return nil, err
		}
		nodeID = node.find(key)
	}
	return loadBTreeLeaf(b.file, nodeID, b.profile, b.codec)
}

// rangeScan walks the leaf chain from min (or the leftmost leaf)
// and calls visit for every entry with min <= key <= max. A nil
// bound is unbounded.
func (b *btreeBase) rangeScan(minKey, maxKey types.KeyValue, visit func(key types.KeyValue, value leafValue) error) error {
	nodeID := b.stat.rootID
	for height := b.stat.height; height > 1; height-- {
		node, err := loadBTreeInterior(b.file, nodeID, b.profile)
		if err != nil {
			return err
		}
		if minKey == nil {
			nodeID = node.first
		} else {
			nodeID = node.find(minKey)
		}
	}

	for nodeID != 0 {
		leaf, err := loadBTreeLeaf(b.file, nodeID, b.profile, b.codec)
		if err != nil {
			return err
		}
		for _, e := range leaf.entries {
			if minKey != nil && compareKeys(e.key, minKey) < 0 {
				continue
			}
			if maxKey != nil && compareKeys(e.key, maxKey) > 0 {
				return nil
			}
			if err := visit(e.key, e.value); err != nil {
				return err
			}
		}
		nodeID = leaf.nextLeaf
	}
	return nil
}
