package btree

import (
	"encoding/binary"
	"sort"

	"github.com/cockroachdb/errors"

	"vela/internal/app/heap"
	"vela/internal/app/types"
)

// What a leaf stores per key: a handle into the indexed relation for
// secondary indices, or the marshalled non-key columns for
// tree-organised tables.
type leafValue struct {
	handle types.Handle
	row    types.ValueDict
}

// Serialises leaf values; secondary indices and tree-organised
// tables store different payloads under the same leaf machinery.
type leafCodec interface {
	marshalValue(v leafValue) ([]byte, error)
	unmarshalValue(data []byte) (leafValue, error)
}

// handleCodec stores a Handle as (u32 block id, u16 record id).
type handleCodec struct{}

func (handleCodec) marshalValue(v leafValue) ([]byte, error) {
	var buf [6]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(v.handle.BlockID))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(v.handle.RecordID))
	return buf[:], nil
}

func (handleCodec) unmarshalValue(data []byte) (leafValue, error) {
	if len(data) != 6 {
		return leafValue{}, errors.Wrap(types.ErrInvalidArgument, "malformed leaf handle")
	}
	return leafValue{handle: types.NewHandle(
		types.BlockID(binary.LittleEndian.Uint32(data[0:4])),
		types.RecordID(binary.LittleEndian.Uint16(data[4:6])),
	)}, nil
}

// rowCodec stores a tuple's non-key columns in declared order.
type rowCodec struct {
	names types.ColumnNames
	attrs types.ColumnAttributes
}

func (c rowCodec) marshalValue(v leafValue) ([]byte, error) {
	data, err := heap.MarshalRow(v.row, c.names, c.attrs)
	if err != nil {
		return nil, err
	}
	// A row of zero columns still needs a record body.
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (c rowCodec) unmarshalValue(data []byte) (leafValue, error) {
	row, err := heap.UnmarshalRow(data, c.names, c.attrs)
	if err != nil {
		return leafValue{}, err
	}
	return leafValue{row: row}, nil
}

type leafEntry struct {
	key   types.KeyValue
	value leafValue
}

// A leaf node: sorted (key, value) entries plus the block id of the
// next leaf (0 on the last leaf). Leaves at height 1 form a singly
// linked list in key order.
type btreeLeaf struct {
	file     *heap.HeapFile
	id       types.BlockID
	profile  []types.DataType
	codec    leafCodec
	nextLeaf types.BlockID
	entries  []leafEntry
}

// newBTreeLeaf allocates a fresh, empty leaf in the file.
func newBTreeLeaf(file *heap.HeapFile, profile []types.DataType, codec leafCodec) (*btreeLeaf, error) {
	page, err := file.GetNew()
	if err != nil {
		return nil, err
	}
	return &btreeLeaf{file: file, id: page.ID(), profile: profile, codec: codec}, nil
}

// leafAt wraps the already-allocated block id as an empty leaf; used
// for the first leaf created right after the stat block.
func leafAt(file *heap.HeapFile, id types.BlockID, profile []types.DataType, codec leafCodec) *btreeLeaf {
	return &btreeLeaf{file: file, id: id, profile: profile, codec: codec}
}

func loadBTreeLeaf(file *heap.HeapFile, id types.BlockID, profile []types.DataType, codec leafCodec) (*btreeLeaf, error) {
	page, err := file.Get(id)
	if err != nil {
		return nil, err
	}
	leaf := &btreeLeaf{file: file, id: id, profile: profile, codec: codec}

	ids := page.IDs()
	if len(ids) == 0 || len(ids)%2 == 0 {
		return nil, errors.Wrapf(types.ErrInvalidArgument, "leaf node %d is malformed", id)
	}
	nextData, err := page.Get(ids[0])
	if err != nil {
		return nil, err
	}
	if leaf.nextLeaf, err = unmarshalBlockID(nextData); err != nil {
		return nil, err
	}
	for i := 1; i < len(ids); i += 2 {
		keyData, err := page.Get(ids[i])
		if err != nil {
			return nil, err
		}
		key, err := heap.UnmarshalValues(keyData, profile)
		if err != nil {
			return nil, err
		}
		valueData, err := page.Get(ids[i+1])
		if err != nil {
			return nil, err
		}
		value, err := codec.unmarshalValue(valueData)
		if err != nil {
			return nil, err
		}
		leaf.entries = append(leaf.entries, leafEntry{key: key, value: value})
	}
	return leaf, nil
}

// findEq returns the value stored under exactly this key.
func (l *btreeLeaf) findEq(key types.KeyValue) (leafValue, error) {
	i := l.search(key)
	if i < len(l.entries) && compareKeys(l.entries[i].key, key) == 0 {
		return l.entries[i].value, nil
	}
	return leafValue{}, errors.Wrapf(types.ErrNotFound, "key %v", key)
}

// insert adds the entry and saves the leaf, splitting when the
// entries no longer fit. Keys are unique per tree.
func (l *btreeLeaf) insert(key types.KeyValue, value leafValue) (insertion, error) {
	i := l.search(key)
	if i < len(l.entries) && compareKeys(l.entries[i].key, key) == 0 {
		return insertion{}, errors.Wrap(types.ErrSchemaViolation, "duplicate key")
	}
	l.entries = append(l.entries[:i],
		append([]leafEntry{{key: key, value: value}}, l.entries[i:]...)...)

	err := l.save()
	if !errors.Is(err, types.ErrNoRoom) {
		return insertion{}, err
	}
	return l.split()
}

// split moves the upper half of the entries to a new leaf, splices
// it into the leaf chain, and reports the new leaf's first key as
// the boundary.
func (l *btreeLeaf) split() (insertion, error) {
	mid := len(l.entries) / 2
	if mid == 0 {
		return insertion{}, errors.Wrapf(types.ErrNoRoom,
			"entry too large for leaf node %d", l.id)
	}

	sibling, err := newBTreeLeaf(l.file, l.profile, l.codec)
	if err != nil {
		return insertion{}, err
	}
	sibling.entries = append(sibling.entries, l.entries[mid:]...)
	sibling.nextLeaf = l.nextLeaf
	l.entries = l.entries[:mid]
	l.nextLeaf = sibling.id

	if err := sibling.save(); err != nil {
		return insertion{}, err
	}
	if err := l.save(); err != nil {
		return insertion{}, err
	}
	return insertion{blockID: sibling.id, boundary: sibling.entries[0].key}, nil
}

// del removes the key's entry and saves the leaf. Leaves are allowed
// to underflow; no merging is attempted.
func (l *btreeLeaf) del(key types.KeyValue) error {
	i := l.search(key)
	if i >= len(l.entries) || compareKeys(l.entries[i].key, key) != 0 {
		return errors.Wrapf(types.ErrNotFound, "key %v", key)
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return l.save()
}

// save rewrites the leaf's block: next-leaf pointer, then the sorted
// (key, value) pairs.
func (l *btreeLeaf) save() error {
	page := heap.NewSlottedPage(l.id)
	if _, err := page.Add(marshalBlockID(l.nextLeaf)); err != nil {
		return err
	}
	for _, e := range l.entries {
		keyData, err := heap.MarshalValues(e.key)
		if err != nil {
			return err
		}
		if _, err := page.Add(keyData); err != nil {
			return err
		}
		valueData, err := l.codec.marshalValue(e.value)
		if err != nil {
			return err
		}
		if _, err := page.Add(valueData); err != nil {
			return err
		}
	}
	return l.file.Put(page)
}

// search returns the index of the first entry whose key is >= key.
func (l *btreeLeaf) search(key types.KeyValue) int {
	return sort.Search(len(l.entries), func(i int) bool {
		return compareKeys(l.entries[i].key, key) >= 0
	})
}
