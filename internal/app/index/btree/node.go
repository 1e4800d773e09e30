package btree

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"vela/internal/app/heap"
	"vela/internal/app/types"
)

// statBlock is where the tree's stat node lives in its heap file.
const statBlock types.BlockID = 1

// The (new block, boundary key) pair a node split hands to its
// parent. The zero value means no split occurred.
type insertion struct {
	blockID  types.BlockID
	boundary types.KeyValue
}

func (ins insertion) isNone() bool {
	return ins.blockID == 0
}

// Keys inside one tree share a key profile, so comparison between
// them cannot mix types.
func compareKeys(a, b types.KeyValue) int {
	c, _ := a.Compare(b)
	return c
}

func marshalBlockID(id types.BlockID) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(id))
	return buf[:]
}

func unmarshalBlockID(data []byte) (types.BlockID, error) {
	if len(data) != 4 {
		return 0, errors.Wrap(types.ErrInvalidArgument, "malformed block pointer")
	}
	return types.BlockID(binary.LittleEndian.Uint32(data)), nil
}

// The stat node: block 1 of the index file, holding the root block
// id (record 1) and the tree height (record 2). Height 1 means the
// root is a leaf.
type btreeStat struct {
	file   *heap.HeapFile
	rootID types.BlockID
	height uint32
}

func newBTreeStat(file *heap.HeapFile, rootID types.BlockID, height uint32) *btreeStat {
	return &btreeStat{file: file, rootID: rootID, height: height}
}

func loadBTreeStat(file *heap.HeapFile) (*btreeStat, error) {
	page, err := file.Get(statBlock)
	if err != nil {
		return nil, err
	}
	rootData, err := page.Get(1)
	if err != nil {
		return nil, err
	}
	heightData, err := page.Get(2)
	if err != nil {
		return nil, err
	}
	rootID, err := unmarshalBlockID(rootData)
	if err != nil {
		return nil, err
	}
	if len(heightData) != 4 {
		return nil, errors.Wrap(types.ErrInvalidArgument, "malformed tree height")
	}
	return &btreeStat{
		file:   file,
		rootID: rootID,
		height: binary.LittleEndian.Uint32(heightData),
	}, nil
}

func (s *btreeStat) save() error {
	page := heap.NewSlottedPage(statBlock)
	if _, err := page.Add(marshalBlockID(s.rootID)); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], s.height)
	if _, err := page.Add(buf[:]); err != nil {
		return err
	}
	return s.file.Put(page)
}

// An interior node: a first pointer plus sorted (boundary key,
// pointer) entries. Every key under first is below boundary 0;
// every key under pointer i is in [boundary i, boundary i+1).
type btreeInterior struct {
	file       *heap.HeapFile
	id         types.BlockID
	profile    []types.DataType
	first      types.BlockID
	boundaries []types.KeyValue
	pointers   []types.BlockID
}

// newBTreeInterior allocates a fresh interior node in the file.
func newBTreeInterior(file *heap.HeapFile, profile []types.DataType) (*btreeInterior, error) {
	page, err := file.GetNew()
	if err != nil {
		return nil, err
	}
	return &btreeInterior{file: file, id: page.ID(), profile: profile}, nil
}

func loadBTreeInterior(file *heap.HeapFile, id types.BlockID, profile []types.DataType) (*btreeInterior, error) {
	page, err := file.Get(id)
	if err != nil {
		return nil, err
	}
	node := &btreeInterior{file: file, id: id, profile: profile}

	ids := page.IDs()
	if len(ids) == 0 || len(ids)%2 == 0 {
		return nil, errors.Wrapf(types.ErrInvalidArgument,
			"interior node %d is malformed", id)
	}
	firstData, err := page.Get(ids[0])
	if err != nil {
		return nil, err
	}
	if node.first, err = unmarshalBlockID(firstData); err != nil {
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
		ptrData, err := page.Get(ids[i+1])
		if err != nil {
			return nil, err
		}
		ptr, err := unmarshalBlockID(ptrData)
		if err != nil {
			return nil, err
		}
		node.boundaries = append(node.boundaries, key)
		node.pointers = append(node.pointers, ptr)
	}
	return node, nil
}

// find returns the child to follow for the key: the pointer of the
// largest boundary <= key, or first when every boundary is greater.
func (n *btreeInterior) find(key types.KeyValue) types.BlockID {
	i := len(n.boundaries)
	for i > 0 && compareKeys(n.boundaries[i-1], key) > 0 {
		i--
	}
	if i == 0 {
		return n.first
	}
	return n.pointers[i-1]
}

// insert splices a (boundary, pointer) entry into the node and saves
// it, splitting when the entries no longer fit. The returned
// insertion is none unless a split occurred.
func (n *btreeInterior) insert(boundary types.KeyValue, blockID types.BlockID) (insertion, error) {
	pos := 0
	for pos < len(n.boundaries) && compareKeys(n.boundaries[pos], boundary) < 0 {
		pos++
	}
	if pos < len(n.boundaries) && compareKeys(n.boundaries[pos], boundary) == 0 {
		return insertion{}, errors.Wrapf(types.ErrSchemaViolation,
			"duplicate boundary in interior node %d", n.id)
	}
	n.boundaries = append(n.boundaries[:pos],
		append([]types.KeyValue{boundary}, n.boundaries[pos:]...)...)
	n.pointers = append(n.pointers[:pos],
		append([]types.BlockID{blockID}, n.pointers[pos:]...)...)

	err := n.save()
	if !errors.Is(err, types.ErrNoRoom) {
		return insertion{}, err
	}
	return n.split()
}

// split moves the upper half of the entries to a new sibling and
// promotes the middle boundary.
func (n *btreeInterior) split() (insertion, error) {
	mid := len(n.boundaries) / 2
	promoted := n.boundaries[mid]

	sibling, err := newBTreeInterior(n.file, n.profile)
	if err != nil {
		return insertion{}, err
	}
	sibling.first = n.pointers[mid]
	sibling.boundaries = append(sibling.boundaries, n.boundaries[mid+1:]...)
	sibling.pointers = append(sibling.pointers, n.pointers[mid+1:]...)

	n.boundaries = n.boundaries[:mid]
	n.pointers = n.pointers[:mid]

	if err := sibling.save(); err != nil {
		return insertion{}, err
	}
	if err := n.save(); err != nil {
		return insertion{}, err
	}
	return insertion{blockID: sibling.id, boundary: promoted}, nil
}

// save rewrites the node's block: first pointer, then the sorted
// (key, pointer) pairs.
func (n *btreeInterior) save() error {
	page := heap.NewSlottedPage(n.id)
	if _, err := page.Add(marshalBlockID(n.first)); err != nil {
		return err
	}
	for i, boundary := range n.boundaries {
		keyData, err := heap.MarshalValues(boundary)
		if err != nil {
			return err
		}
		if _, err := page.Add(keyData); err != nil {
			return err
		}
		if _, err := page.Add(marshalBlockID(n.pointers[i])); err != nil {
			return err
		}
	}
	return n.file.Put(page)
}
