package types

import "fmt"

// A block number within one file, 1-based.
type BlockID uint32

// A slot number within one slotted page, 1-based and stable
// for the lifetime of the record.
type RecordID uint16

// A composite key projected onto an index's key columns, in
// key-column order.
type KeyValue []Value

// Orders two keys of the same profile lexicographically.
func (kv KeyValue) Compare(other KeyValue) (int, error) {
	n := len(kv)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		c, err := kv[i].Compare(other[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	switch {
	case len(kv) < len(other):
		return -1, nil
	case len(kv) > len(other):
		return 1, nil
	}
	return 0, nil
}

func (kv KeyValue) Equals(other KeyValue) bool {
	if len(kv) != len(other) {
		return false
	}
	for i := range kv {
		if !kv[i].Equals(other[i]) {
			return false
		}
	}
	return true
}

// A stable locator for a tuple. For heap relations it is the
// (block, record) pair; for tree-organised relations it carries
// the tuple's key instead.
type Handle struct {
	BlockID  BlockID
	RecordID RecordID
	Key      KeyValue
}

func NewHandle(blockID BlockID, recordID RecordID) Handle {
	return Handle{BlockID: blockID, RecordID: recordID}
}

func KeyHandle(key KeyValue) Handle {
	return Handle{Key: key}
}

func (h Handle) String() string {
	if h.Key != nil {
		return fmt.Sprintf("[key %v]", h.Key)
	}
	return fmt.Sprintf("[block %d, record %d]", h.BlockID, h.RecordID)
}

type Handles []Handle
