package heap

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/types"
)

// PageSize is the size of one slotted page, equal to the record
// size of the underlying block file.
const PageSize = file.BlockSize

const headerSize = 4 // num_records u16, end_free u16

// A variable-length record container inside one 4 KiB block.
//
// Byte layout: header at offset 0 holds num_records (u16) and
// end_free (u16). A directory of 4-byte slot entries (size, loc)
// per record id grows upward from offset 4; record payloads are
// packed at the tail, growing downward from offset 4095. The free
// region is [4+4*num_records, end_free]. Record ids are 1-based
// and never renumbered; deletion leaves a (0,0) tombstone slot.
type SlottedPage struct {
	id         types.BlockID
	data       []byte
	numRecords uint16
	endFree    uint16
}

// NewSlottedPage formats a fresh, empty page for the given block.
func NewSlottedPage(id types.BlockID) *SlottedPage {
	p := &SlottedPage{
		id:         id,
		data:       make([]byte, PageSize),
		numRecords: 0,
		endFree:    PageSize - 1,
	}
	p.putPageHeader()
	return p
}

// ParseSlottedPage wraps a raw block read from disk, parsing and
// checking its header.
func ParseSlottedPage(id types.BlockID, data []byte) (*SlottedPage, error) {
	if len(data) != PageSize {
		return nil, errors.Wrapf(types.ErrInvalidArgument,
			"block %d is %d bytes, want %d", id, len(data), PageSize)
	}
	p := &SlottedPage{id: id, data: data}
	p.numRecords = p.getN(0)
	p.endFree = p.getN(2)
	if int(p.endFree) >= PageSize || headerSize+4*int(p.numRecords) > int(p.endFree)+1 {
		return nil, errors.Wrapf(types.ErrInvalidArgument,
			"block %d has a corrupt slotted page header", id)
	}
	return p, nil
}

// Add appends a record and returns its new id. Fails with ErrNoRoom
// if the payload plus one slot entry does not fit in the free region.
func (p *SlottedPage) Add(data []byte) (types.RecordID, error) {
	if !p.hasRoom(len(data)) {
		return 0, errors.Wrapf(types.ErrNoRoom,
			"block %d cannot fit %d bytes", p.id, len(data))
	}
	p.numRecords++
	id := types.RecordID(p.numRecords)
	size := uint16(len(data))
	p.endFree -= size
	loc := p.endFree + 1
	p.putPageHeader()
	p.putSlot(id, size, loc)
	copy(p.data[loc:int(loc)+len(data)], data)
	return id, nil
}

// Get returns a copy of the record's payload, or nil if the slot is
// a tombstone.
func (p *SlottedPage) Get(id types.RecordID) ([]byte, error) {
	size, loc, err := p.slot(id)
	if err != nil {
		return nil, err
	}
	if loc == 0 {
		return nil, nil
	}
	out := make([]byte, size)
	copy(out, p.data[loc:loc+size])
	return out, nil
}

// Put replaces the record's payload in place, sliding neighbouring
// records to open or close the gap. If the new payload is larger,
// the page must have room for the difference.
func (p *SlottedPage) Put(id types.RecordID, data []byte) error {
	size, loc, err := p.slot(id)
	if err != nil {
		return err
	}
	if loc == 0 {
		return errors.Wrapf(types.ErrNotFound, "record %d of block %d is deleted", id, p.id)
	}

	newSize := uint16(len(data))
	if newSize > size {
		diff := newSize - size
		if !p.hasRoom(int(diff)) {
			return errors.Wrapf(types.ErrNoRoom,
				"block %d cannot grow record %d by %d bytes", p.id, id, diff)
		}
		// Open a gap of diff bytes just below the old payload, so
		// the grown record still ends where the old one ended; the
		// record's own slot moves down with the slide.
		p.slide(int(loc), int(loc)-int(diff))
		copy(p.data[loc-diff:int(loc-diff)+len(data)], data)
		p.putSlot(id, newSize, loc-diff)
	} else {
		copy(p.data[loc:int(loc)+len(data)], data)
		// Close the leftover hole; the shrunk payload slides up to
		// stay flush with its old end.
		p.slide(int(loc)+int(newSize), int(loc)+int(size))
		p.putSlot(id, newSize, loc+(size-newSize))
	}
	return nil
}

// Del tombstones the slot and reclaims the payload bytes.
func (p *SlottedPage) Del(id types.RecordID) error {
	size, loc, err := p.slot(id)
	if err != nil {
		return err
	}
	if loc == 0 {
		return nil
	}
	p.putSlot(id, 0, 0)
	p.slide(int(loc), int(loc)+int(size))
	return nil
}

// IDs returns the live record ids in ascending order; tombstones
// are omitted.
func (p *SlottedPage) IDs() []types.RecordID {
	ids := make([]types.RecordID, 0, p.numRecords)
	for i := types.RecordID(1); i <= types.RecordID(p.numRecords); i++ {
		if p.getN(4*uint16(i)+2) != 0 {
			ids = append(ids, i)
		}
	}
	return ids
}

// ID returns the block id this page was read from.
func (p *SlottedPage) ID() types.BlockID {
	return p.id
}

// Data returns the raw page bytes, suitable for writing back to the
// block file.
func (p *SlottedPage) Data() []byte {
	return p.data
}

// The free region must hold the payload plus a 4-byte slot entry.
func (p *SlottedPage) hasRoom(size int) bool {
	return size+4 <= int(p.endFree)-4*int(p.numRecords)-3
}

// slide moves the packed payload [endFree+1, start) by
// shift = end-start bytes, adds shift to every live slot whose
// loc <= start, and adjusts endFree. A positive shift closes a
// hole at [start, end); a negative one opens a gap.
func (p *SlottedPage) slide(start, end int) {
	shift := end - start
	if shift == 0 {
		return
	}

	lo := int(p.endFree) + 1
	if start > lo {
		moved := make([]byte, start-lo)
		copy(moved, p.data[lo:start])
		copy(p.data[lo+shift:start+shift], moved)
	}

	for i := types.RecordID(1); i <= types.RecordID(p.numRecords); i++ {
		size, loc := p.getN(4 * uint16(i)), p.getN(4*uint16(i)+2)
		if loc != 0 && int(loc) <= start {
			p.putSlot(i, size, uint16(int(loc)+shift))
		}
	}
	p.endFree = uint16(int(p.endFree) + shift)
	p.putPageHeader()
}

func (p *SlottedPage) slot(id types.RecordID) (size, loc uint16, err error) {
	if id == 0 || id > types.RecordID(p.numRecords) {
		return 0, 0, errors.Wrapf(types.ErrInvalidArgument,
			"no record %d in block %d", id, p.id)
	}
	return p.getN(4 * uint16(id)), p.getN(4*uint16(id) + 2), nil
}

func (p *SlottedPage) putSlot(id types.RecordID, size, loc uint16) {
	p.putN(4*uint16(id), size)
	p.putN(4*uint16(id)+2, loc)
}

func (p *SlottedPage) putPageHeader() {
	p.putN(0, p.numRecords)
	p.putN(2, p.endFree)
}

func (p *SlottedPage) getN(offset uint16) uint16 {
	return binary.LittleEndian.Uint16(p.data[offset : offset+2])
}

func (p *SlottedPage) putN(offset uint16, n uint16) {
	binary.LittleEndian.PutUint16(p.data[offset:offset+2], n)
}
