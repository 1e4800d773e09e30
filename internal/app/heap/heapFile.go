package heap

import (
	"github.com/cockroachdb/errors"

	"vela/internal/app/file"
	"vela/internal/app/types"
)

// An ordered sequence of slotted pages identified by monotonically
// assigned block ids, persisted in one record-number file named
// after the relation. Block ids run 1..last; last is recovered on
// open from the underlying file's record count.
type HeapFile struct {
	env    *file.DbEnv
	name   string
	rf     *file.RecordFile
	last   types.BlockID
	closed bool
}

func NewHeapFile(env *file.DbEnv, name string) *HeapFile {
	return &HeapFile{
		env:    env,
		name:   name,
		rf:     file.NewRecordFile(env, name),
		closed: true,
	}
}

// Create creates the underlying file exclusively and writes one
// empty slotted page as block 1.
func (hf *HeapFile) Create() error {
	if err := hf.rf.Create(); err != nil {
		return err
	}
	hf.closed = false
	hf.last = 0
	block, err := hf.GetNew()
	if err != nil {
		return err
	}
	return hf.Put(block)
}

// Open opens the underlying file and recovers the last block id.
func (hf *HeapFile) Open() error {
	if !hf.closed {
		return nil
	}
	if err := hf.rf.Open(); err != nil {
		return err
	}
	n, err := hf.rf.Records()
	if err != nil {
		return err
	}
	hf.last = types.BlockID(n)
	hf.closed = false
	return nil
}

// Close closes the underlying file.
func (hf *HeapFile) Close() error {
	if hf.closed {
		return nil
	}
	hf.closed = true
	return hf.rf.Close()
}

// Drop closes and removes the underlying file.
func (hf *HeapFile) Drop() error {
	hf.closed = true
	return hf.rf.Remove()
}

// GetNew allocates the next block id, persists a zero-filled page at
// that key, and returns a fresh slotted page for it. The caller must
// Put the page to persist any records added to it.
func (hf *HeapFile) GetNew() (*SlottedPage, error) {
	if hf.closed {
		return nil, errors.Wrapf(types.ErrCatalog, "heap file %s is not open", hf.name)
	}
	hf.last++
	id := hf.last
	if err := hf.rf.Put(id, make([]byte, file.BlockSize)); err != nil {
		hf.last--
		return nil, err
	}
	return NewSlottedPage(id), nil
}

// Get reads the block and wraps it in a slotted page.
func (hf *HeapFile) Get(id types.BlockID) (*SlottedPage, error) {
	if hf.closed {
		return nil, errors.Wrapf(types.ErrCatalog, "heap file %s is not open", hf.name)
	}
	data, err := hf.rf.Get(id)
	if err != nil {
		return nil, err
	}
	return ParseSlottedPage(id, data)
}

// Put writes the page back at its block id.
func (hf *HeapFile) Put(p *SlottedPage) error {
	if hf.closed {
		return errors.Wrapf(types.ErrCatalog, "heap file %s is not open", hf.name)
	}
	return hf.rf.Put(p.ID(), p.Data())
}

// BlockIDs returns every block id, 1..last ascending.
func (hf *HeapFile) BlockIDs() []types.BlockID {
	ids := make([]types.BlockID, 0, hf.last)
	for i := types.BlockID(1); i <= hf.last; i++ {
		ids = append(ids, i)
	}
	return ids
}

// Last returns the most recently assigned block id.
func (hf *HeapFile) Last() types.BlockID {
	return hf.last
}

func (hf *HeapFile) Name() string {
	return hf.name
}
