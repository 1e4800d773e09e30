package file

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"

	"vela/internal/app/types"
)

// BlockSize is the fixed record size; the unit of all persistent I/O.
const BlockSize = 4096

// A record-number file: fixed-size 4 KiB records keyed by a 1-based
// uint32 record number, stored back to back in a single file under
// the environment directory. Reads go through a per-file LRU page
// cache; writes update the cache and go straight to disk.
type RecordFile struct {
	env    *DbEnv
	name   string
	path   string
	file   *os.File
	cache  *lru.Cache[types.BlockID, []byte]
	closed bool
}

// NewRecordFile binds a record file named <name>.db inside the
// environment directory. The file is not touched until Create or
// Open is called.
func NewRecordFile(env *DbEnv, name string) *RecordFile {
	return &RecordFile{
		env:    env,
		name:   name,
		path:   filepath.Join(env.Dir, name+".db"),
		closed: true,
	}
}

// Create creates the underlying file exclusively; it is an error if
// the file already exists.
func (rf *RecordFile) Create() error {
	f, err := os.OpenFile(rf.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.Mark(
				errors.Wrapf(err, "file %s already exists", rf.path),
				types.ErrSchemaViolation)
		}
		return errors.Wrapf(err, "cannot create file %s", rf.path)
	}
	rf.env.Log.Debug().Str("file", rf.name).Msg("created record file")
	return rf.init(f)
}

// Open opens an existing file.
func (rf *RecordFile) Open() error {
	if !rf.closed {
		return nil
	}
	f, err := os.OpenFile(rf.path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Mark(
				errors.Wrapf(err, "file %s does not exist", rf.path),
				types.ErrNotFound)
		}
		return errors.Wrapf(err, "cannot open file %s", rf.path)
	}
	return rf.init(f)
}

func (rf *RecordFile) init(f *os.File) error {
	cache, err := lru.New[types.BlockID, []byte](rf.env.cacheSize())
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "cannot create page cache")
	}
	rf.file = f
	rf.cache = cache
	rf.closed = false
	return nil
}

// Get reads the record at the given key.
func (rf *RecordFile) Get(key types.BlockID) ([]byte, error) {
	if rf.closed {
		return nil, errors.Newf("record file %s is closed", rf.name)
	}
	if key == 0 {
		return nil, errors.Wrap(types.ErrInvalidArgument, "record keys are 1-based")
	}
	if data, ok := rf.cache.Get(key); ok {
		out := make([]byte, BlockSize)
		copy(out, data)
		return out, nil
	}

	data := make([]byte, BlockSize)
	offset := int64(key-1) * BlockSize
	if _, err := rf.file.ReadAt(data, offset); err != nil {
		return nil, errors.Wrapf(err, "cannot read record %d of %s", key, rf.name)
	}

	cached := make([]byte, BlockSize)
	copy(cached, data)
	rf.cache.Add(key, cached)
	return data, nil
}

// Put writes the record at the given key. The data must be exactly
// one block.
func (rf *RecordFile) Put(key types.BlockID, data []byte) error {
	if rf.closed {
		return errors.Newf("record file %s is closed", rf.name)
	}
	if key == 0 {
		return errors.Wrap(types.ErrInvalidArgument, "record keys are 1-based")
	}
	if len(data) != BlockSize {
		return errors.Wrapf(types.ErrInvalidArgument,
			"record must be %d bytes, got %d", BlockSize, len(data))
	}

	offset := int64(key-1) * BlockSize
	if _, err := rf.file.WriteAt(data, offset); err != nil {
		return errors.Wrapf(err, "cannot write record %d of %s", key, rf.name)
	}
	if err := rf.file.Sync(); err != nil {
		return errors.Wrapf(err, "cannot sync %s", rf.name)
	}

	cached := make([]byte, BlockSize)
	copy(cached, data)
	rf.cache.Add(key, cached)
	return nil
}

// Records returns the number of records in the file.
func (rf *RecordFile) Records() (uint32, error) {
	if rf.closed {
		return 0, errors.Newf("record file %s is closed", rf.name)
	}
	info, err := rf.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "cannot stat %s", rf.name)
	}
	return uint32(info.Size() / BlockSize), nil
}

// Close closes the file handle. Safe to call twice.
func (rf *RecordFile) Close() error {
	if rf.closed {
		return nil
	}
	rf.closed = true
	rf.cache.Purge()
	if err := rf.file.Close(); err != nil {
		return errors.Wrapf(err, "cannot close %s", rf.name)
	}
	return nil
}

// Remove closes the file and deletes it from disk.
func (rf *RecordFile) Remove() error {
	if err := rf.Close(); err != nil {
		return err
	}
	if err := os.Remove(rf.path); err != nil {
		return errors.Wrapf(err, "cannot remove %s", rf.path)
	}
	rf.env.Log.Debug().Str("file", rf.name).Msg("removed record file")
	return nil
}

func (rf *RecordFile) Name() string {
	return rf.name
}
