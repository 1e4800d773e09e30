package file

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// The environment a database lives in: the directory holding its
// files, the logger, and tuning knobs. An explicit DbEnv value is
// threaded into every file and catalog constructor.
type DbEnv struct {
	Dir       string
	Log       zerolog.Logger
	CacheSize int // page-cache entries per record file
}

const defaultCacheSize = 128

// NewDbEnv prepares the environment directory, creating it if needed.
func NewDbEnv(dir string, log zerolog.Logger) (*DbEnv, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "cannot create directory %s", dir)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "cannot access directory %s", dir)
	} else if !info.IsDir() {
		return nil, errors.Newf("%s is not a directory", dir)
	}

	return &DbEnv{
		Dir:       dir,
		Log:       log,
		CacheSize: defaultCacheSize,
	}, nil
}

func (env *DbEnv) cacheSize() int {
	if env.CacheSize > 0 {
		return env.CacheSize
	}
	return defaultCacheSize
}
