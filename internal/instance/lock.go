// pattern: Imperative Shell

package instance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = "cgwt.lock"

// Lock acquires an exclusive file lock for single-orchestrator enforcement
// within a data directory. Returns the flock handle (caller must defer
// Unlock) or an error if another orchestrator already holds the lock.
func Lock(dataDir string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another cgwt orchestrator is already running for this directory")
	}
	return fl, nil
}

// Unlock releases the file lock. A nil handle is ignored.
func Unlock(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}

// Cleanup releases the lock and deletes the lock file, used by
// `cgwt cleanup` after a crashed run.
func Cleanup(dataDir string, fl *flock.Flock) {
	Unlock(fl)
	_ = os.Remove(filepath.Join(dataDir, lockFileName))
}
