// Package instance guards the database against more than one writing process.
package instance

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked means another process already holds the writer lock.
var ErrLocked = errors.New("another force process is already writing to this database")

// Lock is an exclusive advisory lock on a file beside the database.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes the writer lock for dbPath without blocking.
func Acquire(dbPath string) (*Lock, error) {
	path := dbPath + ".lock"
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
