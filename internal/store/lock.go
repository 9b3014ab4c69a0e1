package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// LockFileName is the lock file created inside a collection directory.
const LockFileName = "collection.lock"

// FileLock guards a collection directory against concurrent writers in
// other processes.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock returns an unacquired lock for the collection directory dir.
func NewFileLock(dir string) *FileLock {
	path := filepath.Join(dir, LockFileName)
	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock without blocking. A lock held elsewhere yields an
// ERR_203 error.
func (l *FileLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return ierrors.New(ierrors.ErrCodePersistLocked,
			fmt.Sprintf("collection is locked by another process: %s", l.path), nil).
			WithDetail("lock", l.path).
			WithSuggestion("wait for the other ingest run to finish")
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *FileLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Held reports whether this FileLock holds the lock.
func (l *FileLock) Held() bool {
	return l.locked
}
