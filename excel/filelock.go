package excel

import (
	"errors"
	"os"
	"time"
)

// ErrLockTimeout means another process held the workbook lock for the whole
// wait window.
var ErrLockTimeout = errors.New("excel: timed out waiting for workbook lock")

const lockPollInterval = 10 * time.Millisecond

// FileLock serializes workbook access across processes through an advisory
// lock on a sibling ".lock" file. flock(2) backs it on Unix, LockFileEx on
// Windows.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock prepares a lock guarding path. Nothing is acquired until Lock.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock takes the exclusive lock, polling until timeout. A zero timeout still
// makes one attempt.
func (l *FileLock) Lock(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return &ExportError{Op: "lock", Path: l.path, Err: err}
	}
	l.file = f

	deadline := time.Now().Add(timeout)
	for {
		if err := tryLock(l.file); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			l.file.Close()
			l.file = nil
			return ErrLockTimeout
		}
		time.Sleep(lockPollInterval)
	}
}

// Unlock releases the lock and removes the lock file. Calling it without a
// held lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	releaseLock(l.file)
	l.file.Close()
	l.file = nil
	return os.Remove(l.path)
}
