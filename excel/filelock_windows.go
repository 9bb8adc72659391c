//go:build windows

package excel

import (
	"os"

	"golang.org/x/sys/windows"
)

// tryLock attempts an exclusive LockFileEx without blocking.
func tryLock(f *os.File) error {
	var ov windows.Overlapped
	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, &ov,
	)
}

func releaseLock(f *os.File) error {
	var ov windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, &ov)
}
