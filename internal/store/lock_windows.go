//go:build windows

package store

import (
	"os"

	"golang.org/x/sys/windows"
)

// platformLock takes an exclusive, non-blocking LockFileEx on the lock file
func platformLock(file *os.File) error {
	var ol windows.Overlapped
	return windows.LockFileEx(windows.Handle(file.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, &ol)
}

// platformUnlock releases the LockFileEx range
func platformUnlock(file *os.File) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(file.Fd()), 0, 1, 0, &ol)
}
