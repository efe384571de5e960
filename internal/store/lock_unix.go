//go:build unix

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// platformLock takes an advisory flock on the lock file
func platformLock(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// platformUnlock releases the advisory flock
func platformUnlock(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}
