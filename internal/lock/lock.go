//go:build unix

// Package lock provides an exclusive per-target lock so two rotations never
// work on the same snapshot directory at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// FileName is the lock file created in the target directory.
const FileName = ".ysnap.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another rotation is running on this target")

// LockError reports a failure to take the lock, with the holder's PID when known.
type LockError struct {
	LockFile string
	PID      int
	Err      error
}

func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("lock %s (PID %d): %v", e.LockFile, e.PID, e.Err)
	}
	return fmt.Sprintf("lock %s: %v", e.LockFile, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// Locker holds an flock on <target>/.ysnap.lock. The kernel drops the lock
// when the process dies, so a leftover file is never stale.
type Locker struct {
	lockFile string
	lockFd   *os.File
	pid      int
}

// New creates a Locker for the target directory.
func New(target string) *Locker {
	return &Locker{
		lockFile: filepath.Join(target, FileName),
		pid:      os.Getpid(),
	}
}

// Path returns the lock file location.
func (l *Locker) Path() string {
	return l.lockFile
}

// Acquire takes the lock without blocking.
func (l *Locker) Acquire() error {
	if l.lockFd != nil {
		return nil
	}

	fd, err := os.OpenFile(l.lockFile, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return &LockError{LockFile: l.lockFile, Err: fmt.Errorf("opening lock file: %w", err)}
	}

	if err := unix.Flock(int(fd.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		fd.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return &LockError{LockFile: l.lockFile, PID: readPid(l.lockFile), Err: ErrLocked}
		}
		return &LockError{LockFile: l.lockFile, Err: fmt.Errorf("flock: %w", err)}
	}

	if err := fd.Truncate(0); err == nil {
		_, _ = fd.WriteAt([]byte(strconv.Itoa(l.pid)), 0)
	}
	l.lockFd = fd
	return nil
}

// Release drops the lock. The file is left in place; removing it would let
// a waiting process lock an unlinked inode.
func (l *Locker) Release() error {
	if l.lockFd == nil {
		return nil
	}
	defer func() {
		l.lockFd.Close()
		l.lockFd = nil
	}()
	if err := unix.Flock(int(l.lockFd.Fd()), unix.LOCK_UN); err != nil {
		return &LockError{LockFile: l.lockFile, PID: l.pid, Err: fmt.Errorf("unlock: %w", err)}
	}
	return nil
}

func readPid(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
