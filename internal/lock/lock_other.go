//go:build !unix

package lock

import (
	"errors"
	"path/filepath"
)

const FileName = ".ysnap.lock"

var ErrLocked = errors.New("another rotation is running on this target")

// Locker is unsupported on this platform; Acquire always fails.
type Locker struct {
	lockFile string
}

func New(target string) *Locker {
	return &Locker{lockFile: filepath.Join(target, FileName)}
}

func (l *Locker) Path() string { return l.lockFile }

func (l *Locker) Acquire() error {
	return errors.New("target locking requires a Unix-like operating system")
}

func (l *Locker) Release() error { return nil }
