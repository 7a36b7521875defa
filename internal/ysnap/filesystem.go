package ysnap

import (
	"fmt"
	"io/fs"
)

// Owner is a numeric user/group pair applied to new snapshot directories.
type Owner struct {
	UID int
	GID int
}

// String renders the owner the way chown(1) accepts it.
func (o Owner) String() string {
	return fmt.Sprintf("%d:%d", o.UID, o.GID)
}

// FilesystemManager provides the filesystem operations a rotation needs.
// It abstracts file access so the rotation logic can be tested with injected faults.
type FilesystemManager interface {
	// Resolve expands a raw user path (~, environment variables, relative
	// segments), makes it absolute and stats it.
	Resolve(rawPath string) (*Path, error)

	// Stat returns file info, following symlinks.
	Stat(path string) (fs.FileInfo, error)

	// ReadDir lists a directory sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)

	// ReadFile reads a whole file.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces path with data atomically (temp file + rename).
	// An existing file at path is unlinked, never truncated, so hard-linked
	// copies of it in other snapshots are left untouched.
	WriteFile(path string, data []byte) error

	// Mkdir creates a single directory. The parent must exist.
	Mkdir(path string) error

	// CloneTree recreates the directory structure of src at dst and hard-links
	// every non-directory entry. dst must not exist.
	CloneTree(src, dst string) error

	// Chown changes the owner of path without following symlinks.
	Chown(path string, owner Owner) error

	// Rename moves oldPath to newPath atomically.
	Rename(oldPath, newPath string) error

	// RemoveAll deletes path recursively.
	RemoveAll(path string) error

	// IsHardlinkedReplica reports whether tree a has exactly the entries of
	// tree b and every non-directory entry shares its inode with b's.
	// Any ambiguity is reported as false.
	IsHardlinkedReplica(a, b string) (bool, error)
}
