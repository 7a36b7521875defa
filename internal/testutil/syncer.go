package testutil

import (
	"bytes"
	"context"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"

	"ysnap/internal/fs"
	"ysnap/internal/rsync"
	"ysnap/internal/ysnap"
)

// MirrorSyncer is an in-process stand-in for rsync so rotations can be tested
// without the binary. Like rsync's quick check, files whose size and mtime
// match are left alone (keeping their inode); changed files are replaced by
// a new inode; extraneous and excluded entries are deleted.
type MirrorSyncer struct {
	mu    sync.Mutex
	err   error
	calls []ysnap.SyncRequest
}

func NewMirrorSyncer() *MirrorSyncer {
	return &MirrorSyncer{}
}

// FailWith makes every following Sync return err without touching anything.
func (s *MirrorSyncer) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the requests passed to Sync.
func (s *MirrorSyncer) Calls() []ysnap.SyncRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ysnap.SyncRequest(nil), s.calls...)
}

// Command renders the rsync command line that Sync stands in for.
func (s *MirrorSyncer) Command(req ysnap.SyncRequest) []string {
	return rsync.NewSyncer("", nil, ysnap.NewNopLogger()).Command(req)
}

func (s *MirrorSyncer) Sync(ctx context.Context, req ysnap.SyncRequest) error {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}

	excludes := fs.NewExcludeMatcher(req.Excludes)
	if err := os.MkdirAll(req.Destination, 0o755); err != nil {
		return err
	}

	// Copy pass.
	err = filepath.WalkDir(req.Source, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(req.Source, p)
		if rel == "." {
			return nil
		}
		if excludes.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return mirrorEntry(p, filepath.Join(req.Destination, rel), d)
	})
	if err != nil {
		return err
	}

	// Delete pass.
	return filepath.WalkDir(req.Destination, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(req.Destination, p)
		if rel == "." {
			return nil
		}
		_, statErr := os.Lstat(filepath.Join(req.Source, rel))
		if statErr == nil && !excludes.Match(rel, d.IsDir()) {
			return nil
		}
		if err := os.RemoveAll(p); err != nil {
			return err
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
}

func mirrorEntry(src, dst string, d iofs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	existing, lerr := os.Lstat(dst)
	if lerr != nil && !errors.Is(lerr, iofs.ErrNotExist) {
		return lerr
	}
	if lerr == nil && existing.Mode().Type() != info.Mode().Type() {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		existing = nil
	}

	switch {
	case d.IsDir():
		if existing == nil {
			if err := os.Mkdir(dst, 0o755); err != nil {
				return err
			}
		}
		// Stays owner-writable so children can be mirrored.
		return os.Chmod(dst, info.Mode().Perm()|0o700)

	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if existing != nil {
			if cur, err := os.Readlink(dst); err == nil && cur == target {
				return nil
			}
			if err := os.Remove(dst); err != nil {
				return err
			}
		}
		return os.Symlink(target, dst)

	case info.Mode().IsRegular():
		if existing != nil && existing.Size() == info.Size() && existing.ModTime().Equal(info.ModTime()) {
			if existing.Mode().Perm() != info.Mode().Perm() {
				return os.Chmod(dst, info.Mode().Perm())
			}
			return nil
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return replaceFile(dst, data, info)
	}
	// Special files are not mirrored.
	return nil
}

// replaceFile writes a new inode at dst, like rsync's temp file + rename.
func replaceFile(dst string, data []byte, info iofs.FileInfo) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".mirror-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.ReadFrom(bytes.NewReader(data)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

var _ ysnap.Syncer = (*MirrorSyncer)(nil)
