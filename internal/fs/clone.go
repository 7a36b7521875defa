package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type dirAttrs struct {
	path  string
	perm  fs.FileMode
	mtime time.Time
}

// CloneTree is the equivalent of `cp -al src dst`: directories are
// recreated, every other entry (files, symlinks, special files) is
// hard-linked. Symlinks are linked themselves, never followed.
// Directory permissions and modification times are copied, and ownership
// too when running as root.
func (m *OSFilesystemManager) CloneTree(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("clone destination exists: %s", dst)
	}

	asRoot := os.Geteuid() == 0
	var dirs []dirAttrs

	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if !d.IsDir() {
			if err := os.Link(p, target); err != nil {
				return fmt.Errorf("linking %s: %w", rel, err)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		// Owner-writable until all children are linked.
		if err := os.Mkdir(target, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", rel, err)
		}
		if asRoot {
			if uid, gid, ok := ownerOf(info); ok {
				if err := os.Lchown(target, uid, gid); err != nil {
					return fmt.Errorf("chown %s: %w", rel, err)
				}
			}
		}
		dirs = append(dirs, dirAttrs{path: target, perm: info.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky), mtime: info.ModTime()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("cloning %s: %w", src, err)
	}

	// Deepest first, so setting a parent's mtime is not undone by its children.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := os.Chmod(d.path, d.perm); err != nil {
			return fmt.Errorf("chmod %s: %w", d.path, err)
		}
		if err := os.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			return fmt.Errorf("chtimes %s: %w", d.path, err)
		}
	}
	return nil
}
