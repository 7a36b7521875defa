package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// IsHardlinkedReplica reports whether tree a has exactly the same entries as
// tree b at every level, and each non-directory entry of a is the same inode
// as its counterpart in b. Type mismatches and broken symlinks count as a
// difference.
func (m *OSFilesystemManager) IsHardlinkedReplica(a, b string) (bool, error) {
	return sameTree(a, b)
}

func sameTree(a, b string) (bool, error) {
	entriesA, err := os.ReadDir(a)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", a, err)
	}
	entriesB, err := os.ReadDir(b)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", b, err)
	}
	if len(entriesA) != len(entriesB) {
		return false, nil
	}

	// ReadDir sorts by name, so entries pair up positionally.
	for i, ea := range entriesA {
		eb := entriesB[i]
		if ea.Name() != eb.Name() || ea.Type() != eb.Type() {
			return false, nil
		}
		pa := filepath.Join(a, ea.Name())
		pb := filepath.Join(b, eb.Name())

		if ea.IsDir() {
			same, err := sameTree(pa, pb)
			if err != nil || !same {
				return false, err
			}
			continue
		}

		infoA, err := os.Lstat(pa)
		if err != nil {
			return false, nil
		}
		infoB, err := os.Lstat(pb)
		if err != nil {
			return false, nil
		}
		if !os.SameFile(infoA, infoB) {
			return false, nil
		}
		if ea.Type()&os.ModeSymlink != 0 {
			if _, err := os.Stat(pa); err != nil {
				return false, nil
			}
		}
	}
	return true, nil
}
