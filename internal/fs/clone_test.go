package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOSFilesystemManager_CloneTree(t *testing.T) {
	m := NewOSFilesystemManager()

	t.Run("hard-links files and recreates directories", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		writeTestFile(t, filepath.Join(src, "a.txt"), "a")
		writeTestFile(t, filepath.Join(src, "sub", "deep", "b.txt"), "b")
		if err := os.Symlink("a.txt", filepath.Join(src, "link")); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink("missing", filepath.Join(src, "dangling")); err != nil {
			t.Fatal(err)
		}

		dst := filepath.Join(dir, "dst")
		if err := m.CloneTree(src, dst); err != nil {
			t.Fatalf("CloneTree() error = %v", err)
		}

		for _, rel := range []string{"a.txt", "sub/deep/b.txt", "link", "dangling"} {
			a, err := os.Lstat(filepath.Join(src, rel))
			if err != nil {
				t.Fatal(err)
			}
			b, err := os.Lstat(filepath.Join(dst, rel))
			if err != nil {
				t.Fatalf("%s missing in clone: %v", rel, err)
			}
			if !os.SameFile(a, b) {
				t.Errorf("%s is not hard-linked", rel)
			}
		}

		for _, rel := range []string{"sub", "sub/deep"} {
			a, _ := os.Lstat(filepath.Join(src, rel))
			b, err := os.Lstat(filepath.Join(dst, rel))
			if err != nil {
				t.Fatalf("%s missing in clone: %v", rel, err)
			}
			if !b.IsDir() || os.SameFile(a, b) {
				t.Errorf("%s should be a fresh directory", rel)
			}
		}
	})

	t.Run("copies directory modes and times", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		writeTestFile(t, filepath.Join(src, "ro", "f"), "x")
		mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
		if err := os.Chtimes(filepath.Join(src, "ro"), mtime, mtime); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(filepath.Join(src, "ro"), 0o555); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			os.Chmod(filepath.Join(src, "ro"), 0o755)
			os.Chmod(filepath.Join(dir, "dst", "ro"), 0o755)
		})

		dst := filepath.Join(dir, "dst")
		if err := m.CloneTree(src, dst); err != nil {
			t.Fatalf("CloneTree() error = %v", err)
		}

		info, err := os.Stat(filepath.Join(dst, "ro"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o555 {
			t.Errorf("mode = %v, want 0555", info.Mode().Perm())
		}
		if !info.ModTime().Equal(mtime) {
			t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
		}
	})

	t.Run("refuses existing destination", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		writeTestFile(t, filepath.Join(src, "f"), "x")
		dst := filepath.Join(dir, "dst")
		if err := os.Mkdir(dst, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := m.CloneTree(src, dst); err == nil {
			t.Error("expected error for existing destination")
		}
	})
}
