package fs

import (
	"os"
	"path/filepath"
	"testing"

	"ysnap/internal/ysnap"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	m := NewOSFilesystemManager()

	t.Run("resolves relative directory", func(t *testing.T) {
		dir := t.TempDir()
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
		if err := os.Mkdir("sub", 0o755); err != nil {
			t.Fatal(err)
		}

		p, err := m.Resolve("sub/../sub")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want, _ := filepath.EvalSymlinks(filepath.Join(dir, "sub"))
		got, _ := filepath.EvalSymlinks(p.String())
		if got != want {
			t.Errorf("Resolve() = %s, want %s", got, want)
		}
		if !p.IsDir() {
			t.Error("expected directory")
		}
	})

	t.Run("expands environment variables", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("YSNAP_TEST_DIR", dir)

		p, err := m.Resolve("${YSNAP_TEST_DIR}")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.String() != dir {
			t.Errorf("Resolve() = %s, want %s", p.String(), dir)
		}
	})

	t.Run("missing path fails", func(t *testing.T) {
		if _, err := m.Resolve(filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("expected error for missing path")
		}
	})
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SNAPS", "snaps")

	tests := []struct {
		raw  string
		want string
	}{
		{"~", home},
		{"~/backups", filepath.Join(home, "backups")},
		{"~/$SNAPS/x", filepath.Join(home, "snaps", "x")},
		{"/var/../tmp/./a", "/tmp/a"},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.raw)
		if err != nil {
			t.Errorf("ExpandPath(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestInvokingOwner(t *testing.T) {
	t.Run("defaults to the process user", func(t *testing.T) {
		t.Setenv("SUDO_UID", "")
		t.Setenv("SUDO_GID", "")
		o := InvokingOwner()
		if o.UID != os.Getuid() || o.GID != os.Getgid() {
			t.Errorf("InvokingOwner() = %v, want %d:%d", o, os.Getuid(), os.Getgid())
		}
	})

	t.Run("prefers sudo variables", func(t *testing.T) {
		t.Setenv("SUDO_UID", "1234")
		t.Setenv("SUDO_GID", "5678")
		o := InvokingOwner()
		if o.String() != "1234:5678" {
			t.Errorf("InvokingOwner() = %v, want 1234:5678", o)
		}
	})
}

func TestOSFilesystemManager_WriteFile(t *testing.T) {
	m := NewOSFilesystemManager()

	t.Run("replaces file without touching hard links", func(t *testing.T) {
		dir := t.TempDir()
		orig := filepath.Join(dir, "a", "meta.json")
		linked := filepath.Join(dir, "b", "meta.json")
		writeTestFile(t, orig, "old")
		if err := os.MkdirAll(filepath.Dir(linked), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.Link(orig, linked); err != nil {
			t.Fatal(err)
		}

		if err := m.WriteFile(linked, []byte("new")); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		got, _ := os.ReadFile(linked)
		if string(got) != "new" {
			t.Errorf("linked = %q, want new", got)
		}
		got, _ = os.ReadFile(orig)
		if string(got) != "old" {
			t.Errorf("original = %q, want old", got)
		}
	})

	t.Run("leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		if err := m.WriteFile(filepath.Join(dir, "f"), []byte("x")); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("expected 1 entry, got %d", len(entries))
		}
	})
}

func TestOSFilesystemManager_RemoveAll(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	locked := filepath.Join(dir, "snap", "locked")
	writeTestFile(t, filepath.Join(locked, "f"), "x")
	if err := os.Chmod(locked, 0o500); err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveAll(filepath.Join(dir, "snap")); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "snap")); !os.IsNotExist(err) {
		t.Errorf("expected snap to be removed, stat err = %v", err)
	}
}

func TestOSFilesystemManager_Chown(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := filepath.Join(t.TempDir(), "snap")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	info, err := os.Lstat(dir)
	if err != nil {
		t.Fatal(err)
	}
	uid, gid, ok := ownerOf(info)
	if !ok {
		t.Skip("no numeric owner on this platform")
	}

	// Handing a directory to its current owner needs no privileges.
	if err := m.Chown(dir, ysnap.Owner{UID: uid, GID: gid}); err != nil {
		t.Fatalf("Chown() error = %v", err)
	}
}
