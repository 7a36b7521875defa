package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ysnap/internal/ysnap"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve expands a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*ysnap.Path, error) {
	absPath, err := ExpandPath(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return ysnap.NewPath(absPath, info.IsDir(), info), nil
}

func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (m *OSFilesystemManager) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

func (m *OSFilesystemManager) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to path using atomic write (temp file + rename).
// Rename replaces the directory entry, so other hard links to the old file
// keep the old content.
func (m *OSFilesystemManager) WriteFile(path string, data []byte) error {
	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Mkdir creates a single directory; permissions follow the umask.
func (m *OSFilesystemManager) Mkdir(path string) error {
	return os.Mkdir(path, 0o777)
}

// Chown sets the owner of path itself, not of its contents. It does nothing
// if the owner already matches, so unprivileged users can chown to themselves.
func (m *OSFilesystemManager) Chown(path string, owner ysnap.Owner) error {
	if info, err := os.Lstat(path); err == nil {
		if uid, gid, ok := ownerOf(info); ok && uid == owner.UID && gid == owner.GID {
			return nil
		}
	}
	return os.Lchown(path, owner.UID, owner.GID)
}

func (m *OSFilesystemManager) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// RemoveAll deletes path recursively. Directories synced without write
// permission are made writable and the removal is retried once.
func (m *OSFilesystemManager) RemoveAll(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	if !os.IsPermission(err) {
		return err
	}

	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			_ = os.Chmod(p, info.Mode().Perm()|0o700)
		}
		return nil
	})
	return os.RemoveAll(path)
}

// Compile-time check that OSFilesystemManager implements ysnap.FilesystemManager interface
var _ ysnap.FilesystemManager = (*OSFilesystemManager)(nil)
