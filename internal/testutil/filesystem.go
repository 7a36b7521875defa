package testutil

import (
	"fmt"
	"sync"

	"ysnap/internal/fs"
	"ysnap/internal/ysnap"
)

// FaultyFilesystem wraps the real filesystem, records every mutating call and
// fails the ones configured with Fail.
type FaultyFilesystem struct {
	ysnap.FilesystemManager

	mu     sync.Mutex
	faults map[string]error
	calls  []string
}

// NewFaultyFilesystem wraps a real OSFilesystemManager.
func NewFaultyFilesystem() *FaultyFilesystem {
	return &FaultyFilesystem{
		FilesystemManager: fs.NewOSFilesystemManager(),
		faults:            make(map[string]error),
	}
}

// Fail makes op on path return err. op is one of mkdir, clone, chown,
// write, rename, remove.
func (f *FaultyFilesystem) Fail(op, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op+" "+path] = err
}

// Calls returns the mutating calls made so far as "op path".
func (f *FaultyFilesystem) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FaultyFilesystem) record(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + " " + path
	f.calls = append(f.calls, key)
	if err, ok := f.faults[key]; ok {
		return fmt.Errorf("injected: %w", err)
	}
	return nil
}

func (f *FaultyFilesystem) WriteFile(path string, data []byte) error {
	if err := f.record("write", path); err != nil {
		return err
	}
	return f.FilesystemManager.WriteFile(path, data)
}

func (f *FaultyFilesystem) Mkdir(path string) error {
	if err := f.record("mkdir", path); err != nil {
		return err
	}
	return f.FilesystemManager.Mkdir(path)
}

func (f *FaultyFilesystem) CloneTree(src, dst string) error {
	if err := f.record("clone", dst); err != nil {
		return err
	}
	return f.FilesystemManager.CloneTree(src, dst)
}

func (f *FaultyFilesystem) Chown(path string, owner ysnap.Owner) error {
	if err := f.record("chown", path); err != nil {
		return err
	}
	return f.FilesystemManager.Chown(path, owner)
}

func (f *FaultyFilesystem) Rename(oldPath, newPath string) error {
	if err := f.record("rename", oldPath); err != nil {
		return err
	}
	return f.FilesystemManager.Rename(oldPath, newPath)
}

func (f *FaultyFilesystem) RemoveAll(path string) error {
	if err := f.record("remove", path); err != nil {
		return err
	}
	return f.FilesystemManager.RemoveAll(path)
}
