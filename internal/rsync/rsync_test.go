package rsync

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ysnap/internal/ysnap"
)

func TestSyncer_Command(t *testing.T) {
	s := NewSyncer("", nil, ysnap.NewNopLogger())

	t.Run("base flags and trailing slash", func(t *testing.T) {
		got := s.Command(ysnap.SyncRequest{Source: "/src", Destination: "/t/ysnap__incomplete/payload"})
		assert.Equal(t, "rsync -aAXHSv --delete --delete-excluded /src/ /t/ysnap__incomplete/payload", strings.Join(got, " "))
	})

	t.Run("excludes follow the paths", func(t *testing.T) {
		got := s.Command(ysnap.SyncRequest{Source: "/src/", Destination: "/dst", Excludes: []string{"x", "y"}})
		assert.Equal(t, []string{"rsync", "-aAXHSv", "--delete", "--delete-excluded", "/src/", "/dst", "--exclude=x", "--exclude=y"}, got)
	})

	t.Run("custom binary", func(t *testing.T) {
		got := NewSyncer("/opt/bin/rsync", nil, ysnap.NewNopLogger()).Command(ysnap.SyncRequest{Source: "/a", Destination: "/b"})
		assert.Equal(t, "/opt/bin/rsync", got[0])
	})
}

// fakeRsync writes a shell script standing in for rsync.
func fakeRsync(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "rsync")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestSyncer_Sync_Failure(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		bin := fakeRsync(t, "echo 'rsync: change_dir failed' >&2\nexit 23")
		s := NewSyncer(bin, nil, ysnap.NewNopLogger())

		err := s.Sync(context.Background(), ysnap.SyncRequest{Source: "/a", Destination: "/b"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ysnap.ErrSyncTool))

		var syncErr *SyncToolError
		require.True(t, errors.As(err, &syncErr))
		assert.Equal(t, 23, syncErr.ExitCode)
		assert.Contains(t, syncErr.Output, "change_dir failed")
		assert.Equal(t, bin, syncErr.Args[0])
	})

	t.Run("missing binary", func(t *testing.T) {
		s := NewSyncer(filepath.Join(t.TempDir(), "no-rsync"), nil, ysnap.NewNopLogger())
		err := s.Sync(context.Background(), ysnap.SyncRequest{Source: "/a", Destination: "/b"})
		var syncErr *SyncToolError
		require.True(t, errors.As(err, &syncErr))
		assert.Equal(t, -1, syncErr.ExitCode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		bin := fakeRsync(t, "sleep 5")
		s := NewSyncer(bin, nil, ysnap.NewNopLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.Sync(ctx, ysnap.SyncRequest{Source: "/a", Destination: "/b"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("output is streamed", func(t *testing.T) {
		bin := fakeRsync(t, "echo sending incremental file list")
		var out strings.Builder
		s := NewSyncer(bin, &out, ysnap.NewNopLogger())

		require.NoError(t, s.Sync(context.Background(), ysnap.SyncRequest{Source: "/a", Destination: "/b"}))
		assert.Contains(t, out.String(), "incremental file list")
	})
}

func TestSyncer_Sync_Rsync(t *testing.T) {
	if _, err := exec.LookPath(DefaultBinary); err != nil {
		t.Skip("rsync not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "skip.tmp"), []byte("tmp"), 0o644))

	dst := filepath.Join(dir, "snap", "payload")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "stale.txt"), []byte("stale"), 0o644))

	s := NewSyncer("", nil, ysnap.NewNopLogger())
	require.NoError(t, s.Sync(context.Background(), ysnap.SyncRequest{Source: src, Destination: dst, Excludes: []string{"*.tmp"}}))

	assert.FileExists(t, filepath.Join(dst, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "stale.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "sub", "skip.tmp"))
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 5}
	b.Write([]byte("abc"))
	b.Write([]byte("defg"))
	assert.Equal(t, "cdefg", b.String())
}
