package ysnap_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ysnap/internal/fs"
	"ysnap/internal/ysnap"
)

func TestListSnapshots(t *testing.T) {
	fsmgr := fs.NewOSFilesystemManager()
	root := t.TempDir()

	for _, d := range []string{
		"ysnap_20220102_000000",
		"ysnap_20220101_120000",
		"ysnap__incomplete",
		"ysnap_notadate_000000",
		"other_20220101_000000",
	} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0o755))
	}
	// A file with a snapshot name is not a snapshot.
	require.NoError(t, os.WriteFile(filepath.Join(root, "ysnap_20220103_000000"), nil, 0o644))

	got, err := ysnap.ListSnapshots(fsmgr, root, ysnap.DefaultNaming())
	require.NoError(t, err)
	assert.Equal(t, []string{"ysnap_20220101_120000", "ysnap_20220102_000000"}, snapNames(got))
	assert.Equal(t, filepath.Join(root, "ysnap_20220101_120000"), got[0].Path)
	assert.True(t, got[0].Time.Equal(time.Date(2022, 1, 1, 12, 0, 0, 0, time.Local)))
	assert.Equal(t, filepath.Join(root, "ysnap_20220101_120000", "payload"), got[0].PayloadPath())
	assert.Equal(t, filepath.Join(root, "ysnap_20220101_120000", "backup_context.json"), got[0].MetadataPath())

	latest := ysnap.Latest(got)
	require.NotNil(t, latest)
	assert.Equal(t, "ysnap_20220102_000000", latest.Name)
	assert.Nil(t, ysnap.Latest(nil))
}

func TestListSnapshots_customPrefix(t *testing.T) {
	fsmgr := fs.NewOSFilesystemManager()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "home-20220101_000000"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "ysnap_20220101_000000"), 0o755))

	got, err := ysnap.ListSnapshots(fsmgr, root, ysnap.Naming{Prefix: "home-"})
	require.NoError(t, err)
	assert.Equal(t, []string{"home-20220101_000000"}, snapNames(got))
}

func TestListSnapshots_invalidTarget(t *testing.T) {
	fsmgr := fs.NewOSFilesystemManager()
	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	for _, p := range []string{filepath.Join(root, "missing"), file} {
		_, err := ysnap.ListSnapshots(fsmgr, p, ysnap.DefaultNaming())
		assert.ErrorIs(t, err, ysnap.ErrInvalidTarget, p)
	}
}

func TestListSnapshots_empty(t *testing.T) {
	got, err := ysnap.ListSnapshots(fs.NewOSFilesystemManager(), t.TempDir(), ysnap.DefaultNaming())
	require.NoError(t, err)
	assert.Empty(t, got)
}
