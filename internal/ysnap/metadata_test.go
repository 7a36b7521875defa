package ysnap_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ysnap/internal/fs"
	"ysnap/internal/ysnap"
)

func TestWriteMetadata(t *testing.T) {
	fsmgr := fs.NewOSFilesystemManager()
	dir := t.TempDir()
	taken := time.Date(2022, 3, 14, 23, 52, 19, 0, time.Local)

	require.NoError(t, ysnap.WriteMetadata(fsmgr, dir, "/home/user", taken))

	data, err := os.ReadFile(filepath.Join(dir, ysnap.MetadataFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source": "/home/user", "epoch": `+itoa(taken.Unix())+`}`, string(data))

	m, err := ysnap.ReadMetadata(fsmgr, dir)
	require.NoError(t, err)
	assert.Equal(t, "/home/user", m.Source)
	assert.True(t, m.Time().Equal(taken))
}

func TestReadMetadata(t *testing.T) {
	fsmgr := fs.NewOSFilesystemManager()

	t.Run("unknown fields are ignored", func(t *testing.T) {
		dir := t.TempDir()
		writeMetadataFile(t, dir, `{"source": "/src", "epoch": 1647298339, "host": "x"}`)

		m, err := ysnap.ReadMetadata(fsmgr, dir)
		require.NoError(t, err)
		assert.Equal(t, &ysnap.Metadata{Source: "/src", Epoch: 1647298339}, m)
	})

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"source": `},
		{"missing source", `{"epoch": 1647298339}`},
		{"wrong type", `{"source": "/src", "epoch": "yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeMetadataFile(t, dir, tt.content)

			_, err := ysnap.ReadMetadata(fsmgr, dir)
			assert.ErrorIs(t, err, ysnap.ErrCorruptMetadata)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := ysnap.ReadMetadata(fsmgr, t.TempDir())
		var cme *ysnap.CorruptMetadataError
		require.ErrorAs(t, err, &cme)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestTimeSinceLatest(t *testing.T) {
	fsmgr := fs.NewOSFilesystemManager()
	now := time.Date(2022, 3, 15, 0, 0, 0, 0, time.Local)

	assert.Equal(t, ysnap.Forever, ysnap.TimeSinceLatest(fsmgr, nil, now))

	dir := t.TempDir()
	snap := &ysnap.Snapshot{Name: "ysnap_20220314_000000", Path: dir, Time: now.Add(-24 * time.Hour)}

	// No metadata: the name's timestamp is used.
	assert.Equal(t, 24*time.Hour, ysnap.TimeSinceLatest(fsmgr, snap, now))

	require.NoError(t, ysnap.WriteMetadata(fsmgr, dir, "/src", now.Add(-2*time.Hour)))
	assert.Equal(t, 2*time.Hour, ysnap.TimeSinceLatest(fsmgr, snap, now))
}

func writeMetadataFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ysnap.MetadataFileName), []byte(content), 0o644))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
