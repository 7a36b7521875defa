package ysnap

import (
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"time"
)

// Metadata is stored as JSON next to each snapshot's payload.
type Metadata struct {
	Source string `json:"source"`
	Epoch  int64  `json:"epoch"`
}

// Time returns the epoch as a local time.
func (m Metadata) Time() time.Time {
	return time.Unix(m.Epoch, 0)
}

// NewMetadata builds the metadata for a snapshot of source taken at t.
func NewMetadata(source string, t time.Time) *Metadata {
	return &Metadata{Source: source, Epoch: t.Unix()}
}

// WriteMetadata records that the snapshot in dir was taken from source at t.
// The file is replaced atomically so the copy hard-linked from the previous
// snapshot is never modified.
func WriteMetadata(fsmgr FilesystemManager, dir, source string, t time.Time) error {
	return storeMetadata(fsmgr, dir, NewMetadata(source, t))
}

func storeMetadata(fsmgr FilesystemManager, dir string, m *Metadata) error {
	path := filepath.Join(dir, MetadataFileName)
	data, err := json.Marshal(m)
	if err != nil {
		return &IOError{Op: "encode metadata", Path: path, Err: err}
	}
	if err := fsmgr.WriteFile(path, data); err != nil {
		return &IOError{Op: "write metadata", Path: path, Err: err}
	}
	return nil
}

// ReadMetadata loads the metadata stored in dir. Unknown fields are ignored.
func ReadMetadata(fsmgr FilesystemManager, dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFileName)
	data, err := fsmgr.ReadFile(path)
	if err != nil {
		return nil, &CorruptMetadataError{Path: path, Err: err}
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &CorruptMetadataError{Path: path, Err: err}
	}
	if m.Source == "" {
		return nil, &CorruptMetadataError{Path: path, Err: errors.New("missing source")}
	}
	return &m, nil
}

// Forever is the elapsed time reported when there is no previous snapshot.
const Forever = time.Duration(math.MaxInt64)

// TimeSinceLatest returns how long ago latest was taken. The metadata epoch
// is preferred; the timestamp in the name is the fallback when metadata is
// unreadable. A nil latest yields Forever.
func TimeSinceLatest(fsmgr FilesystemManager, latest *Snapshot, now time.Time) time.Duration {
	if latest == nil {
		return Forever
	}
	taken := latest.Time
	if m, err := ReadMetadata(fsmgr, latest.Path); err == nil {
		taken = m.Time()
	}
	return now.Sub(taken)
}
