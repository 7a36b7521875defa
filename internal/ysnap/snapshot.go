package ysnap

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot is a complete, published snapshot directory.
type Snapshot struct {
	Name string
	Path string
	Time time.Time
}

// PayloadPath is the mirrored source tree inside the snapshot.
func (s Snapshot) PayloadPath() string {
	return filepath.Join(s.Path, PayloadDirName)
}

// MetadataPath is the metadata file inside the snapshot.
func (s Snapshot) MetadataPath() string {
	return filepath.Join(s.Path, MetadataFileName)
}

// ListSnapshots returns the complete snapshots directly under root, oldest
// first. Only directories named prefix + valid timestamp are included; the
// transient directory and anything else sharing the prefix are ignored.
func ListSnapshots(fsmgr FilesystemManager, root string, naming Naming) ([]Snapshot, error) {
	info, err := fsmgr.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &InvalidTargetError{Path: root, Reason: "does not exist"}
		}
		return nil, &InvalidTargetError{Path: root, Reason: "cannot stat", Err: err}
	}
	if !info.IsDir() {
		return nil, &InvalidTargetError{Path: root, Reason: "not a directory"}
	}

	entries, err := fsmgr.ReadDir(root)
	if err != nil {
		return nil, &InvalidTargetError{Path: root, Reason: "cannot list", Err: err}
	}

	var snaps []Snapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, ok := naming.ParseName(e.Name())
		if !ok {
			continue
		}
		snaps = append(snaps, Snapshot{
			Name: e.Name(),
			Path: filepath.Join(root, e.Name()),
			Time: t,
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Name < snaps[j].Name
	})
	return snaps, nil
}

// Latest returns the newest snapshot, or nil if there is none.
func Latest(snaps []Snapshot) *Snapshot {
	if len(snaps) == 0 {
		return nil
	}
	s := snaps[len(snaps)-1]
	return &s
}
