package ysnap

import (
	"fmt"
	"time"
)

// SnapshotStatus describes a published snapshot for listing.
type SnapshotStatus struct {
	Snapshot
	// Source is empty when the metadata could not be read.
	Source string
	Taken  time.Time
	Age    time.Duration
	// MetadataErr is set when the metadata file is missing or corrupt.
	MetadataErr error
}

// GetStatus returns every snapshot under target, oldest first, with the
// source and age recorded in its metadata.
func (s *Service) GetStatus(target *Path) ([]*SnapshotStatus, error) {
	s.logger.Debug("listing snapshots", "target", target.String())

	if !target.IsDir() {
		return nil, &InvalidTargetError{Path: target.String(), Reason: "not a directory"}
	}

	snaps, err := ListSnapshots(s.fsmgr, target.String(), s.naming)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	now := s.clock.Now()
	statuses := make([]*SnapshotStatus, 0, len(snaps))
	for _, snap := range snaps {
		st := &SnapshotStatus{Snapshot: snap, Taken: snap.Time}
		m, err := ReadMetadata(s.fsmgr, snap.Path)
		if err != nil {
			// Fall back to the name timestamp.
			st.MetadataErr = err
		} else {
			st.Source = m.Source
			st.Taken = m.Time()
		}
		st.Age = now.Sub(st.Taken)
		statuses = append(statuses, st)
	}
	return statuses, nil
}
