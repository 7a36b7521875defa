package ysnap

import (
	"fmt"
	"time"
)

// IncompletePolicy decides what a rotation does with a transient directory
// left behind by an earlier failed or interrupted rotation.
type IncompletePolicy string

const (
	// IncompleteResume reuses the leftover directory as the new clone.
	IncompleteResume IncompletePolicy = "resume"
	// IncompleteDiscard removes the leftover directory and starts over.
	IncompleteDiscard IncompletePolicy = "discard"
	// IncompleteFail aborts the rotation.
	IncompleteFail IncompletePolicy = "fail"
)

// ParseIncompletePolicy parses a policy name. The empty string means resume.
func ParseIncompletePolicy(s string) (IncompletePolicy, error) {
	switch IncompletePolicy(s) {
	case "", IncompleteResume:
		return IncompleteResume, nil
	case IncompleteDiscard:
		return IncompleteDiscard, nil
	case IncompleteFail:
		return IncompleteFail, nil
	}
	return "", fmt.Errorf("unknown incomplete policy %q (want resume, discard or fail)", s)
}

// RotationRequest is the input to one rotation.
type RotationRequest struct {
	// Source and Target must be absolute paths.
	Source string
	Target string

	// MaxToKeep is the retention count. Zero or negative disables pruning.
	MaxToKeep int
	Excludes  []string
	DryRun    bool

	// OnlyIfChanged skips the rotation when the synced payload is identical
	// to the latest snapshot's.
	OnlyIfChanged bool
	// MinDelay skips the rotation when the latest snapshot is younger.
	MinDelay time.Duration

	Incomplete IncompletePolicy
	// Owner, when set, is applied to the new snapshot directory.
	Owner *Owner
}

// RotationState is the progress of a rotation through the builder steps.
type RotationState string

const (
	StateStart           RotationState = "start"
	StateCloned          RotationState = "cloned"
	StateSynced          RotationState = "synced"
	StateMetadataWritten RotationState = "metadata-written"
	StatePublished       RotationState = "published"
	StateSkipped         RotationState = "skipped"
	StateFailed          RotationState = "failed"
)

// RotationResult is what a rotation did, or would have done in dry-run mode.
type RotationResult struct {
	OperationID string
	State       RotationState
	DryRun      bool

	// Snapshot is the published snapshot. Nil unless State is StatePublished.
	Snapshot   *Snapshot
	SkipReason string

	// Actions is every step performed (or planned), in order.
	Actions []Action

	Pruned      []Snapshot
	PruneErrors []error

	// LeftIncomplete is the transient directory a failed rotation left in
	// place for the next run. Empty if the failure came before it existed.
	LeftIncomplete string
}
