package ysnap

import (
	"database/sql"
	"fmt"
	"time"
)

// RotationStatus is the recorded outcome of a rotation.
type RotationStatus string

const (
	StatusRunning RotationStatus = "running"
	StatusSuccess RotationStatus = "success"
	StatusSkipped RotationStatus = "skipped"
	StatusError   RotationStatus = "error"
)

// RotationRecord is one row of the rotation history.
type RotationRecord struct {
	ID          int64
	OperationID string
	Source      string
	Target      string
	StartedAt   time.Time
	FinishedAt  sql.NullTime
	Status      RotationStatus
	Snapshot    string
	Pruned      int
	Actions     int

	// Message is the error text or skip reason.
	Message string
}

// History persists a ledger of rotations.
type History interface {
	// StartRotation inserts rec with StatusRunning and sets rec.ID.
	StartRotation(rec *RotationRecord) error
	// FinishRotation updates the outcome columns of rec.
	FinishRotation(rec *RotationRecord) error
	// ListRotations returns the most recent rotations, newest first.
	ListRotations(limit int) ([]*RotationRecord, error)
	Close() error
}

// GetHistory returns the most recent rotations, ordered newest first.
func (s *Service) GetHistory(limit int) ([]*RotationRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	recs, err := s.history.ListRotations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing rotations: %w", err)
	}
	return recs, nil
}

func (s *Service) startRecord(opID string, req RotationRequest, now time.Time) *RotationRecord {
	// Dry runs leave no trace in the history.
	if s.history == nil || req.DryRun {
		return nil
	}
	rec := &RotationRecord{
		OperationID: opID,
		Source:      req.Source,
		Target:      req.Target,
		StartedAt:   now,
		Status:      StatusRunning,
	}
	if err := s.history.StartRotation(rec); err != nil {
		s.logger.Warn("recording rotation start failed", "error", err)
		return nil
	}
	return rec
}

func (s *Service) finishRecord(rec *RotationRecord, result *RotationResult, rotErr error) {
	if rec == nil {
		return
	}
	rec.FinishedAt = sql.NullTime{Time: s.clock.Now(), Valid: true}
	rec.Actions = len(result.Actions)
	rec.Pruned = len(result.Pruned)
	if result.Snapshot != nil {
		rec.Snapshot = result.Snapshot.Name
	}

	switch {
	case rotErr != nil:
		rec.Status = StatusError
		rec.Message = rotErr.Error()
	case result.State == StateSkipped:
		rec.Status = StatusSkipped
		rec.Message = result.SkipReason
	default:
		rec.Status = StatusSuccess
	}

	if err := s.history.FinishRotation(rec); err != nil {
		s.logger.Warn("recording rotation outcome failed", "error", err)
	}
}
