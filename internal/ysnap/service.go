package ysnap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// Service rotates snapshots in a target directory. It coordinates the
// filesystem, the external syncer and the rotation history.
type Service struct {
	history History
	fsmgr   FilesystemManager
	syncer  Syncer
	naming  Naming
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewService creates a new Service with the provided dependencies.
// history may be nil, in which case rotations are not recorded.
func NewService(history History, fsmgr FilesystemManager, syncer Syncer, naming Naming, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		history: history,
		fsmgr:   fsmgr,
		syncer:  syncer,
		naming:  naming,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Rotate creates a new snapshot of req.Source in req.Target and prunes old
// snapshots beyond req.MaxToKeep.
//
// The result is always returned, also on error, so callers can report the
// steps that completed. On error the transient directory is left in place.
// Pruning failures do not fail the rotation; they are listed in
// RotationResult.PruneErrors.
func (s *Service) Rotate(ctx context.Context, req RotationRequest) (*RotationResult, error) {
	now := s.clock.Now()
	r := &rotation{
		Service: s,
		ctx:     ctx,
		req:     req,
		now:     now,
		result: &RotationResult{
			OperationID: s.idgen.New(),
			State:       StateStart,
			DryRun:      req.DryRun,
		},
	}

	rec := s.startRecord(r.result.OperationID, req, now)
	err := r.run()
	if err != nil {
		r.result.State = StateFailed
		if r.hasTransient && !req.DryRun {
			r.result.LeftIncomplete = r.transient
		}
		s.logger.Error("rotation failed", "op", r.result.OperationID, "target", req.Target, "error", err)
	}
	s.finishRecord(rec, r.result, err)
	return r.result, err
}

// rotation holds the state of a single Rotate call.
type rotation struct {
	*Service
	ctx    context.Context
	req    RotationRequest
	now    time.Time
	result *RotationResult

	transient    string
	hasTransient bool // transient exists and belongs to this rotation
}

func (r *rotation) run() error {
	if err := r.naming.Validate(); err != nil {
		return err
	}
	if err := r.checkSource(); err != nil {
		return err
	}

	snaps, err := ListSnapshots(r.fsmgr, r.req.Target, r.naming)
	if err != nil {
		return err
	}
	latest := Latest(snaps)
	r.transient = filepath.Join(r.req.Target, r.naming.TransientName())

	if r.req.MinDelay > 0 && latest != nil {
		elapsed := TimeSinceLatest(r.fsmgr, latest, r.now)
		if elapsed < r.req.MinDelay {
			r.skip(fmt.Sprintf("latest snapshot %s is %s old, minimum delay is %s",
				latest.Name, elapsed.Round(time.Second), r.req.MinDelay))
			return nil
		}
	}

	final := Snapshot{
		Name: r.naming.SnapshotName(r.now),
		Time: r.now,
	}
	final.Path = filepath.Join(r.req.Target, final.Name)
	if err := r.checkFree(final); err != nil {
		return err
	}

	resumed, err := r.handleLeftover()
	if err != nil {
		return err
	}

	if !resumed {
		if latest != nil {
			err = r.do(Action{Kind: ActionClone, Src: latest.Path, Dst: r.transient})
		} else {
			err = r.do(Action{Kind: ActionMkdir, Dst: r.transient})
		}
		if err != nil {
			// A failed clone can leave a partial copy behind.
			if _, serr := r.fsmgr.Stat(r.transient); serr == nil && !r.req.DryRun {
				r.hasTransient = true
			}
			return err
		}
	}
	r.hasTransient = true
	r.result.State = StateCloned

	if r.req.Owner != nil {
		if err := r.do(Action{Kind: ActionChown, Dst: r.transient, Owner: *r.req.Owner}); err != nil {
			return err
		}
	}

	sreq := SyncRequest{
		Source:      r.req.Source,
		Destination: filepath.Join(r.transient, PayloadDirName),
		Excludes:    r.req.Excludes,
	}
	if err := r.do(Action{
		Kind:     ActionSync,
		Src:      sreq.Source,
		Dst:      sreq.Destination,
		Args:     r.syncer.Command(sreq),
		Excludes: sreq.Excludes,
	}); err != nil {
		return err
	}
	r.result.State = StateSynced

	if r.req.OnlyIfChanged && latest != nil {
		unchanged, err := r.unchangedSince(latest, sreq.Destination)
		if err != nil {
			return err
		}
		if unchanged {
			if err := r.do(Action{Kind: ActionRemove, Dst: r.transient}); err != nil {
				return err
			}
			r.hasTransient = false
			r.skip("no changes since " + latest.Name)
			return nil
		}
	}

	if err := r.do(Action{
		Kind:     ActionWriteMetadata,
		Dst:      filepath.Join(r.transient, MetadataFileName),
		Metadata: NewMetadata(r.req.Source, r.now),
	}); err != nil {
		return err
	}
	r.result.State = StateMetadataWritten

	if err := r.checkFree(final); err != nil {
		return err
	}
	if err := r.do(Action{Kind: ActionRename, Src: r.transient, Dst: final.Path}); err != nil {
		return err
	}
	r.hasTransient = false
	r.result.State = StatePublished
	r.result.Snapshot = &final
	r.logger.Info("snapshot published", "op", r.result.OperationID, "snapshot", final.Path, "dry_run", r.req.DryRun)

	if latest != nil && final.Name < latest.Name {
		r.logger.Warn("clock is behind the latest snapshot; new snapshot sorts before it",
			"op", r.result.OperationID, "snapshot", final.Name, "latest", latest.Name)
	}
	r.prune(append(snaps, final), final.Name)
	return nil
}

// checkSource requires the source to be an existing directory.
func (r *rotation) checkSource() error {
	info, err := r.fsmgr.Stat(r.req.Source)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSource, r.req.Source, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidSource, r.req.Source)
	}
	return nil
}

// checkFree fails if a directory named like snap already exists.
func (r *rotation) checkFree(snap Snapshot) error {
	_, err := r.fsmgr.Stat(snap.Path)
	if err == nil {
		return &NamingCollisionError{Name: snap.Name}
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "stat", Path: snap.Path, Err: err}
	}
	return nil
}

// handleLeftover applies the incomplete policy to a transient directory left
// by an earlier rotation. Returns true if the leftover is reused.
func (r *rotation) handleLeftover() (bool, error) {
	info, err := r.fsmgr.Stat(r.transient)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &IOError{Op: "stat", Path: r.transient, Err: err}
	}

	policy := r.req.Incomplete
	if policy == "" {
		policy = IncompleteResume
	}
	if !info.IsDir() && policy == IncompleteResume {
		policy = IncompleteFail
	}

	switch policy {
	case IncompleteResume:
		r.logger.Info("resuming incomplete snapshot", "op", r.result.OperationID, "path", r.transient)
		return true, nil
	case IncompleteDiscard:
		r.logger.Info("discarding incomplete snapshot", "op", r.result.OperationID, "path", r.transient)
		return false, r.do(Action{Kind: ActionRemove, Dst: r.transient})
	default:
		return false, &IOError{Op: "found leftover", Path: r.transient, Err: ErrIncompleteExists}
	}
}

// unchangedSince reports whether payload is a hard-linked replica of the
// latest snapshot's payload. Nothing has been synced in dry-run mode, so the
// answer is always false there.
func (r *rotation) unchangedSince(latest *Snapshot, payload string) (bool, error) {
	if r.req.DryRun {
		r.logger.Debug("change detection needs a real sync, skipped in dry-run", "op", r.result.OperationID)
		return false, nil
	}
	if err := r.ctx.Err(); err != nil {
		return false, &StepError{Step: ActionSync, Path: payload, Err: err}
	}
	same, err := r.fsmgr.IsHardlinkedReplica(payload, latest.PayloadPath())
	if err != nil {
		r.logger.Warn("change detection failed, assuming changed", "op", r.result.OperationID, "error", err)
		return false, nil
	}
	return same, nil
}

func (r *rotation) skip(reason string) {
	r.result.State = StateSkipped
	r.result.SkipReason = reason
	r.logger.Info("rotation skipped", "op", r.result.OperationID, "reason", reason)
}

// prune removes the oldest snapshots beyond MaxToKeep, never the one named
// keep. Failures are collected and never abort the loop.
func (r *rotation) prune(snaps []Snapshot, keep string) {
	victims, err := PlanPruneKeeping(snaps, r.req.MaxToKeep, keep)
	if err != nil {
		r.logger.Error("planning prune failed", "op", r.result.OperationID, "error", err)
		r.result.PruneErrors = append(r.result.PruneErrors, err)
		return
	}
	for _, v := range victims {
		if err := r.do(Action{Kind: ActionRemove, Dst: v.Path}); err != nil {
			r.logger.Error("pruning snapshot failed", "op", r.result.OperationID, "snapshot", v.Path, "error", err)
			r.result.PruneErrors = append(r.result.PruneErrors, err)
			continue
		}
		r.result.Pruned = append(r.result.Pruned, v)
	}
}

// do logs a and executes it unless this is a dry run. Only actions that
// completed (or would have run) are appended to the action log.
func (r *rotation) do(a Action) error {
	if err := r.ctx.Err(); err != nil {
		return &StepError{Step: a.Kind, Path: a.Dst, Err: err}
	}
	r.logger.Info("action", "op", r.result.OperationID, "cmd", a.String(), "dry_run", r.req.DryRun)
	if !r.req.DryRun {
		if err := r.apply(a); err != nil {
			return &StepError{Step: a.Kind, Path: a.Dst, Err: err}
		}
	}
	r.result.Actions = append(r.result.Actions, a)
	return nil
}

func (r *rotation) apply(a Action) error {
	switch a.Kind {
	case ActionMkdir:
		if err := r.fsmgr.Mkdir(a.Dst); err != nil {
			return &IOError{Op: "mkdir", Path: a.Dst, Err: err}
		}
	case ActionClone:
		if err := r.fsmgr.CloneTree(a.Src, a.Dst); err != nil {
			return &IOError{Op: "clone", Path: a.Dst, Err: err}
		}
	case ActionChown:
		if err := r.fsmgr.Chown(a.Dst, a.Owner); err != nil {
			return &IOError{Op: "chown", Path: a.Dst, Err: err}
		}
	case ActionSync:
		return r.syncer.Sync(r.ctx, SyncRequest{Source: a.Src, Destination: a.Dst, Excludes: a.Excludes})
	case ActionWriteMetadata:
		return storeMetadata(r.fsmgr, filepath.Dir(a.Dst), a.Metadata)
	case ActionRename:
		if err := r.fsmgr.Rename(a.Src, a.Dst); err != nil {
			return &IOError{Op: "rename", Path: a.Src, Err: err}
		}
	case ActionRemove:
		if err := r.fsmgr.RemoveAll(a.Dst); err != nil {
			return &IOError{Op: "remove", Path: a.Dst, Err: err}
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}
