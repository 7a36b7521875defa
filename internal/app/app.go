package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	"ysnap/internal/config"
	"ysnap/internal/database"
	"ysnap/internal/fs"
	"ysnap/internal/lock"
	"ysnap/internal/rsync"
	"ysnap/internal/scheduler"
	"ysnap/internal/ysnap"
)

// Options controls how the app reports progress.
type Options struct {
	// Verbose lowers the stderr log level from WARN to INFO.
	Verbose bool
	// SyncOutput receives rsync's output while it runs. Nil keeps it quiet.
	SyncOutput io.Writer
}

// YSnapApp is the application layer between the CLI and the rotation Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the history DB lifecycle on Close.
type YSnapApp struct {
	cfg     *config.Config
	history ysnap.History
	fsmgr   ysnap.FilesystemManager
	service *ysnap.Service
	logger  *slog.Logger
	logFile *os.File
}

// NewYSnapApp creates a fully wired YSnapApp from the given config.
// The caller must call Close when done.
func NewYSnapApp(cfg *config.Config, opts Options) (*YSnapApp, error) {
	naming := ysnap.Naming{Prefix: cfg.Naming.Prefix}
	if err := naming.Validate(); err != nil {
		return nil, fmt.Errorf("invalid naming config: %w", err)
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelInfo
	}
	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	history, err := database.NewHistoryFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager()
	syncer := rsync.NewSyncer(cfg.Rsync.Path, opts.SyncOutput, logger)
	svc := ysnap.NewService(history, fsmgr, syncer, naming, logger, ysnap.RealClock{}, ysnap.UUIDGenerator{})

	return &YSnapApp{
		cfg:     cfg,
		history: history,
		fsmgr:   fsmgr,
		service: svc,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Backup runs one rotation. Outside dry-run mode the target is locked for
// the duration, so concurrent rotations of the same target fail fast.
// The result is returned whenever the rotation started, also on error.
func (a *YSnapApp) Backup(ctx context.Context, opts BackupOptions) (*ysnap.RotationResult, error) {
	req, err := buildRequest(a.fsmgr, opts)
	if err != nil {
		return nil, err
	}

	if !req.DryRun {
		l := lock.New(req.Target)
		if err := l.Acquire(); err != nil {
			return nil, err
		}
		defer func() {
			if err := l.Release(); err != nil {
				a.logger.Warn("releasing lock failed", "lock", l.Path(), "error", err)
			}
		}()
	}

	if unexcludedTarget(req) {
		a.logger.Warn("backup path is inside the source; add it to the excludes", "source", req.Source, "target", req.Target)
	}
	a.logger.Info("rotation starting", "source", req.Source, "target", req.Target, "dry_run", req.DryRun)
	return a.service.Rotate(ctx, req)
}

// JobResult is the outcome of one configured job.
type JobResult struct {
	Job    string
	Result *ysnap.RotationResult
	Err    error
}

// RunJob runs the configured job with the given name once.
func (a *YSnapApp) RunJob(ctx context.Context, name string, dryRun bool) (*ysnap.RotationResult, error) {
	job, err := a.cfg.FindJob(name)
	if err != nil {
		return nil, err
	}
	a.logger.Info("running job", "job", job.Name)
	return a.Backup(ctx, JobOptions(*job, dryRun))
}

// RunJobs runs the named jobs, or all configured jobs if names is empty, one
// after the other. A failing job does not stop the others; the returned error
// combines every failure.
func (a *YSnapApp) RunJobs(ctx context.Context, names []string, dryRun bool) ([]JobResult, error) {
	if len(names) == 0 {
		for _, job := range a.cfg.Jobs {
			names = append(names, job.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no jobs configured")
	}

	var errs *multierror.Error
	results := make([]JobResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		res, err := a.RunJob(ctx, name, dryRun)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("job %q: %w", name, err))
		}
		results = append(results, JobResult{Job: name, Result: res, Err: err})
	}
	return results, errs.ErrorOrNil()
}

// Daemon runs every job that has a schedule until ctx is cancelled.
func (a *YSnapApp) Daemon(ctx context.Context) error {
	sched := scheduler.New(a.logger, func(ctx context.Context, job config.JobConfig) error {
		_, err := a.Backup(ctx, JobOptions(job, false))
		return err
	})

	for _, job := range a.cfg.Jobs {
		if job.Schedule == "" {
			a.logger.Debug("job has no schedule", "job", job.Name)
			continue
		}
		if err := sched.Add(job); err != nil {
			return err
		}
	}
	return sched.Run(ctx)
}

// Snapshots lists the snapshots in the given backup directory.
func (a *YSnapApp) Snapshots(rawTarget string) ([]*ysnap.SnapshotStatus, error) {
	p, err := a.fsmgr.Resolve(rawTarget)
	if err != nil {
		return nil, &ysnap.InvalidTargetError{Path: rawTarget, Reason: "cannot resolve", Err: err}
	}
	return a.service.GetStatus(p)
}

// GetHistory returns the most recent rotations.
func (a *YSnapApp) GetHistory(limit int) ([]*ysnap.RotationRecord, error) {
	return a.service.GetHistory(limit)
}

// Close closes the history database and the log file.
func (a *YSnapApp) Close() error {
	var firstErr error
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = fmt.Errorf("closing history database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
