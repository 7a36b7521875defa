package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ysnap/internal/config"
	"ysnap/internal/fs"
	"ysnap/internal/interval"
	"ysnap/internal/ysnap"
)

// BackupOptions are the raw, user-supplied parameters of one rotation, as
// given on the command line or in a [[jobs]] entry.
type BackupOptions struct {
	Source        string
	Target        string
	MaxToKeep     int
	Excludes      []string
	ExcludeFrom   string
	DryRun        bool
	OnlyIfChanged bool
	MinDelay      string // e.g. "2h", "1 day"
	Incomplete    string // resume, discard or fail
}

// JobOptions converts a configured job into BackupOptions.
func JobOptions(job config.JobConfig, dryRun bool) BackupOptions {
	return BackupOptions{
		Source:        job.Source,
		Target:        job.Target,
		MaxToKeep:     job.MaxToKeep,
		Excludes:      job.Excludes,
		ExcludeFrom:   job.ExcludeFrom,
		DryRun:        dryRun,
		OnlyIfChanged: job.OnlyIfChanged,
		MinDelay:      job.MinDelay,
		Incomplete:    job.Incomplete,
	}
}

// buildRequest resolves paths and parses the textual options.
// The target must already exist as a directory.
func buildRequest(fsmgr ysnap.FilesystemManager, opts BackupOptions) (ysnap.RotationRequest, error) {
	var req ysnap.RotationRequest

	if opts.Source == "" {
		return req, fmt.Errorf("%w: no source given", ysnap.ErrInvalidSource)
	}
	src, err := fsmgr.Resolve(opts.Source)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ysnap.ErrInvalidSource, err)
	}
	if !src.IsDir() {
		return req, fmt.Errorf("%w: %s is not a directory", ysnap.ErrInvalidSource, src)
	}

	if opts.Target == "" {
		return req, &ysnap.InvalidTargetError{Path: opts.Target, Reason: "no backup path given"}
	}
	dst, err := fsmgr.Resolve(opts.Target)
	if err != nil {
		return req, &ysnap.InvalidTargetError{Path: opts.Target, Reason: "cannot resolve", Err: err}
	}
	if !dst.IsDir() {
		return req, &ysnap.InvalidTargetError{Path: dst.String(), Reason: "not a directory"}
	}

	var minDelay time.Duration
	if opts.MinDelay != "" {
		minDelay, err = interval.Parse(opts.MinDelay)
		if err != nil {
			return req, fmt.Errorf("min-delay: %w", err)
		}
	}
	policy, err := ysnap.ParseIncompletePolicy(opts.Incomplete)
	if err != nil {
		return req, err
	}

	excludes := append([]string(nil), opts.Excludes...)
	if opts.ExcludeFrom != "" {
		path, err := fs.ExpandPath(opts.ExcludeFrom)
		if err != nil {
			return req, fmt.Errorf("exclude-from: %w", err)
		}
		patterns, err := fs.ParseExcludeFile(path)
		if err != nil {
			return req, fmt.Errorf("exclude-from: %w", err)
		}
		excludes = append(excludes, patterns...)
	}

	req = ysnap.RotationRequest{
		Source:        src.String(),
		Target:        dst.String(),
		MaxToKeep:     opts.MaxToKeep,
		Excludes:      excludes,
		DryRun:        opts.DryRun,
		OnlyIfChanged: opts.OnlyIfChanged,
		MinDelay:      minDelay,
		Incomplete:    policy,
	}

	// Under sudo the snapshot goes to the invoking user, not root.
	owner := fs.InvokingOwner()
	req.Owner = &owner
	return req, nil
}

// unexcludedTarget reports whether the target lies inside the source without
// an exclude pattern covering it. Each snapshot would then be copied into
// the next one.
func unexcludedTarget(req ysnap.RotationRequest) bool {
	rel, err := filepath.Rel(req.Source, req.Target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if rel == "." {
		return true
	}
	return !fs.NewExcludeMatcher(req.Excludes).MatchTree(rel)
}
