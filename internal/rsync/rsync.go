// Package rsync runs the external rsync binary as the snapshot syncer.
package rsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"ysnap/internal/ysnap"
)

// DefaultBinary is looked up in PATH when no binary is configured.
const DefaultBinary = "rsync"

// BaseFlags mirror the source exactly: archive mode with ACLs, xattrs,
// hard links and sparse files, deleting extraneous and excluded entries.
var BaseFlags = []string{"-aAXHSv", "--delete", "--delete-excluded"}

// outputTail bounds how much rsync output is kept for error reports.
const outputTail = 4096

// Syncer implements ysnap.Syncer with rsync.
type Syncer struct {
	binary string
	out    io.Writer
	logger ysnap.Logger
}

// NewSyncer creates a Syncer. If out is non-nil, rsync's output is streamed
// to it as well as kept for error reporting.
func NewSyncer(binary string, out io.Writer, logger ysnap.Logger) *Syncer {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Syncer{binary: binary, out: out, logger: logger}
}

// Command returns the rsync command line for req. The trailing slash on the
// source copies its contents rather than the directory itself.
func (s *Syncer) Command(req ysnap.SyncRequest) []string {
	args := make([]string, 0, len(BaseFlags)+3+len(req.Excludes))
	args = append(args, s.binary)
	args = append(args, BaseFlags...)
	args = append(args, strings.TrimRight(req.Source, "/")+"/", req.Destination)
	for _, ex := range req.Excludes {
		args = append(args, "--exclude="+ex)
	}
	return args
}

// Sync runs rsync and waits for it. Cancelling ctx kills the process.
func (s *Syncer) Sync(ctx context.Context, req ysnap.SyncRequest) error {
	args := s.Command(req)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	tail := &tailBuffer{max: outputTail}
	var w io.Writer = tail
	if s.out != nil {
		w = io.MultiWriter(tail, s.out)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	s.logger.Debug("running rsync", "cmd", strings.Join(args, " "))
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rsync interrupted: %w", ctxErr)
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &SyncToolError{
		Args:     args,
		ExitCode: exitCode,
		Output:   strings.TrimSpace(tail.String()),
		Err:      err,
	}
}

var _ ysnap.Syncer = (*Syncer)(nil)

// SyncToolError reports a failed rsync run. It matches ysnap.ErrSyncTool.
type SyncToolError struct {
	Args     []string
	ExitCode int
	// Output is the tail of the combined stdout and stderr.
	Output string
	Err    error
}

func (e *SyncToolError) Error() string {
	msg := fmt.Sprintf("rsync exited with code %d", e.ExitCode)
	if e.ExitCode < 0 {
		msg = "rsync failed to run"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.Output)
	}
	return msg
}

func (e *SyncToolError) Unwrap() error        { return e.Err }
func (e *SyncToolError) Is(target error) bool { return target == ysnap.ErrSyncTool }

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
