package ysnap

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. Every typed error below matches
// exactly one of them.
var (
	ErrInvalidTarget    = errors.New("invalid target")
	ErrInvalidSource    = errors.New("invalid source")
	ErrSyncTool         = errors.New("sync tool failed")
	ErrCorruptMetadata  = errors.New("corrupt metadata")
	ErrIO               = errors.New("i/o error")
	ErrNamingCollision  = errors.New("naming collision")
	ErrIncompleteExists = errors.New("incomplete snapshot exists")
)

// InvalidTargetError reports a target root that is missing or not a directory.
type InvalidTargetError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidTargetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid target %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid target %s: %s", e.Path, e.Reason)
}

func (e *InvalidTargetError) Unwrap() error        { return e.Err }
func (e *InvalidTargetError) Is(target error) bool { return target == ErrInvalidTarget }

// CorruptMetadataError reports a metadata file that is missing, unparsable,
// or lacks the required fields.
type CorruptMetadataError struct {
	Path string
	Err  error
}

func (e *CorruptMetadataError) Error() string {
	return fmt.Sprintf("corrupt metadata %s: %v", e.Path, e.Err)
}

func (e *CorruptMetadataError) Unwrap() error        { return e.Err }
func (e *CorruptMetadataError) Is(target error) bool { return target == ErrCorruptMetadata }

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIO }

// NamingCollisionError reports that a snapshot name is already taken.
type NamingCollisionError struct {
	Name string
}

func (e *NamingCollisionError) Error() string {
	return fmt.Sprintf("snapshot name collision: %s", e.Name)
}

func (e *NamingCollisionError) Is(target error) bool { return target == ErrNamingCollision }

// StepError annotates a rotation failure with the step that failed and the
// path it was operating on. The transient directory is left in place.
type StepError struct {
	Step ActionKind
	Path string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed on %s: %v", e.Step, e.Path, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
