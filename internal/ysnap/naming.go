package ysnap

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultPrefix starts every snapshot directory name.
	DefaultPrefix = "ysnap_"
	// TimestampLayout is the time part of a snapshot name. Lexicographic
	// order of formatted names equals chronological order.
	TimestampLayout = "20060102_150405"
	// MetadataFileName is the metadata file inside each snapshot.
	MetadataFileName = "backup_context.json"
	// PayloadDirName holds the mirrored source tree inside each snapshot.
	PayloadDirName = "payload"

	incompleteSuffix = "_incomplete"
)

// Naming maps snapshot times to directory names and back.
type Naming struct {
	Prefix string
}

// DefaultNaming uses DefaultPrefix.
func DefaultNaming() Naming {
	return Naming{Prefix: DefaultPrefix}
}

// Validate rejects prefixes that would break the naming scheme.
func (n Naming) Validate() error {
	if n.Prefix == "" {
		return fmt.Errorf("snapshot prefix must not be empty")
	}
	if strings.ContainsAny(n.Prefix, `/\`) {
		return fmt.Errorf("snapshot prefix must not contain a path separator: %q", n.Prefix)
	}
	return nil
}

// SnapshotName returns the final directory name for a snapshot taken at t.
// The time is formatted in its own location.
func (n Naming) SnapshotName(t time.Time) string {
	return n.Prefix + t.Format(TimestampLayout)
}

// TransientName returns the name a snapshot is built under before it is
// published. It never parses as a snapshot name.
func (n Naming) TransientName() string {
	return n.Prefix + incompleteSuffix
}

// ParseName extracts the snapshot time from a directory name.
// Returns false for any name that is not prefix + valid timestamp.
func (n Naming) ParseName(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, n.Prefix)
	if !ok || len(rest) != len(TimestampLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, rest, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
