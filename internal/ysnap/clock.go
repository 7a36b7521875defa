package ysnap

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so rotations are deterministic in tests.
// Snapshot names are formatted in the location of the returned time.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current local time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
