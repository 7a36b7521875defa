package ysnap

import "context"

// SyncRequest describes one mirror operation from Source into Destination.
type SyncRequest struct {
	Source      string
	Destination string
	Excludes    []string
}

// Syncer makes Destination an exact mirror of Source, deleting extraneous
// and excluded entries. Files it leaves untouched must keep their inode so
// hard links to the previous snapshot survive.
type Syncer interface {
	// Command returns the external command line Sync would run, for logging.
	Command(req SyncRequest) []string
	Sync(ctx context.Context, req SyncRequest) error
}
