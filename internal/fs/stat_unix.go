//go:build unix

package fs

import (
	"io/fs"
	"syscall"
)

// ownerOf extracts the numeric owner from a FileInfo.
func ownerOf(info fs.FileInfo) (uid, gid int, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return int(stat.Uid), int(stat.Gid), true
}
