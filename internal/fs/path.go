package fs

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"ysnap/internal/ysnap"
)

// ExpandPath expands environment variables ($VAR and ${VAR}), a leading ~ or
// ~user, and relative segments, and returns a clean absolute path. The path
// does not need to exist.
func ExpandPath(raw string) (string, error) {
	p := os.ExpandEnv(raw)

	if strings.HasPrefix(p, "~") {
		name, rest, _ := strings.Cut(p[1:], string(filepath.Separator))
		var home string
		if name == "" {
			h, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("expanding ~: %w", err)
			}
			home = h
		} else {
			u, err := user.Lookup(name)
			if err != nil {
				return "", fmt.Errorf("expanding ~%s: %w", name, err)
			}
			home = u.HomeDir
		}
		p = filepath.Join(home, rest)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return abs, nil
}

// InvokingOwner returns the user that started the process. Under sudo that
// is the user from SUDO_UID and SUDO_GID rather than root.
func InvokingOwner() ysnap.Owner {
	owner := ysnap.Owner{UID: os.Getuid(), GID: os.Getgid()}
	if uid, err := strconv.Atoi(os.Getenv("SUDO_UID")); err == nil {
		owner.UID = uid
	}
	if gid, err := strconv.Atoi(os.Getenv("SUDO_GID")); err == nil {
		owner.GID = gid
	}
	return owner
}
