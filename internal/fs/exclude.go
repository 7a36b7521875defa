package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// excludePattern is a parsed exclude pattern with its matching strategy.
type excludePattern struct {
	pattern  string
	anchored bool // leading '/': match from the transfer root only
	dirOnly  bool // trailing '/': match directories only
	segments int  // number of path segments the pattern spans
}

// ExcludeMatcher applies rsync-style --exclude patterns to paths relative to
// the transfer root.
// Patterns without '/' match the basename at any depth.
// Patterns with an inner '/' match the trailing segments of the path.
// A leading '/' anchors the pattern at the root; a trailing '/' limits it to directories.
type ExcludeMatcher struct {
	patterns []excludePattern
}

// NewExcludeMatcher creates an ExcludeMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewExcludeMatcher(rawPatterns []string) *ExcludeMatcher {
	var patterns []excludePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := excludePattern{}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		if strings.HasPrefix(raw, "/") {
			p.anchored = true
			raw = strings.TrimLeft(raw, "/")
		}
		if raw == "" {
			continue
		}
		p.pattern = raw
		p.segments = strings.Count(raw, "/") + 1
		patterns = append(patterns, p)
	}
	return &ExcludeMatcher{patterns: patterns}
}

// Match reports whether the given relative path is excluded.
func (m *ExcludeMatcher) Match(relativePath string, isDir bool) bool {
	if len(m.patterns) == 0 {
		return false
	}

	// Normalize to forward slashes for consistent matching.
	segs := strings.Split(filepath.ToSlash(relativePath), "/")

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		var subject string
		switch {
		case p.anchored:
			if len(segs) != p.segments {
				continue
			}
			subject = strings.Join(segs, "/")
		default:
			if len(segs) < p.segments {
				continue
			}
			subject = strings.Join(segs[len(segs)-p.segments:], "/")
		}
		matched, err := filepath.Match(p.pattern, subject)
		if err != nil {
			// Bad pattern: skip rather than crash.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// MatchTree reports whether the directory at relativePath is excluded,
// either itself or through one of its parents.
func (m *ExcludeMatcher) MatchTree(relativePath string) bool {
	segs := strings.Split(filepath.ToSlash(filepath.Clean(relativePath)), "/")
	for i := 1; i <= len(segs); i++ {
		if m.Match(strings.Join(segs[:i], "/"), true) {
			return true
		}
	}
	return false
}

// ParseExcludeFile reads an exclude file (one pattern per line) and returns
// the raw pattern strings, in the format of rsync --exclude-from.
func ParseExcludeFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening exclude file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}
	return patterns, nil
}
