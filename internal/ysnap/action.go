package ysnap

import (
	"fmt"
	"strings"
)

// ActionKind identifies a single mutating step of a rotation.
type ActionKind string

const (
	ActionMkdir         ActionKind = "mkdir"
	ActionClone         ActionKind = "clone"
	ActionChown         ActionKind = "chown"
	ActionSync          ActionKind = "sync"
	ActionWriteMetadata ActionKind = "write-metadata"
	ActionRename        ActionKind = "rename"
	ActionRemove        ActionKind = "remove"
)

// Action is a planned mutating step. The same value is logged in dry-run
// mode and executed otherwise.
type Action struct {
	Kind ActionKind

	// Src is the path the action reads from, if any.
	Src string
	// Dst is the path the action creates, changes or removes.
	Dst string

	// Owner is set for ActionChown.
	Owner Owner
	// Args is the full external command line for ActionSync.
	Args []string
	// Excludes are the patterns passed to the syncer by ActionSync.
	Excludes []string
	// Metadata is the content written by ActionWriteMetadata.
	Metadata *Metadata
}

// String renders the action as the equivalent shell command, or as a
// bracketed description for steps that have no single shell equivalent.
func (a Action) String() string {
	switch a.Kind {
	case ActionMkdir:
		return "mkdir " + a.Dst
	case ActionClone:
		return fmt.Sprintf("cp -al %s %s", a.Src, a.Dst)
	case ActionChown:
		return fmt.Sprintf("chown %s %s", a.Owner, a.Dst)
	case ActionSync:
		return strings.Join(a.Args, " ")
	case ActionWriteMetadata:
		return fmt.Sprintf("[Store metadata at %s]", a.Dst)
	case ActionRename:
		return fmt.Sprintf("[Rename %s to %s]", a.Src, a.Dst)
	case ActionRemove:
		return "rm -r " + a.Dst
	default:
		return fmt.Sprintf("[%s %s]", a.Kind, a.Dst)
	}
}

// Strings renders each action in order.
func Strings(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}
