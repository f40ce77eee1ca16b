// Package ids implements the depot's typed identifier scheme (§3): opaque
// strings with a kind prefix, e.g. "ver:3fae2b64-...".
package ids

import (
	"strings"

	"github.com/google/uuid"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// Kind is the short prefix identifying what an ID names.
type Kind string

const (
	KindArtifact   Kind = "art"
	KindVersion    Kind = "ver"
	KindProject    Kind = "proj"
	KindHistory    Kind = "hist"
	KindStep       Kind = "step"
	KindChange     Kind = "chg"
	KindSavePoint  Kind = "sp"
	KindWorkspace  Kind = "ws"
	KindConflict   Kind = "conf"
	KindUser       Kind = "usr"
	KindToken      Kind = "tok"
)

const separator = ":"

// New generates a fresh ID of the given kind.
func New(kind Kind) string {
	return string(kind) + separator + uuid.NewString()
}

// Parse splits an ID into its kind and opaque suffix, validating the kind
// matches one of the expected kinds (if any are given).
func Parse(id string, expected ...Kind) (Kind, string, error) {
	idx := strings.Index(id, separator)
	if idx <= 0 || idx == len(id)-1 {
		return "", "", errs.InvalidParamf("malformed identifier %q", id)
	}
	kind := Kind(id[:idx])
	suffix := id[idx+1:]
	if len(expected) > 0 {
		ok := false
		for _, k := range expected {
			if k == kind {
				ok = true
				break
			}
		}
		if !ok {
			return "", "", errs.InvalidParamf("identifier %q has kind %q, expected one of %v", id, kind, expected)
		}
	}
	return kind, suffix, nil
}

// HasKind reports whether id carries the given kind prefix.
func HasKind(id string, kind Kind) bool {
	k, _, err := Parse(id)
	return err == nil && k == kind
}
