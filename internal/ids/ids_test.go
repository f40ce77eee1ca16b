package ids

import (
	"testing"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

func TestNewParseRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindArtifact, KindVersion, KindProject, KindWorkspace, KindUser, KindToken} {
		id := New(k)
		gotKind, suffix, err := Parse(id)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", id, err)
		}
		if gotKind != k {
			t.Errorf("expected kind %q, got %q", k, gotKind)
		}
		if suffix == "" {
			t.Error("expected a non-empty opaque suffix")
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{"", "noseparator", ":emptykind", "kind:"}
	for _, s := range cases {
		if _, _, err := Parse(s); !errs.Is(err, errs.InvalidParameter) {
			t.Errorf("Parse(%q): expected InvalidParameter kind, got %v", s, err)
		}
	}
}

func TestParseRejectsUnexpectedKind(t *testing.T) {
	id := New(KindUser)
	if _, _, err := Parse(id, KindToken); !errs.Is(err, errs.InvalidParameter) {
		t.Errorf("expected InvalidParameter kind for mismatched expected kind, got %v", err)
	}
}

func TestHasKind(t *testing.T) {
	id := New(KindWorkspace)
	if !HasKind(id, KindWorkspace) {
		t.Error("expected HasKind to recognize its own kind")
	}
	if HasKind(id, KindUser) {
		t.Error("expected HasKind to reject a different kind")
	}
	if HasKind("malformed", KindUser) {
		t.Error("expected HasKind to reject a malformed ID")
	}
}
