package artifact

import (
	"context"
	"testing"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
)

// buildVersionDAG constructs the version graph from the nearest-common-
// ancestor scenario:
//
//	A←B←C, A←B←G, A←D←E, C←F, G←F, G←J, E←I, F←I, G←K, I←K, E←L, E←H
//
// ("X←Y" reads "Y's parent is X"), all versions of one artifact.
func buildVersionDAG(t *testing.T) (*Store, map[string]string) {
	t.Helper()
	ctx := context.Background()
	db := kv.NewMemoryStore()
	s := NewStore(db)

	art, a, err := s.CreateArtifact(ctx, "proj", "text", "alice", "a", nil)
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	ids := map[string]string{"A": a.ID}

	mk := func(name string, parents ...string) {
		parentIDs := make([]string, len(parents))
		for i, p := range parents {
			parentIDs[i] = ids[p]
		}
		v, err := s.CreateVersion(ctx, art.ID, "text", "alice", name, parentIDs, nil)
		if err != nil {
			t.Fatalf("CreateVersion(%s) failed: %v", name, err)
		}
		ids[name] = v.ID
	}

	mk("B", "A")
	mk("D", "A")
	mk("C", "B")
	mk("G", "B")
	mk("E", "D")
	mk("F", "C", "G")
	mk("J", "G")
	mk("I", "E", "F")
	mk("K", "G", "I")
	mk("L", "E")
	mk("H", "E")

	return s, ids
}

func TestNCAScenario(t *testing.T) {
	s, ids := buildVersionDAG(t)
	ctx := context.Background()

	cases := []struct {
		x, y, want string
	}{
		{"C", "J", "B"},
		{"H", "J", "A"},
		{"H", "K", "E"},
		{"I", "G", "G"},
		{"G", "I", "G"},
	}
	for _, c := range cases {
		got, err := s.NCA(ctx, ids[c.x], ids[c.y])
		if err != nil {
			t.Fatalf("NCA(%s,%s) failed: %v", c.x, c.y, err)
		}
		if got != ids[c.want] {
			t.Errorf("NCA(%s,%s) = %s, want %s (%s)", c.x, c.y, got, ids[c.want], c.want)
		}
	}
}

func TestVersionIsAncestor(t *testing.T) {
	s, ids := buildVersionDAG(t)
	ctx := context.Background()

	ok, err := s.VersionIsAncestor(ctx, ids["A"], ids["K"])
	if err != nil {
		t.Fatalf("VersionIsAncestor failed: %v", err)
	}
	if !ok {
		t.Error("expected A to be an ancestor of K")
	}

	ok, err = s.VersionIsAncestor(ctx, ids["L"], ids["H"])
	if err != nil {
		t.Fatalf("VersionIsAncestor failed: %v", err)
	}
	if ok {
		t.Error("expected L and H (siblings under E) to not be ancestors of each other")
	}
}
