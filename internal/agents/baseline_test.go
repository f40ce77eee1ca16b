package agents

import (
	"reflect"
	"sort"
	"testing"
)

func encodeBaseline(t *testing.T, root string, versions map[string]string) string {
	t.Helper()
	enc, err := BaselineAgent{}.Encode(&Baseline{RootDirectoryID: root, Versions: versions})
	if err != nil {
		t.Fatalf("encoding baseline: %v", err)
	}
	return enc
}

// TestBaselineMergeModMod reproduces scenario S1: concurrent edits to the
// same entry on both sides raise exactly one MOD_MOD conflict, and
// unrelated entries merge cleanly.
func TestBaselineMergeModMod(t *testing.T) {
	ancestor := encodeBaseline(t, "root", map[string]string{"a": "a1", "b": "b1", "c": "c1", "d": "d1"})
	source := encodeBaseline(t, "root", map[string]string{"a": "a2", "b": "b1", "c": "c1", "d": "d2"})
	target := encodeBaseline(t, "root", map[string]string{"a": "a1", "b": "b2", "c": "c1", "d": "d3"})

	res, err := BaselineAgent{}.Merge("art:base", ancestor, source, target)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected exactly 1 conflict, got %d: %+v", len(res.Conflicts), res.Conflicts)
	}
	c := res.Conflicts[0]
	if c.Kind != ConflictModMod || c.ArtifactID != "d" || c.SourceVer != "d2" || c.TargetVer != "d3" {
		t.Errorf("unexpected conflict shape: %+v", c)
	}

	proposed, err := decodeBaseline(res.Proposal)
	if err != nil {
		t.Fatalf("decoding proposal: %v", err)
	}
	want := map[string]string{"a": "a2", "b": "b2", "c": "c1", "d": "d3"}
	if !reflect.DeepEqual(proposed.Versions, want) {
		t.Errorf("proposed map = %v, want %v", proposed.Versions, want)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TestBaselineMergeIdempotenceLaws checks merge(a,x,x)=x, merge(a,a,x)=x,
// and merge(a,x,a)=x hold over a baseline version map.
func TestBaselineMergeIdempotenceLaws(t *testing.T) {
	a := encodeBaseline(t, "root", map[string]string{"p": "p1", "q": "q1"})
	x := encodeBaseline(t, "root", map[string]string{"p": "p2", "q": "q1", "r": "r1"})

	check := func(name, ancestor, source, target, want string) {
		t.Helper()
		res, err := BaselineAgent{}.Merge("art:base", ancestor, source, target)
		if err != nil {
			t.Fatalf("%s: Merge failed: %v", name, err)
		}
		if len(res.Conflicts) != 0 {
			t.Errorf("%s: expected no conflicts, got %+v", name, res.Conflicts)
		}
		gotVers, wantVers := mustDecodeBaselineVersions(t, res.Proposal), mustDecodeBaselineVersions(t, want)
		if !reflect.DeepEqual(sortedKeys(gotVers), sortedKeys(wantVers)) || !reflect.DeepEqual(gotVers, wantVers) {
			t.Errorf("%s: proposal = %v, want %v", name, gotVers, wantVers)
		}
	}

	check("merge(a,x,x)=x", a, x, x, x)
	check("merge(a,a,x)=x", a, a, x, x)
	check("merge(a,x,a)=x", a, x, a, x)
}

func mustDecodeBaselineVersions(t *testing.T, enc string) map[string]string {
	t.Helper()
	b, err := decodeBaseline(enc)
	if err != nil {
		t.Fatalf("decoding baseline: %v", err)
	}
	return b.Versions
}
