package agents

import (
	"testing"
)

func encodeLines(t *testing.T, lines ...string) string {
	t.Helper()
	enc, err := TextAgent{}.Encode(&Text{Lines: lines})
	if err != nil {
		t.Fatalf("encoding text: %v", err)
	}
	return enc
}

func decodeLines(t *testing.T, enc string) []string {
	t.Helper()
	txt, err := decodeText(enc)
	if err != nil {
		t.Fatalf("decoding text: %v", err)
	}
	return txt.Lines
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestTextMergeLCSScenario reproduces scenario S2: source deletes "b" and
// inserts "q" after "c"; target equals the ancestor. Expect the proposal
// to equal source verbatim, with zero conflicts.
func TestTextMergeLCSScenario(t *testing.T) {
	ancestor := encodeLines(t, "a\n", "b\n", "c\n", "d\n", "e\n")
	source := encodeLines(t, "a\n", "c\n", "q\n", "d\n", "e\n")
	target := ancestor

	res, err := TextAgent{}.Merge("art:text", ancestor, source, target)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(res.Conflicts) != 0 {
		t.Fatalf("expected zero conflicts, got %+v", res.Conflicts)
	}
	got := decodeLines(t, res.Proposal)
	want := decodeLines(t, source)
	if !linesEqual(got, want) {
		t.Errorf("proposal lines = %v, want %v", got, want)
	}
}

func TestTextMergeConflictingEdit(t *testing.T) {
	ancestor := encodeLines(t, "a\n", "b\n", "c\n")
	source := encodeLines(t, "a\n", "x\n", "c\n")
	target := encodeLines(t, "a\n", "y\n", "c\n")

	res, err := TextAgent{}.Merge("art:text", ancestor, source, target)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected exactly 1 conflict, got %d: %+v", len(res.Conflicts), res.Conflicts)
	}
	got := decodeLines(t, res.Proposal)
	joined := ""
	for _, l := range got {
		joined += l
	}
	if !contains(joined, "<<<<<<< source") || !contains(joined, "x\n") || !contains(joined, "=======") || !contains(joined, "y\n") || !contains(joined, ">>>>>>> target") {
		t.Errorf("expected conflict markers wrapping both sides, got %q", joined)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

// TestTextMergeIdempotenceLaws checks merge(a,x,x)=x, merge(a,a,x)=x, and
// merge(a,x,a)=x hold over line content.
func TestTextMergeIdempotenceLaws(t *testing.T) {
	a := encodeLines(t, "a\n", "b\n", "c\n", "d\n")
	x := encodeLines(t, "a\n", "c\n", "d\n", "e\n")

	check := func(name, ancestor, source, target string) {
		t.Helper()
		res, err := TextAgent{}.Merge("art:text", ancestor, source, target)
		if err != nil {
			t.Fatalf("%s: Merge failed: %v", name, err)
		}
		if len(res.Conflicts) != 0 {
			t.Errorf("%s: expected no conflicts, got %+v", name, res.Conflicts)
		}
		got, want := decodeLines(t, res.Proposal), decodeLines(t, x)
		if !linesEqual(got, want) {
			t.Errorf("%s: proposal = %v, want %v", name, got, want)
		}
	}

	check("merge(a,x,x)=x", a, x, x)
	check("merge(a,a,x)=x", a, a, x)
	check("merge(a,x,a)=x", a, x, a)
}
