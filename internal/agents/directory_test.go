package agents

import (
	"reflect"
	"testing"
)

func encodeDir(t *testing.T, entries map[string]string) string {
	t.Helper()
	var dir Directory
	for name, id := range entries {
		dir.Entries = append(dir.Entries, DirEntry{Name: name, ArtifactID: id})
	}
	enc, err := DirectoryAgent{}.Encode(&dir)
	if err != nil {
		t.Fatalf("encoding directory: %v", err)
	}
	return enc
}

func dirMap(t *testing.T, enc string) map[string]string {
	t.Helper()
	dir, err := decodeDirectory(enc)
	if err != nil {
		t.Fatalf("decoding directory: %v", err)
	}
	return dir.byName()
}

func TestDirectoryMergeAddedBothSidesConflict(t *testing.T) {
	ancestor := encodeDir(t, map[string]string{"readme.txt": "art:readme"})
	source := encodeDir(t, map[string]string{"readme.txt": "art:readme", "new.txt": "art:x"})
	target := encodeDir(t, map[string]string{"readme.txt": "art:readme", "new.txt": "art:y"})

	res, err := DirectoryAgent{}.Merge("art:dir", ancestor, source, target)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Kind != ConflictModMod {
		t.Fatalf("expected one MOD_MOD conflict, got %+v", res.Conflicts)
	}
}

func TestDirectoryMergeNonOverlappingAdds(t *testing.T) {
	ancestor := encodeDir(t, map[string]string{})
	source := encodeDir(t, map[string]string{"a.txt": "art:a"})
	target := encodeDir(t, map[string]string{"b.txt": "art:b"})

	res, err := DirectoryAgent{}.Merge("art:dir", ancestor, source, target)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("expected no conflicts merging disjoint adds, got %+v", res.Conflicts)
	}
	got := dirMap(t, res.Proposal)
	want := map[string]string{"a.txt": "art:a", "b.txt": "art:b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("proposal = %v, want %v", got, want)
	}
}

func TestDirectoryMergeDeleteModifyConflict(t *testing.T) {
	ancestor := encodeDir(t, map[string]string{"f.txt": "art:v1"})
	source := encodeDir(t, map[string]string{}) // deleted in source
	target := encodeDir(t, map[string]string{"f.txt": "art:v2"}) // modified in target

	res, err := DirectoryAgent{}.Merge("art:dir", ancestor, source, target)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Kind != ConflictDelMod {
		t.Fatalf("expected one DEL_MOD conflict, got %+v", res.Conflicts)
	}
}

// TestDirectoryMergeIdempotenceLaws checks merge(a,x,x)=x, merge(a,a,x)=x,
// and merge(a,x,a)=x hold over directory entries.
func TestDirectoryMergeIdempotenceLaws(t *testing.T) {
	a := encodeDir(t, map[string]string{"p": "p1"})
	x := encodeDir(t, map[string]string{"p": "p2", "q": "q1"})

	check := func(name, ancestor, source, target string) {
		t.Helper()
		res, err := DirectoryAgent{}.Merge("art:dir", ancestor, source, target)
		if err != nil {
			t.Fatalf("%s: Merge failed: %v", name, err)
		}
		if len(res.Conflicts) != 0 {
			t.Errorf("%s: expected no conflicts, got %+v", name, res.Conflicts)
		}
		got, want := dirMap(t, res.Proposal), dirMap(t, x)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: proposal = %v, want %v", name, got, want)
		}
	}

	check("merge(a,x,x)=x", a, x, x)
	check("merge(a,a,x)=x", a, a, x)
	check("merge(a,x,a)=x", a, x, a)
}
