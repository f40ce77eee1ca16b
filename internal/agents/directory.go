package agents

import (
	"encoding/json"
	"fmt"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// DirEntry binds a name to an artifact ID within a Directory (§3).
type DirEntry struct {
	Name       string `json:"name"`
	ArtifactID string `json:"artifactId"`
}

// Directory is the content of an artifact of type "directory" (§3): an
// ordered list of name->artifact-ID entries, names unique within the
// directory.
type Directory struct {
	Entries []DirEntry `json:"entries"`
}

func (d *Directory) byName() map[string]string {
	m := make(map[string]string, len(d.Entries))
	for _, e := range d.Entries {
		m[e.Name] = e.ArtifactID
	}
	return m
}

// DirectoryAgent merges Directory content, keyed by name (§4.2).
type DirectoryAgent struct{}

func (DirectoryAgent) Encode(content any) (string, error) {
	dir, ok := content.(*Directory)
	if !ok {
		return "", errs.TypeErrorf("directory agent cannot encode %T", content)
	}
	raw, err := json.Marshal(dir)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "encoding directory")
	}
	return string(raw), nil
}

func (DirectoryAgent) Decode(encoded string) (any, error) {
	var dir Directory
	if err := json.Unmarshal([]byte(encoded), &dir); err != nil {
		return nil, errs.Wrap(errs.Parsing, err, "decoding directory")
	}
	return &dir, nil
}

func decodeDirectory(encoded string) (*Directory, error) {
	var dir Directory
	if encoded == "" {
		return &Directory{}, nil
	}
	if err := json.Unmarshal([]byte(encoded), &dir); err != nil {
		return nil, errs.Wrap(errs.Parsing, err, "decoding directory")
	}
	return &dir, nil
}

func (DirectoryAgent) Merge(artifactID, ancestorEnc, sourceEnc, targetEnc string) (Result, error) {
	ancestor, err := decodeDirectory(ancestorEnc)
	if err != nil {
		return Result{}, err
	}
	source, err := decodeDirectory(sourceEnc)
	if err != nil {
		return Result{}, err
	}
	target, err := decodeDirectory(targetEnc)
	if err != nil {
		return Result{}, err
	}

	aBy := ancestor.byName()
	sBy := source.byName()
	tBy := target.byName()

	// Union of names across all three sides, ancestor order first, then
	// any names introduced fresh by source, then by target, for a stable
	// and deterministic proposal ordering.
	seen := map[string]struct{}{}
	var order []string
	appendOrdered := func(entries []DirEntry) {
		for _, e := range entries {
			if _, ok := seen[e.Name]; !ok {
				seen[e.Name] = struct{}{}
				order = append(order, e.Name)
			}
		}
	}
	appendOrdered(ancestor.Entries)
	appendOrdered(source.Entries)
	appendOrdered(target.Entries)

	var proposal Directory
	var conflicts []Conflict

	for _, name := range order {
		aID, aOk := aBy[name]
		sID, sOk := sBy[name]
		tID, tOk := tBy[name]

		switch {
		case aOk == sOk && aID == sID:
			// Source side unchanged relative to ancestor: take target's
			// binding (whatever it is, even absent).
			if tOk {
				proposal.Entries = append(proposal.Entries, DirEntry{Name: name, ArtifactID: tID})
			}
		case aOk == tOk && aID == tID:
			// Target side unchanged relative to ancestor: take source's
			// binding.
			if sOk {
				proposal.Entries = append(proposal.Entries, DirEntry{Name: name, ArtifactID: sID})
			}
		case sOk == tOk && sID == tID:
			// Both sides changed identically (including concurrent
			// identical deletion): no-op, include once if present.
			if sOk {
				proposal.Entries = append(proposal.Entries, DirEntry{Name: name, ArtifactID: sID})
			}
		case !aOk && sOk && tOk:
			// Added on both sides under the same name, different IDs.
			conflicts = append(conflicts, Conflict{
				ArtifactID: artifactID, ArtifactType: "directory",
				SourceVer: sID, TargetVer: tID, Kind: ConflictModMod,
				Details: fmt.Sprintf("name %q added in both source and target with different bindings", name),
			})
			proposal.Entries = append(proposal.Entries, DirEntry{Name: name, ArtifactID: tID})
		case aOk && !sOk && tOk:
			// Removed in source, modified (still present) in target.
			conflicts = append(conflicts, Conflict{
				ArtifactID: artifactID, ArtifactType: "directory",
				SourceVer: "", TargetVer: tID, Kind: ConflictDelMod,
				Details: fmt.Sprintf("name %q removed in source, modified in target", name),
			})
			proposal.Entries = append(proposal.Entries, DirEntry{Name: name, ArtifactID: tID})
		case aOk && sOk && !tOk:
			// Modified in source, removed in target.
			conflicts = append(conflicts, Conflict{
				ArtifactID: artifactID, ArtifactType: "directory",
				SourceVer: sID, TargetVer: "", Kind: ConflictModDel,
				Details: fmt.Sprintf("name %q modified in source, removed in target", name),
			})
			proposal.Entries = append(proposal.Entries, DirEntry{Name: name, ArtifactID: sID})
		default:
			// Both modified, both present, to different IDs.
			conflicts = append(conflicts, Conflict{
				ArtifactID: artifactID, ArtifactType: "directory",
				SourceVer: sID, TargetVer: tID, Kind: ConflictModMod,
				Details: fmt.Sprintf("name %q modified differently in source and target", name),
			})
			proposal.Entries = append(proposal.Entries, DirEntry{Name: name, ArtifactID: tID})
		}
	}

	enc, err := DirectoryAgent{}.Encode(&proposal)
	if err != nil {
		return Result{}, err
	}
	return Result{Proposal: enc, Conflicts: conflicts}, nil
}

var _ Agent = (*DirectoryAgent)(nil)
