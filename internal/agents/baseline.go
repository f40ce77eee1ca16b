package agents

import (
	"encoding/json"
	"fmt"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// Baseline is the content of an artifact of type "baseline" (§3): a root
// directory artifact ID plus a mapping from artifact ID to the artifact
// version ID selected by this snapshot.
type Baseline struct {
	RootDirectoryID string            `json:"rootDirectoryId"`
	Versions        map[string]string `json:"versions"` // artifactID -> versionID
}

// BaselineAgent merges Baseline content over the version-map, keyed by
// artifact ID (§4.2).
type BaselineAgent struct{}

func (BaselineAgent) Encode(content any) (string, error) {
	b, ok := content.(*Baseline)
	if !ok {
		return "", errs.TypeErrorf("baseline agent cannot encode %T", content)
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "encoding baseline")
	}
	return string(raw), nil
}

func (BaselineAgent) Decode(encoded string) (any, error) {
	return decodeBaseline(encoded)
}

func decodeBaseline(encoded string) (*Baseline, error) {
	var b Baseline
	if encoded == "" {
		return &Baseline{Versions: map[string]string{}}, nil
	}
	if err := json.Unmarshal([]byte(encoded), &b); err != nil {
		return nil, errs.Wrap(errs.Parsing, err, "decoding baseline")
	}
	if b.Versions == nil {
		b.Versions = map[string]string{}
	}
	return &b, nil
}

// Merge implements §4.2's baseline merge rules. It asserts the three
// baselines share a root directory artifact ID (an Internal invariant
// violation if not — this is not user-facing conflict data).
func (BaselineAgent) Merge(artifactID, ancestorEnc, sourceEnc, targetEnc string) (Result, error) {
	ancestor, err := decodeBaseline(ancestorEnc)
	if err != nil {
		return Result{}, err
	}
	source, err := decodeBaseline(sourceEnc)
	if err != nil {
		return Result{}, err
	}
	target, err := decodeBaseline(targetEnc)
	if err != nil {
		return Result{}, err
	}

	if source.RootDirectoryID != ancestor.RootDirectoryID && source.RootDirectoryID != "" && ancestor.RootDirectoryID != "" {
		return Result{}, errs.Internalf("baseline merge: source root %s differs from ancestor root %s", source.RootDirectoryID, ancestor.RootDirectoryID)
	}
	if target.RootDirectoryID != ancestor.RootDirectoryID && target.RootDirectoryID != "" && ancestor.RootDirectoryID != "" {
		return Result{}, errs.Internalf("baseline merge: target root %s differs from ancestor root %s", target.RootDirectoryID, ancestor.RootDirectoryID)
	}

	seen := map[string]struct{}{}
	var order []string
	collectOrder := func(m map[string]string) {
		for id := range m {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				order = append(order, id)
			}
		}
	}
	collectOrder(ancestor.Versions)
	collectOrder(source.Versions)
	collectOrder(target.Versions)

	proposal := &Baseline{RootDirectoryID: ancestor.RootDirectoryID, Versions: map[string]string{}}
	var conflicts []Conflict

	for _, id := range order {
		aVer, aOk := ancestor.Versions[id]
		sVer, sOk := source.Versions[id]
		tVer, tOk := target.Versions[id]

		switch {
		case aOk == sOk && aVer == sVer:
			// unchanged in source -> take target's state (added/removed/modified/unchanged)
			if tOk {
				proposal.Versions[id] = tVer
			}
		case aOk == tOk && aVer == tVer:
			// unchanged in target -> take source's state
			if sOk {
				proposal.Versions[id] = sVer
			}
		case sOk == tOk && sVer == tVer:
			// identical change on both sides (including concurrent removal)
			if sOk {
				proposal.Versions[id] = sVer
			}
		case !aOk && sOk && tOk:
			// added in both, different versions: MOD_MOD, proposal keeps target
			conflicts = append(conflicts, Conflict{
				ArtifactID: id, ArtifactType: "baseline-entry",
				SourceVer: sVer, TargetVer: tVer, Kind: ConflictModMod,
				Details: fmt.Sprintf("artifact %s added in both source and target with different versions", id),
			})
			proposal.Versions[id] = tVer
		case aOk && !sOk && tOk:
			// removed in source, modified in target: DEL_MOD, proposal keeps
			// the modified (target) version
			conflicts = append(conflicts, Conflict{
				ArtifactID: id, ArtifactType: "baseline-entry",
				SourceVer: "", TargetVer: tVer, Kind: ConflictDelMod,
				Details: fmt.Sprintf("artifact %s removed in source, modified in target", id),
			})
			proposal.Versions[id] = tVer
		case aOk && sOk && !tOk:
			// modified in source, removed in target: MOD_DEL, proposal keeps
			// the modified (source) version
			conflicts = append(conflicts, Conflict{
				ArtifactID: id, ArtifactType: "baseline-entry",
				SourceVer: sVer, TargetVer: "", Kind: ConflictModDel,
				Details: fmt.Sprintf("artifact %s modified in source, removed in target", id),
			})
			proposal.Versions[id] = sVer
		default:
			// modified in both, to different versions: MOD_MOD, proposal
			// keeps target so in-progress local work "wins" and must be
			// resolved by re-merging the artifact's content (§4.2).
			conflicts = append(conflicts, Conflict{
				ArtifactID: id, ArtifactType: "baseline-entry",
				SourceVer: sVer, TargetVer: tVer, Kind: ConflictModMod,
				Details: fmt.Sprintf("artifact %s modified differently in source and target", id),
			})
			proposal.Versions[id] = tVer
		}
	}

	enc, err := BaselineAgent{}.Encode(proposal)
	if err != nil {
		return Result{}, err
	}
	return Result{Proposal: enc, Conflicts: conflicts}, nil
}

var _ Agent = (*BaselineAgent)(nil)
