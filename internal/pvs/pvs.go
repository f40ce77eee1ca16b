// Package pvs implements the Project-Version Specifier: a handle resolvable
// to a baseline version (§4.4). A PVS is one of four shapes, each with a
// concise surface syntax:
//
//	history(project@history)            -> tip step's baseline version
//	history(project@history@step)       -> indexed step's baseline version
//	change(project@history@change)      -> latest save point's baseline version
//	savePoint(project@history@save_id)  -> that save point's baseline version
//	baseline(project@history@version_id) -> the given baseline version directly
package pvs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/artifact"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/stash"
)

// Kind distinguishes the four PVS shapes.
type Kind string

const (
	KindHistory   Kind = "history"
	KindChange    Kind = "change"
	KindSavePoint Kind = "savePoint"
	KindBaseline  Kind = "baseline"
)

// PVS is a parsed Project-Version Specifier. Which fields are meaningful
// depends on Kind:
//
//	History:   Project, History, [Step]
//	Change:    Project, History, Change
//	SavePoint: Project, History, SaveID
//	Baseline:  Project, History, VersionID
type PVS struct {
	Kind      Kind
	Project   string
	History   string
	Step      *int
	Change    string
	SaveID    string
	VersionID string
}

// Format renders p back into its surface syntax.
func Format(p *PVS) string {
	switch p.Kind {
	case KindHistory:
		if p.Step != nil {
			return fmt.Sprintf("history(%s@%s@%d)", p.Project, p.History, *p.Step)
		}
		return fmt.Sprintf("history(%s@%s)", p.Project, p.History)
	case KindChange:
		return fmt.Sprintf("change(%s@%s@%s)", p.Project, p.History, p.Change)
	case KindSavePoint:
		return fmt.Sprintf("savePoint(%s@%s@%s)", p.Project, p.History, p.SaveID)
	case KindBaseline:
		return fmt.Sprintf("baseline(%s@%s@%s)", p.Project, p.History, p.VersionID)
	default:
		return ""
	}
}

// Parse reads a surface-syntax PVS, rejecting any other shape with
// InvalidParameter (§4.4).
func Parse(s string) (*PVS, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, errs.InvalidParamf("malformed PVS %q", s)
	}
	kind := Kind(s[:open])
	inner := s[open+1 : len(s)-1]
	parts := strings.Split(inner, "@")

	switch kind {
	case KindHistory:
		switch len(parts) {
		case 2:
			return &PVS{Kind: KindHistory, Project: parts[0], History: parts[1]}, nil
		case 3:
			idx, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, errs.InvalidParamf("malformed PVS %q: step index must be an integer", s)
			}
			return &PVS{Kind: KindHistory, Project: parts[0], History: parts[1], Step: &idx}, nil
		default:
			return nil, errs.InvalidParamf("malformed PVS %q", s)
		}
	case KindChange:
		if len(parts) != 3 {
			return nil, errs.InvalidParamf("malformed PVS %q", s)
		}
		return &PVS{Kind: KindChange, Project: parts[0], History: parts[1], Change: parts[2]}, nil
	case KindSavePoint:
		if len(parts) != 3 {
			return nil, errs.InvalidParamf("malformed PVS %q", s)
		}
		return &PVS{Kind: KindSavePoint, Project: parts[0], History: parts[1], SaveID: parts[2]}, nil
	case KindBaseline:
		if len(parts) != 3 {
			return nil, errs.InvalidParamf("malformed PVS %q", s)
		}
		return &PVS{Kind: KindBaseline, Project: parts[0], History: parts[1], VersionID: parts[2]}, nil
	default:
		return nil, errs.InvalidParamf("malformed PVS %q: unknown kind %q", s, kind)
	}
}

// Resolved is the baseline artifact/version pair a PVS resolves to.
type Resolved struct {
	BaselineArtifactID string
	BaselineVersionID  string
}

// Resolve resolves p to a baseline version (§4.4).
func Resolve(ctx context.Context, stashes *stash.Stashes, artifacts *artifact.Store, p *PVS) (*Resolved, error) {
	switch p.Kind {
	case KindHistory:
		project, err := stashes.Projects.GetByName(ctx, p.Project)
		if err != nil {
			return nil, err
		}
		history, err := stashes.Histories.GetByName(ctx, project.ID+"\x00"+p.History)
		if err != nil {
			return nil, err
		}
		var step *stash.HistoryStep
		if p.Step != nil {
			step, err = stashes.StepByIndex(ctx, project.ID, p.History, *p.Step)
		} else {
			step, err = stashes.TipStep(ctx, history)
		}
		if err != nil {
			return nil, err
		}
		return &Resolved{BaselineArtifactID: step.BaselineArtifactID, BaselineVersionID: step.BaselineVersionID}, nil

	case KindChange:
		change, err := stashes.Changes.GetByName(ctx, p.Project+"\x00"+p.History+"\x00"+p.Change)
		if err != nil {
			return nil, err
		}
		if len(change.SavePointIDs) == 0 {
			return nil, errs.NotFoundf("change %s has no save points to resolve a PVS against", change.ID)
		}
		sp, err := stashes.SavePts.Get(ctx, change.SavePointIDs[len(change.SavePointIDs)-1])
		if err != nil {
			return nil, err
		}
		return &Resolved{BaselineArtifactID: change.BaselineArtifactID, BaselineVersionID: sp.NewBaselineVerID}, nil

	case KindSavePoint:
		sp, err := stashes.SavePts.Get(ctx, p.SaveID)
		if err != nil {
			return nil, err
		}
		change, err := stashes.Changes.Get(ctx, sp.Change)
		if err != nil {
			return nil, err
		}
		return &Resolved{BaselineArtifactID: change.BaselineArtifactID, BaselineVersionID: sp.NewBaselineVerID}, nil

	case KindBaseline:
		project, err := stashes.Projects.GetByName(ctx, p.Project)
		if err != nil {
			return nil, err
		}
		if _, err := artifacts.RetrieveVersion(ctx, p.VersionID); err != nil {
			return nil, err
		}
		return &Resolved{BaselineArtifactID: project.BaselineArtifactID, BaselineVersionID: p.VersionID}, nil

	default:
		return nil, errs.InvalidParamf("unresolvable PVS kind %q", p.Kind)
	}
}
