package workspace

import (
	"context"
	"fmt"
	"sort"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/agents"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/artifact"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/ids"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/pvs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/stash"
)

func (e *Engine) changeIndexName(ws *Workspace) string {
	return ws.Project + "\x00" + ws.HistoryName + "\x00" + ws.ChangeName
}

// loadHistory fetches the workspace's history. Histories are indexed under
// the owning project's ID, while the workspace records the project by name.
func (e *Engine) loadHistory(ctx context.Context, ws *Workspace) (*stash.History, error) {
	project, err := e.Stashes.Projects.GetByName(ctx, ws.Project)
	if err != nil {
		return nil, err
	}
	return e.Stashes.Histories.GetByName(ctx, project.ID+"\x00"+ws.HistoryName)
}

// Save implements §4.5's save: commits every pending Working version
// (including the working baseline) atomically, writes a SavePoint, rewrites
// the workspace's basis to reference it, and clears the modified/working
// state and any conflicts named in resolved.
func (e *Engine) Save(ctx context.Context, ws *Workspace, creator, description string, resolved []string) (*stash.SavePoint, error) {
	if err := e.requireOpenChange(ws); err != nil {
		return nil, err
	}
	baselineWVID, ok := ws.WorkingVersions[ws.BaselineArtifactID]
	if !ok {
		return nil, errs.Constraintf("workspace %s has no pending modifications to save", ws.ID)
	}

	// Stage every pending commit before writing anything, so a failure
	// partway through staging leaves the workspace state untouched.
	ops := make([]kv.Op, 0, len(ws.WorkingVersions))
	for _, verID := range ws.WorkingVersions {
		op, err := e.Artifacts.StageCommit(ctx, verID)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := e.db.WriteBatch(ctx, ops); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "committing workspace %s", ws.ID)
	}

	change, err := e.Stashes.Changes.GetByName(ctx, e.changeIndexName(ws))
	if err != nil {
		return nil, err
	}

	modified := make([]string, 0, len(ws.Modified))
	for id := range ws.Modified {
		if id == ws.BaselineArtifactID {
			continue
		}
		modified = append(modified, id)
	}
	sort.Strings(modified)

	sp, err := e.Stashes.AppendSavePoint(ctx, change, creator, description, ws.Basis, baselineWVID, modified)
	if err != nil {
		return nil, err
	}

	ws.Basis = pvs.Format(&pvs.PVS{Kind: pvs.KindSavePoint, Project: ws.Project, History: ws.HistoryName, SaveID: sp.ID})
	ws.BaselineVersionID = baselineWVID
	ws.WorkingVersions, ws.Modified = newWorkspaceState()
	if len(resolved) > 0 {
		resolvedSet := make(map[string]bool, len(resolved))
		for _, id := range resolved {
			resolvedSet[id] = true
		}
		kept := ws.Conflicts[:0]
		for _, c := range ws.Conflicts {
			if !resolvedSet[c.ID] {
				kept = append(kept, c)
			}
		}
		ws.Conflicts = kept
	}

	if err := e.persist(ctx, ws); err != nil {
		return nil, err
	}
	return sp, nil
}

// upToDate implements §4.5's up-to-date check: the history tip's baseline
// version must be an ancestor of the workspace's baseline version.
func (e *Engine) upToDate(ctx context.Context, ws *Workspace, history *stash.History) (bool, error) {
	tip, err := e.Stashes.TipStep(ctx, history)
	if err != nil {
		return false, err
	}
	return e.Artifacts.VersionIsAncestor(ctx, tip.BaselineVersionID, ws.BaselineVersionID)
}

// Deliver implements §4.5's deliver: closes the open change, appends a
// HistoryStep, and rewrites the workspace's basis to the new step.
func (e *Engine) Deliver(ctx context.Context, ws *Workspace) (*stash.HistoryStep, error) {
	if err := e.requireOpenChange(ws); err != nil {
		return nil, err
	}
	if len(ws.Modified) != 0 {
		return nil, errs.UserErrorf("workspace %s has unsaved modifications", ws.ID)
	}
	if len(ws.Conflicts) != 0 {
		return nil, errs.UserErrorf("workspace %s has unresolved conflicts", ws.ID)
	}

	history, err := e.loadHistory(ctx, ws)
	if err != nil {
		return nil, err
	}
	uptodate, err := e.upToDate(ctx, ws, history)
	if err != nil {
		return nil, err
	}
	if !uptodate {
		return nil, errs.UserErrorf("workspace %s basis is not up to date with history %q's tip; update first", ws.ID, ws.HistoryName)
	}

	change, err := e.Stashes.Changes.GetByName(ctx, e.changeIndexName(ws))
	if err != nil {
		return nil, err
	}
	if err := e.Stashes.SetChangeStatus(ctx, change, stash.ChangeClosed); err != nil {
		return nil, err
	}

	step, err := e.Stashes.AppendHistoryStep(ctx, history, change, ws.BaselineArtifactID, ws.BaselineVersionID, fmt.Sprintf("deliver change %s", change.Name))
	if err != nil {
		return nil, err
	}

	ws.ChangeName = ""
	ws.Basis = pvs.Format(&pvs.PVS{Kind: pvs.KindHistory, Project: ws.Project, History: ws.HistoryName, Step: &step.Index})
	if err := e.persist(ctx, ws); err != nil {
		return nil, err
	}
	return step, nil
}

// applyBaselineMerge runs BaselineAgent.merge over (ancestor, source,
// target=workspace baseline), recursively re-merging every per-artifact
// MOD_MOD conflict via that artifact's own agent, and accumulates every
// unresolved conflict onto the workspace (§4.5 update/integrate).
func (e *Engine) applyBaselineMerge(ctx context.Context, ws *Workspace, ancestorVerID, sourceVerID string) error {
	oldBaselineVersionID := ws.BaselineVersionID
	targetWV, err := e.materializeWorking(ctx, ws, ws.BaselineArtifactID)
	if err != nil {
		return err
	}
	ancestorVer, err := e.Artifacts.RetrieveVersion(ctx, ancestorVerID)
	if err != nil {
		return err
	}
	sourceVer, err := e.Artifacts.RetrieveVersion(ctx, sourceVerID)
	if err != nil {
		return err
	}

	result, err := (agents.BaselineAgent{}).Merge(ws.BaselineArtifactID, ancestorVer.Content, sourceVer.Content, targetWV.Content)
	if err != nil {
		return err
	}
	proposal, err := decodeBaselineContent(result.Proposal)
	if err != nil {
		return err
	}

	for _, c := range result.Conflicts {
		if c.Kind != agents.ConflictModMod {
			// MOD_DEL/DEL_MOD are surfaced unresolved (§4.5).
			ws.Conflicts = append(ws.Conflicts, MergeConflict{ID: ids.New(ids.KindConflict), Conflict: c})
			continue
		}
		wv, subConflicts, err := e.mergeArtifact(ctx, ws, c.ArtifactID, c.SourceVer, c.TargetVer)
		if err != nil {
			return err
		}
		proposal.Versions[c.ArtifactID] = wv.ID
		for _, sc := range subConflicts {
			ws.Conflicts = append(ws.Conflicts, MergeConflict{ID: ids.New(ids.KindConflict), Conflict: sc})
		}
	}

	proposalEnc, err := (agents.BaselineAgent{}).Encode(proposal)
	if err != nil {
		return err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, targetWV.ID, &proposalEnc, nil, []string{sourceVerID, oldBaselineVersionID}); err != nil {
		return err
	}
	ws.BaselineVersionID = targetWV.ID
	return e.persist(ctx, ws)
}

// mergeArtifact recursively merges one artifact's conflicting versions via
// its own agent, materializing a Working version parented at [source,
// target] carrying the agent's proposal (§4.5 update).
func (e *Engine) mergeArtifact(ctx context.Context, ws *Workspace, artifactID, sourceVerID, targetVerID string) (*artifact.Version, []agents.Conflict, error) {
	art, err := e.Artifacts.RetrieveArtifact(ctx, artifactID)
	if err != nil {
		return nil, nil, err
	}
	agent, ok := e.Agents.For(art.Type)
	if !ok {
		return nil, nil, errs.TypeErrorf("no merge agent registered for artifact type %q", art.Type)
	}

	ancestorID, err := e.Artifacts.NCA(ctx, sourceVerID, targetVerID)
	if err != nil {
		return nil, nil, err
	}
	ancestorVer, err := e.Artifacts.RetrieveVersion(ctx, ancestorID)
	if err != nil {
		return nil, nil, err
	}
	sourceVer, err := e.Artifacts.RetrieveVersion(ctx, sourceVerID)
	if err != nil {
		return nil, nil, err
	}
	targetVer, err := e.Artifacts.RetrieveVersion(ctx, targetVerID)
	if err != nil {
		return nil, nil, err
	}

	result, err := agent.Merge(artifactID, ancestorVer.Content, sourceVer.Content, targetVer.Content)
	if err != nil {
		return nil, nil, err
	}

	// targetVerID may itself already be a Working version materialized by an
	// earlier local edit, in which case it is rewritten in place rather than
	// re-materialized (CreateWorkingVersion requires a Committed base); its
	// own prior parent, not its own ID, becomes the merge's "target" parent.
	var wv *artifact.Version
	if existing, ok := ws.WorkingVersions[artifactID]; ok && existing == targetVerID {
		priorParent := targetVerID
		if len(targetVer.ParentIDs) > 0 {
			priorParent = targetVer.ParentIDs[0]
		}
		wv, err = e.Artifacts.UpdateWorkingVersion(ctx, existing, &result.Proposal, nil, []string{sourceVerID, priorParent})
	} else {
		wv, err = e.Artifacts.CreateWorkingVersion(ctx, artifactID, targetVerID, ws.ChangeName)
		if err == nil {
			wv, err = e.Artifacts.UpdateWorkingVersion(ctx, wv.ID, &result.Proposal, nil, []string{sourceVerID, targetVerID})
		}
	}
	if err != nil {
		return nil, nil, err
	}
	ws.WorkingVersions[artifactID] = wv.ID
	ws.Modified[artifactID] = true

	return wv, result.Conflicts, nil
}

// Update implements §4.5's update: merges the history tip's baseline
// (incoming) onto the workspace's own baseline (in-progress local work),
// via the NCA of the two. A no-op if the workspace is already up to date.
func (e *Engine) Update(ctx context.Context, ws *Workspace) error {
	history, err := e.loadHistory(ctx, ws)
	if err != nil {
		return err
	}
	tip, err := e.Stashes.TipStep(ctx, history)
	if err != nil {
		return err
	}
	uptodate, err := e.upToDate(ctx, ws, history)
	if err != nil {
		return err
	}
	if uptodate {
		return nil
	}

	nca, err := e.Artifacts.NCA(ctx, ws.BaselineVersionID, tip.BaselineVersionID)
	if err != nil {
		return err
	}
	return e.applyBaselineMerge(ctx, ws, nca, tip.BaselineVersionID)
}

// Integrate implements §4.5's integrate (diff or change): applies the diff
// between two arbitrary PVSs onto the workspace's baseline as target, by
// the same merge procedure as Update.
func (e *Engine) Integrate(ctx context.Context, ws *Workspace, from, to *pvs.PVS) error {
	fromResolved, err := pvs.Resolve(ctx, e.Stashes, e.Artifacts, from)
	if err != nil {
		return err
	}
	toResolved, err := pvs.Resolve(ctx, e.Stashes, e.Artifacts, to)
	if err != nil {
		return err
	}
	return e.applyBaselineMerge(ctx, ws, fromResolved.BaselineVersionID, toResolved.BaselineVersionID)
}
