package workspace

import (
	"context"
	"sort"
	"time"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/agents"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/artifact"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/ids"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/pvs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/stash"
)

// Engine is the workspace state machine (§4.5), composed over the artifact
// store, the project/history/change stashes, and the merge-agent registry.
type Engine struct {
	db         kv.Store
	Workspaces *stash.Indexed[Workspace]
	Artifacts  *artifact.Store
	Stashes    *stash.Stashes
	Agents     *agents.Registry
}

// NewEngine builds a workspace Engine over a shared KV store.
func NewEngine(db kv.Store, artifacts *artifact.Store, stashes *stash.Stashes, registry *agents.Registry) *Engine {
	return &Engine{
		db: db, Artifacts: artifacts, Stashes: stashes, Agents: registry,
		Workspaces: stash.NewIndexed[Workspace](db, kv.FamilyWorkspaces),
	}
}

func workspaceIndexName(project, name string) string { return project + "\x00" + name }

// Create opens a new workspace against a project, with its basis resolved
// from the given history.
func (e *Engine) Create(ctx context.Context, project, historyName, name, creator, description string) (*Workspace, error) {
	proj, err := e.Stashes.Projects.GetByName(ctx, project)
	if err != nil {
		return nil, err
	}
	p := &pvs.PVS{Kind: pvs.KindHistory, Project: project, History: historyName}
	resolved, err := pvs.Resolve(ctx, e.Stashes, e.Artifacts, p)
	if err != nil {
		return nil, err
	}

	working, modified := newWorkspaceState()
	now := time.Now().UTC()
	ws := &Workspace{
		ID: ids.New(ids.KindWorkspace), Project: project, Name: name, Creator: creator,
		CreatedAt: now, UpdatedAt: now, Description: description,
		Basis:                   pvs.Format(p),
		RootDirectoryArtifactID: proj.RootDirectoryArtifactID,
		BaselineArtifactID:      resolved.BaselineArtifactID,
		BaselineVersionID:       resolved.BaselineVersionID,
		HistoryName:             historyName,
		WorkingVersions:         working,
		Modified:                modified,
	}
	if err := e.Workspaces.Create(ctx, ws.ID, workspaceIndexName(project, name), ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// OpenChange opens a new change on history and binds it to the workspace,
// satisfying §4.5's open-change invariant for subsequent add/move/delete/
// modify calls.
func (e *Engine) OpenChange(ctx context.Context, ws *Workspace, changeName, description string) (*stash.Change, error) {
	if ws.ChangeName != "" {
		return nil, errs.Constraintf("workspace %s already has an open change %q", ws.ID, ws.ChangeName)
	}
	change, err := e.Stashes.CreateChange(ctx, ws.Project, ws.HistoryName, changeName, ws.Basis, description, ws.BaselineArtifactID)
	if err != nil {
		return nil, err
	}
	ws.ChangeName = changeName
	if err := e.persist(ctx, ws); err != nil {
		return nil, err
	}
	return change, nil
}

func (e *Engine) requireOpenChange(ws *Workspace) error {
	if ws.ChangeName == "" {
		return errs.Constraintf("workspace %s has no open change", ws.ID)
	}
	return nil
}

func decodeBaselineContent(raw string) (*agents.Baseline, error) {
	content, err := (agents.BaselineAgent{}).Decode(raw)
	if err != nil {
		return nil, err
	}
	return content.(*agents.Baseline), nil
}

func decodeDirectoryContent(raw string) (*agents.Directory, error) {
	content, err := (agents.DirectoryAgent{}).Decode(raw)
	if err != nil {
		return nil, err
	}
	return content.(*agents.Directory), nil
}

// currentVersionID resolves the version ID a workspace currently sees for
// an artifact: its Working version if one exists, the baseline version ID
// for the baseline artifact itself, or else its binding in the current
// baseline content (§4.5).
func (e *Engine) currentVersionID(ctx context.Context, ws *Workspace, artifactID string) (string, error) {
	if wvID, ok := ws.WorkingVersions[artifactID]; ok {
		return wvID, nil
	}
	if artifactID == ws.BaselineArtifactID {
		return ws.BaselineVersionID, nil
	}
	baseline, err := e.loadBaseline(ctx, ws)
	if err != nil {
		return "", err
	}
	verID, ok := baseline.Versions[artifactID]
	if !ok {
		return "", errs.NotFoundf("artifact %s is not bound in the workspace's current baseline", artifactID)
	}
	return verID, nil
}

func (e *Engine) loadBaseline(ctx context.Context, ws *Workspace) (*agents.Baseline, error) {
	verID, err := e.currentVersionID(ctx, ws, ws.BaselineArtifactID)
	if err != nil {
		return nil, err
	}
	version, err := e.Artifacts.RetrieveVersion(ctx, verID)
	if err != nil {
		return nil, err
	}
	return decodeBaselineContent(version.Content)
}

func (e *Engine) loadDirectory(ctx context.Context, ws *Workspace, artifactID string) (*agents.Directory, error) {
	verID, err := e.currentVersionID(ctx, ws, artifactID)
	if err != nil {
		return nil, err
	}
	version, err := e.Artifacts.RetrieveVersion(ctx, verID)
	if err != nil {
		return nil, err
	}
	return decodeDirectoryContent(version.Content)
}

// materializeWorking returns artifactID's existing Working version, or
// creates one parented at its currently-bound version (§4.5). Creating a
// fresh working version for anything other than the baseline artifact
// itself rebinds the working baseline's version map to it, so the
// baseline always covers the artifact's in-progress content rather than
// the stale Committed version it replaced.
func (e *Engine) materializeWorking(ctx context.Context, ws *Workspace, artifactID string) (*artifact.Version, error) {
	if wvID, ok := ws.WorkingVersions[artifactID]; ok {
		return e.Artifacts.RetrieveVersion(ctx, wvID)
	}
	curVerID, err := e.currentVersionID(ctx, ws, artifactID)
	if err != nil {
		return nil, err
	}
	wv, err := e.Artifacts.CreateWorkingVersion(ctx, artifactID, curVerID, ws.ChangeName)
	if err != nil {
		return nil, err
	}
	ws.WorkingVersions[artifactID] = wv.ID
	ws.Modified[artifactID] = true
	if artifactID != ws.BaselineArtifactID {
		if err := e.bindBaselineVersion(ctx, ws, artifactID, wv.ID); err != nil {
			return nil, err
		}
	}
	return wv, nil
}

// bindBaselineVersion materializes the working baseline and points its
// version map entry for artifactID at versionID (§3: the baseline
// mapping must cover exactly the artifacts reachable from the root).
func (e *Engine) bindBaselineVersion(ctx context.Context, ws *Workspace, artifactID, versionID string) error {
	baselineWV, err := e.materializeWorking(ctx, ws, ws.BaselineArtifactID)
	if err != nil {
		return err
	}
	baseline, err := decodeBaselineContent(baselineWV.Content)
	if err != nil {
		return err
	}
	baseline.Versions[artifactID] = versionID
	enc, err := (agents.BaselineAgent{}).Encode(baseline)
	if err != nil {
		return err
	}
	_, err = e.Artifacts.UpdateWorkingVersion(ctx, baselineWV.ID, &enc, nil, nil)
	return err
}

// resolveArtifactPath walks path from the workspace's root directory,
// following name bindings, and returns the artifact ID bound at the end of
// the path. An empty path resolves to the root directory itself.
func (e *Engine) resolveArtifactPath(ctx context.Context, ws *Workspace, path []string) (string, error) {
	cur := ws.RootDirectoryArtifactID
	for _, segment := range path {
		dir, err := e.loadDirectory(ctx, ws, cur)
		if err != nil {
			return "", err
		}
		found := false
		for _, entry := range dir.Entries {
			if entry.Name == segment {
				cur = entry.ArtifactID
				found = true
				break
			}
		}
		if !found {
			return "", errs.NotFoundf("no such path segment %q", segment)
		}
	}
	return cur, nil
}

func (e *Engine) persist(ctx context.Context, ws *Workspace) error {
	ws.UpdatedAt = time.Now().UTC()
	return e.Workspaces.Update(ctx, ws.ID, ws)
}

// Add implements §4.5's add: resolve the parent directory by path,
// materialize working versions of the directory and baseline, create a new
// artifact with a first Committed version, bind its name in the directory,
// and map it into the baseline.
func (e *Engine) Add(ctx context.Context, ws *Workspace, parentPath []string, name, artifactType, creator, content string) (string, error) {
	if err := e.requireOpenChange(ws); err != nil {
		return "", err
	}
	dirArtID, err := e.resolveArtifactPath(ctx, ws, parentPath)
	if err != nil {
		return "", err
	}
	dirWV, err := e.materializeWorking(ctx, ws, dirArtID)
	if err != nil {
		return "", err
	}
	baselineWV, err := e.materializeWorking(ctx, ws, ws.BaselineArtifactID)
	if err != nil {
		return "", err
	}

	dir, err := decodeDirectoryContent(dirWV.Content)
	if err != nil {
		return "", err
	}
	for _, entry := range dir.Entries {
		if entry.Name == name {
			return "", errs.Conflictf("name %q already exists in this directory", name)
		}
	}

	newArt, newVer, err := e.Artifacts.CreateArtifact(ctx, ws.Project, artifactType, creator, content, nil)
	if err != nil {
		return "", err
	}

	dir.Entries = append(dir.Entries, agents.DirEntry{Name: name, ArtifactID: newArt.ID})
	dirEnc, err := (agents.DirectoryAgent{}).Encode(dir)
	if err != nil {
		return "", err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, dirWV.ID, &dirEnc, nil, nil); err != nil {
		return "", err
	}

	baseline, err := decodeBaselineContent(baselineWV.Content)
	if err != nil {
		return "", err
	}
	baseline.Versions[newArt.ID] = newVer.ID
	baselineEnc, err := (agents.BaselineAgent{}).Encode(baseline)
	if err != nil {
		return "", err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, baselineWV.ID, &baselineEnc, nil, nil); err != nil {
		return "", err
	}

	if err := e.persist(ctx, ws); err != nil {
		return "", err
	}
	return newArt.ID, nil
}

// Move implements §4.5's move: intra-directory renames update one
// directory's map; inter-directory moves materialize both directories and
// relocate the binding with two separate writes (source directory first,
// then destination), not as a single atomic batch.
func (e *Engine) Move(ctx context.Context, ws *Workspace, fromPath []string, toParentPath []string, toName string) error {
	if err := e.requireOpenChange(ws); err != nil {
		return err
	}
	if len(fromPath) == 0 {
		return errs.InvalidParamf("cannot move the root directory")
	}
	fromParentPath := fromPath[:len(fromPath)-1]
	fromName := fromPath[len(fromPath)-1]

	fromParentArtID, err := e.resolveArtifactPath(ctx, ws, fromParentPath)
	if err != nil {
		return err
	}
	toParentArtID, err := e.resolveArtifactPath(ctx, ws, toParentPath)
	if err != nil {
		return err
	}

	fromWV, err := e.materializeWorking(ctx, ws, fromParentArtID)
	if err != nil {
		return err
	}
	fromDir, err := decodeDirectoryContent(fromWV.Content)
	if err != nil {
		return err
	}
	idx := -1
	for i, entry := range fromDir.Entries {
		if entry.Name == fromName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errs.NotFoundf("no such entry %q", fromName)
	}
	movedArtID := fromDir.Entries[idx].ArtifactID

	if fromParentArtID == toParentArtID {
		for _, entry := range fromDir.Entries {
			if entry.Name == toName && entry.Name != fromName {
				return errs.Conflictf("name %q already exists in this directory", toName)
			}
		}
		fromDir.Entries[idx].Name = toName
		enc, err := (agents.DirectoryAgent{}).Encode(fromDir)
		if err != nil {
			return err
		}
		if _, err := e.Artifacts.UpdateWorkingVersion(ctx, fromWV.ID, &enc, nil, nil); err != nil {
			return err
		}
		return e.persist(ctx, ws)
	}

	toWV, err := e.materializeWorking(ctx, ws, toParentArtID)
	if err != nil {
		return err
	}
	toDir, err := decodeDirectoryContent(toWV.Content)
	if err != nil {
		return err
	}
	for _, entry := range toDir.Entries {
		if entry.Name == toName {
			return errs.Conflictf("name %q already exists in the target directory", toName)
		}
	}

	fromDir.Entries = append(fromDir.Entries[:idx], fromDir.Entries[idx+1:]...)
	toDir.Entries = append(toDir.Entries, agents.DirEntry{Name: toName, ArtifactID: movedArtID})

	fromEnc, err := (agents.DirectoryAgent{}).Encode(fromDir)
	if err != nil {
		return err
	}
	toEnc, err := (agents.DirectoryAgent{}).Encode(toDir)
	if err != nil {
		return err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, fromWV.ID, &fromEnc, nil, nil); err != nil {
		return err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, toWV.ID, &toEnc, nil, nil); err != nil {
		return err
	}
	return e.persist(ctx, ws)
}

// transitiveArtifacts returns artifactID plus, if it names a directory, the
// full set of artifacts transitively reachable through it under the
// workspace's current view (§4.5 delete).
func (e *Engine) transitiveArtifacts(ctx context.Context, ws *Workspace, artifactID string) ([]string, error) {
	verID, err := e.currentVersionID(ctx, ws, artifactID)
	if err != nil {
		return nil, err
	}
	version, err := e.Artifacts.RetrieveVersion(ctx, verID)
	if err != nil {
		return nil, err
	}
	out := []string{artifactID}
	if version.Type != "directory" {
		return out, nil
	}
	dir, err := decodeDirectoryContent(version.Content)
	if err != nil {
		return nil, err
	}
	for _, entry := range dir.Entries {
		children, err := e.transitiveArtifacts(ctx, ws, entry.ArtifactID)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}

// Delete implements §4.5's delete: removes the binding from the parent
// directory and, for a directory target, every transitively reachable
// artifact ID from the working baseline (never from the depot itself).
// Returns the set of removed artifact IDs.
func (e *Engine) Delete(ctx context.Context, ws *Workspace, path []string) ([]string, error) {
	if err := e.requireOpenChange(ws); err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, errs.InvalidParamf("cannot delete the root directory")
	}
	parentPath := path[:len(path)-1]
	name := path[len(path)-1]

	parentArtID, err := e.resolveArtifactPath(ctx, ws, parentPath)
	if err != nil {
		return nil, err
	}
	parentWV, err := e.materializeWorking(ctx, ws, parentArtID)
	if err != nil {
		return nil, err
	}
	dir, err := decodeDirectoryContent(parentWV.Content)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, entry := range dir.Entries {
		if entry.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errs.NotFoundf("no such entry %q", name)
	}
	targetArtID := dir.Entries[idx].ArtifactID

	removed, err := e.transitiveArtifacts(ctx, ws, targetArtID)
	if err != nil {
		return nil, err
	}

	dir.Entries = append(dir.Entries[:idx], dir.Entries[idx+1:]...)
	dirEnc, err := (agents.DirectoryAgent{}).Encode(dir)
	if err != nil {
		return nil, err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, parentWV.ID, &dirEnc, nil, nil); err != nil {
		return nil, err
	}

	baselineWV, err := e.materializeWorking(ctx, ws, ws.BaselineArtifactID)
	if err != nil {
		return nil, err
	}
	baseline, err := decodeBaselineContent(baselineWV.Content)
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		delete(baseline.Versions, id)
	}
	baselineEnc, err := (agents.BaselineAgent{}).Encode(baseline)
	if err != nil {
		return nil, err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, baselineWV.ID, &baselineEnc, nil, nil); err != nil {
		return nil, err
	}

	if err := e.persist(ctx, ws); err != nil {
		return nil, err
	}
	sort.Strings(removed)
	return removed, nil
}

// Modify implements §4.5's modify: materializes a Working version of the
// artifact at path and rewrites its content in place.
func (e *Engine) Modify(ctx context.Context, ws *Workspace, path []string, newContent string) error {
	if err := e.requireOpenChange(ws); err != nil {
		return err
	}
	artID, err := e.resolveArtifactPath(ctx, ws, path)
	if err != nil {
		return err
	}
	wv, err := e.materializeWorking(ctx, ws, artID)
	if err != nil {
		return err
	}
	if _, err := e.Artifacts.UpdateWorkingVersion(ctx, wv.ID, &newContent, nil, nil); err != nil {
		return err
	}
	return e.persist(ctx, ws)
}
