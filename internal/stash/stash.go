package stash

import (
	"context"
	"time"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/agents"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/artifact"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/ids"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
)

const sep = "\x00"

func historyKey(project, historyName string) string { return project + sep + historyName }
func changeKey(project, history, changeName string) string {
	return project + sep + history + sep + changeName
}

// Stashes bundles the four named collections of §4.3 plus the artifact
// store they create entries against.
type Stashes struct {
	Projects  *Indexed[Project]
	Histories *Indexed[History]
	Changes   *Indexed[Change]
	SavePts   *Indexed[SavePoint]
	Steps     *Indexed[HistoryStep]

	Artifacts *artifact.Store
}

// NewStashes builds the full stash bundle over a shared KV store.
func NewStashes(db kv.Store, artifacts *artifact.Store) *Stashes {
	return &Stashes{
		Projects:  NewIndexed[Project](db, kv.FamilyProjects),
		Histories: NewIndexed[History](db, kv.FamilyHistories),
		Changes:   NewIndexed[Change](db, kv.FamilyChanges),
		SavePts:   NewIndexed[SavePoint](db, kv.FamilySavePoints),
		Steps:     NewIndexed[HistoryStep](db, kv.FamilyHistoryVersions),
		Artifacts: artifacts,
	}
}

// CreateProject implements §4.3's Project create: a globally-unique name,
// an empty root Directory artifact, a Baseline artifact mapping that
// directory, and an initial history "main" with one HistoryStep pointing
// at the baseline version.
func (s *Stashes) CreateProject(ctx context.Context, name, creator, description string) (*Project, error) {
	projID := ids.New(ids.KindProject)

	dirAgent := agents.DirectoryAgent{}
	emptyDirEnc, err := dirAgent.Encode(&agents.Directory{})
	if err != nil {
		return nil, err
	}
	dirArt, dirVer, err := s.Artifacts.CreateArtifact(ctx, projID, "directory", creator, emptyDirEnc, nil)
	if err != nil {
		return nil, err
	}

	baseAgent := agents.BaselineAgent{}
	baselineEnc, err := baseAgent.Encode(&agents.Baseline{
		RootDirectoryID: dirArt.ID,
		Versions:        map[string]string{dirArt.ID: dirVer.ID},
	})
	if err != nil {
		return nil, err
	}
	baseArt, baseVer, err := s.Artifacts.CreateArtifact(ctx, projID, "baseline", creator, baselineEnc, nil)
	if err != nil {
		return nil, err
	}

	histID := ids.New(ids.KindHistory)
	stepID := ids.New(ids.KindStep)

	step := &HistoryStep{
		ID: stepID, Project: projID, HistoryName: "main", Index: 0,
		BaselineArtifactID: baseArt.ID, BaselineVersionID: baseVer.ID,
		Description: "initial history",
	}
	if err := s.Steps.Create(ctx, stepID, historyKey(projID, "main")+sep+"0", step); err != nil {
		return nil, err
	}

	history := &History{
		ID: histID, Project: projID, Name: "main", Description: "the main history",
		Basis:   "", // the root history has no basis
		StepIDs: []string{stepID},
	}
	if err := s.Histories.Create(ctx, histID, historyKey(projID, "main"), history); err != nil {
		return nil, err
	}

	project := &Project{
		ID: projID, Name: name, Creator: creator, Description: description,
		RootDirectoryArtifactID: dirArt.ID, BaselineArtifactID: baseArt.ID,
		HistoryIDs: []string{histID}, CreatedAt: time.Now().UTC(),
	}
	if err := s.Projects.Create(ctx, projID, name, project); err != nil {
		return nil, err
	}
	return project, nil
}

// CreateHistory implements §4.3's History create: branch a new history at
// an existing step, cloning its baseline IDs into a "branch marker" first
// step.
func (s *Stashes) CreateHistory(ctx context.Context, project *Project, name, description string, branchPoint *HistoryStep, basis string) (*History, error) {
	if _, err := s.Histories.IDForName(ctx, historyKey(project.ID, name)); err == nil {
		return nil, errs.Conflictf("history %q already exists in project %q", name, project.Name)
	}

	histID := ids.New(ids.KindHistory)
	stepID := ids.New(ids.KindStep)
	step := &HistoryStep{
		ID: stepID, Project: project.ID, HistoryName: name, Index: 0,
		BaselineArtifactID: branchPoint.BaselineArtifactID,
		BaselineVersionID:  branchPoint.BaselineVersionID,
		Description:        "branch into new history",
	}
	if err := s.Steps.Create(ctx, stepID, historyKey(project.ID, name)+sep+"0", step); err != nil {
		return nil, err
	}

	history := &History{
		ID: histID, Project: project.ID, Name: name, Description: description,
		Basis: basis, StepIDs: []string{stepID},
	}
	if err := s.Histories.Create(ctx, histID, historyKey(project.ID, name), history); err != nil {
		return nil, err
	}

	project.HistoryIDs = append(project.HistoryIDs, histID)
	if err := s.Projects.Update(ctx, project.ID, project); err != nil {
		return nil, err
	}
	return history, nil
}

// AppendHistoryStep appends a new step to a history, enforcing only that
// the change owning it is Closed (§4.3). It trusts the caller to have
// already established that baselineVersionID strictly descends from the
// history's current tip; workspace.Engine.Deliver is the sole caller, and
// it performs that ancestry check itself (via upToDate) before invoking
// this method, since it already holds the artifact store needed to walk
// the version DAG.
func (s *Stashes) AppendHistoryStep(ctx context.Context, history *History, change *Change, baselineArtifactID, baselineVersionID, description string) (*HistoryStep, error) {
	if change.Status != ChangeClosed {
		return nil, errs.Constraintf("change %s is not Closed", change.ID)
	}

	stepID := ids.New(ids.KindStep)
	step := &HistoryStep{
		ID: stepID, Project: history.Project, HistoryName: history.Name,
		Index: len(history.StepIDs), BaselineArtifactID: baselineArtifactID,
		BaselineVersionID: baselineVersionID, ChangeID: change.ID,
		Description: description,
	}
	indexName := historyKey(history.Project, history.Name) + sep + itoa(step.Index)
	if err := s.Steps.Create(ctx, stepID, indexName, step); err != nil {
		return nil, err
	}
	history.StepIDs = append(history.StepIDs, stepID)
	if err := s.Histories.Update(ctx, history.ID, history); err != nil {
		return nil, err
	}
	return step, nil
}

// StepByIndex resolves the step at a given index within a history.
func (s *Stashes) StepByIndex(ctx context.Context, project, historyName string, index int) (*HistoryStep, error) {
	return s.Steps.GetByName(ctx, historyKey(project, historyName)+sep+itoa(index))
}

// TipStep resolves a history's most recent step.
func (s *Stashes) TipStep(ctx context.Context, history *History) (*HistoryStep, error) {
	if len(history.StepIDs) == 0 {
		return nil, errs.Internalf("history %s has no steps", history.ID)
	}
	return s.Steps.Get(ctx, history.StepIDs[len(history.StepIDs)-1])
}

// CreateChange opens a new change within (project, history).
func (s *Stashes) CreateChange(ctx context.Context, project, history, name, basis, description, baselineArtifactID string) (*Change, error) {
	chID := ids.New(ids.KindChange)
	change := &Change{
		ID: chID, Project: project, History: history, Name: name,
		Basis: basis, Description: description, BaselineArtifactID: baselineArtifactID,
		Status: ChangeOpen,
	}
	if err := s.Changes.Create(ctx, chID, changeKey(project, history, name), change); err != nil {
		return nil, err
	}
	return change, nil
}

// AppendSavePoint appends a save point to a change.
func (s *Stashes) AppendSavePoint(ctx context.Context, change *Change, creator, description, basis, newBaselineVerID string, modified []string) (*SavePoint, error) {
	spID := ids.New(ids.KindSavePoint)
	sp := &SavePoint{
		ID: spID, Change: change.ID, Creator: creator, Description: description,
		Basis: basis, NewBaselineVerID: newBaselineVerID, ModifiedArtifacts: modified,
		CreatedAt: time.Now().UTC(),
	}
	// SavePoint and the owning Change update together so the append-only
	// list and the change's basis/version stay consistent.
	if err := s.SavePts.Create(ctx, spID, spID, sp); err != nil {
		return nil, err
	}
	change.SavePointIDs = append(change.SavePointIDs, spID)
	if err := s.Changes.Update(ctx, change.ID, change); err != nil {
		return nil, err
	}
	return sp, nil
}

// SetChangeStatus transitions a change's status. Open->Closed (deliver) and
// Open->Aborted (user abort) are the only legal transitions; Closed and
// Aborted are terminal (§3).
func (s *Stashes) SetChangeStatus(ctx context.Context, change *Change, status ChangeStatus) error {
	if change.Status != ChangeOpen {
		return errs.Constraintf("change %s is %s, not Open", change.ID, change.Status)
	}
	change.Status = status
	return s.Changes.Update(ctx, change.ID, change)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
