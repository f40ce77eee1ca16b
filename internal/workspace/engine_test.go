package workspace

import (
	"context"
	"testing"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/agents"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/artifact"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/stash"
)

type fixture struct {
	engine  *Engine
	stashes *stash.Stashes
	arts    *artifact.Store
	project *stash.Project
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db := kv.NewMemoryStore()
	arts := artifact.NewStore(db)
	stashes := stash.NewStashes(db, arts)
	engine := NewEngine(db, arts, stashes, agents.NewRegistry())

	proj, err := stashes.CreateProject(context.Background(), "widgets", "alice", "")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	return &fixture{engine: engine, stashes: stashes, arts: arts, project: proj}
}

func textContent(t *testing.T, lines ...string) string {
	t.Helper()
	enc, err := (agents.TextAgent{}).Encode(&agents.Text{Lines: lines})
	if err != nil {
		t.Fatalf("encoding text content: %v", err)
	}
	return enc
}

func TestAddModifySaveDeliver(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ws, err := f.engine.Create(ctx, "widgets", "main", "alice-ws", "alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.engine.OpenChange(ctx, ws, "my-change", "first change"); err != nil {
		t.Fatalf("OpenChange failed: %v", err)
	}

	artID, err := f.engine.Add(ctx, ws, nil, "readme.txt", "text", "alice", textContent(t, "hello\n"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(ws.Modified) != 2 { // the new artifact's parent directory + baseline
		t.Errorf("expected 2 modified artifacts after add, got %d", len(ws.Modified))
	}

	if err := f.engine.Modify(ctx, ws, []string{"readme.txt"}, textContent(t, "hello\n", "world\n")); err != nil {
		t.Fatalf("Modify failed: %v", err)
	}

	sp, err := f.engine.Save(ctx, ws, "alice", "added and edited readme", nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(ws.Modified) != 0 || len(ws.WorkingVersions) != 0 {
		t.Error("expected workspace state cleared after save")
	}
	if sp.Change == "" {
		t.Error("expected save point to reference its change")
	}

	verStatus, err := f.arts.RetrieveVersionStatus(ctx, sp.NewBaselineVerID)
	if err != nil {
		t.Fatalf("RetrieveVersionStatus failed: %v", err)
	}
	if verStatus != artifact.StatusCommitted {
		t.Errorf("expected committed baseline version after save, got %s", verStatus)
	}

	step, err := f.engine.Deliver(ctx, ws)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if step.Index != 1 {
		t.Errorf("expected delivered step index 1, got %d", step.Index)
	}
	if ws.ChangeName != "" {
		t.Error("expected change name cleared after deliver")
	}

	change, err := f.stashes.Changes.GetByName(ctx, "widgets\x00main\x00my-change")
	if err != nil {
		t.Fatalf("fetching change: %v", err)
	}
	if change.Status != stash.ChangeClosed {
		t.Errorf("expected delivered change to be Closed, got %s", change.Status)
	}

	_ = artID
}

func TestModifyRequiresOpenChange(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ws, err := f.engine.Create(ctx, "widgets", "main", "alice-ws", "alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.engine.Modify(ctx, ws, []string{"readme.txt"}, textContent(t, "x\n")); err == nil {
		t.Fatal("expected an error modifying with no open change")
	} else if !errs.Is(err, errs.Constraint) {
		t.Errorf("expected Constraint kind, got %v", err)
	}
}

func TestDeleteDirectoryRemovesTransitiveArtifacts(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ws, err := f.engine.Create(ctx, "widgets", "main", "alice-ws", "alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.engine.OpenChange(ctx, ws, "my-change", ""); err != nil {
		t.Fatalf("OpenChange failed: %v", err)
	}

	dirEnc, err := (agents.DirectoryAgent{}).Encode(&agents.Directory{})
	if err != nil {
		t.Fatalf("encoding empty directory: %v", err)
	}
	if _, err := f.engine.Add(ctx, ws, nil, "subdir", "directory", "alice", dirEnc); err != nil {
		t.Fatalf("Add(subdir) failed: %v", err)
	}
	if _, err := f.engine.Add(ctx, ws, []string{"subdir"}, "inner.txt", "text", "alice", textContent(t, "x\n")); err != nil {
		t.Fatalf("Add(inner.txt) failed: %v", err)
	}

	removed, err := f.engine.Delete(ctx, ws, []string{"subdir"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed artifacts (subdir + inner.txt), got %d", len(removed))
	}

	if _, err := f.engine.resolveArtifactPath(ctx, ws, []string{"subdir"}); err == nil {
		t.Error("expected subdir to no longer resolve after delete")
	}
}

func TestUpdateIsNoOpWhenUpToDate(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ws, err := f.engine.Create(ctx, "widgets", "main", "alice-ws", "alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	before := ws.BaselineVersionID
	if err := f.engine.Update(ctx, ws); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ws.BaselineVersionID != before {
		t.Error("expected Update to be a no-op when already up to date")
	}
}

// TestDeliverRequiresUpToDateBasis reproduces scenario S6: a workspace
// whose basis has fallen behind a concurrent delivery to the same
// history is rejected at deliver, and can only proceed after an update
// pulls the new step into its basis.
func TestDeliverRequiresUpToDateBasis(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ws, err := f.engine.Create(ctx, "widgets", "main", "alice-ws", "alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.engine.OpenChange(ctx, ws, "alice-change", ""); err != nil {
		t.Fatalf("OpenChange failed: %v", err)
	}
	if _, err := f.engine.Add(ctx, ws, nil, "alice.txt", "text", "alice", textContent(t, "alice\n")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := f.engine.Save(ctx, ws, "alice", "add alice.txt", nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A second workspace delivers a concurrent step to the same history
	// before the first workspace's deliver, leaving ws's basis stale.
	ws2, err := f.engine.Create(ctx, "widgets", "main", "bob-ws", "bob", "")
	if err != nil {
		t.Fatalf("Create (ws2) failed: %v", err)
	}
	if _, err := f.engine.OpenChange(ctx, ws2, "bob-change", ""); err != nil {
		t.Fatalf("OpenChange (ws2) failed: %v", err)
	}
	if _, err := f.engine.Add(ctx, ws2, nil, "bob.txt", "text", "bob", textContent(t, "bob\n")); err != nil {
		t.Fatalf("Add (ws2) failed: %v", err)
	}
	if _, err := f.engine.Save(ctx, ws2, "bob", "add bob.txt", nil); err != nil {
		t.Fatalf("Save (ws2) failed: %v", err)
	}
	if _, err := f.engine.Deliver(ctx, ws2); err != nil {
		t.Fatalf("Deliver (ws2) failed: %v", err)
	}

	if _, err := f.engine.Deliver(ctx, ws); err == nil {
		t.Fatal("expected deliver to fail while ws's basis is behind history tip")
	} else if !errs.Is(err, errs.UserError) {
		t.Errorf("expected UserError kind, got %v", err)
	}

	beforeMerge := ws.BaselineVersionID
	if err := f.engine.Update(ctx, ws); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ws.BaselineVersionID == beforeMerge {
		t.Error("expected Update to produce a new merged baseline version")
	}
	if _, err := f.engine.Save(ctx, ws, "alice", "save merged baseline", nil); err != nil {
		t.Fatalf("Save after update failed: %v", err)
	}

	step, err := f.engine.Deliver(ctx, ws)
	if err != nil {
		t.Fatalf("Deliver failed after update: %v", err)
	}
	if step.Index != 2 {
		t.Errorf("expected delivered step index 2 (after ws2's step 1), got %d", step.Index)
	}

	descends, err := f.arts.VersionIsAncestor(ctx, beforeMerge, step.BaselineVersionID)
	if err != nil {
		t.Fatalf("VersionIsAncestor failed: %v", err)
	}
	if !descends {
		t.Error("expected the delivered step's baseline to descend from ws's pre-update baseline")
	}
}

func TestUpdateMergesConcurrentHistoryDelivery(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ws, err := f.engine.Create(ctx, "widgets", "main", "alice-ws", "alice", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.engine.OpenChange(ctx, ws, "alice-change", ""); err != nil {
		t.Fatalf("OpenChange failed: %v", err)
	}
	if _, err := f.engine.Add(ctx, ws, nil, "alice.txt", "text", "alice", textContent(t, "alice\n")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// A second workspace delivers a concurrent, non-conflicting change to
	// history tip before the first workspace saves.
	ws2, err := f.engine.Create(ctx, "widgets", "main", "bob-ws", "bob", "")
	if err != nil {
		t.Fatalf("Create (ws2) failed: %v", err)
	}
	if _, err := f.engine.OpenChange(ctx, ws2, "bob-change", ""); err != nil {
		t.Fatalf("OpenChange (ws2) failed: %v", err)
	}
	if _, err := f.engine.Add(ctx, ws2, nil, "bob.txt", "text", "bob", textContent(t, "bob\n")); err != nil {
		t.Fatalf("Add (ws2) failed: %v", err)
	}
	if _, err := f.engine.Save(ctx, ws2, "bob", "add bob.txt", nil); err != nil {
		t.Fatalf("Save (ws2) failed: %v", err)
	}
	if _, err := f.engine.Deliver(ctx, ws2); err != nil {
		t.Fatalf("Deliver (ws2) failed: %v", err)
	}

	if err := f.engine.Update(ctx, ws); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(ws.Conflicts) != 0 {
		t.Errorf("expected no conflicts merging non-overlapping adds, got %d", len(ws.Conflicts))
	}

	if _, err := f.engine.Save(ctx, ws, "alice", "add alice.txt after update", nil); err != nil {
		t.Fatalf("Save failed after update: %v", err)
	}
	if _, err := f.engine.Deliver(ctx, ws); err != nil {
		t.Fatalf("Deliver failed after update: %v", err)
	}

	root, err := f.engine.loadDirectory(ctx, ws, ws.RootDirectoryArtifactID)
	if err != nil {
		t.Fatalf("loadDirectory failed: %v", err)
	}
	names := map[string]bool{}
	for _, e := range root.Entries {
		names[e.Name] = true
	}
	if !names["alice.txt"] || !names["bob.txt"] {
		t.Errorf("expected merged root to contain both alice.txt and bob.txt, got %v", names)
	}
}
