package artifact

import (
	"context"
	"testing"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(kv.NewMemoryStore())
}

func TestCreateArtifactCommitsFirstVersion(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	art, ver, err := s.CreateArtifact(ctx, "widgets", "text", "alice", "hello\n", nil)
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	if ver.Status != StatusCommitted {
		t.Errorf("expected first version Committed, got %s", ver.Status)
	}
	if len(ver.ParentIDs) != 0 {
		t.Errorf("expected first version to have no parents, got %v", ver.ParentIDs)
	}
	if len(art.VersionIDs) != 1 || art.VersionIDs[0] != ver.ID {
		t.Errorf("expected artifact to list its first version, got %v", art.VersionIDs)
	}
}

func TestWorkingVersionLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, base, err := s.CreateArtifact(ctx, "widgets", "text", "alice", "hello\n", nil)
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	wv, err := s.CreateWorkingVersion(ctx, base.ArtifactID, base.ID, "chg:1")
	if err != nil {
		t.Fatalf("CreateWorkingVersion failed: %v", err)
	}
	if wv.Status != StatusWorking {
		t.Errorf("expected new working version, got %s", wv.Status)
	}
	if wv.ParentIDs[0] != base.ID {
		t.Errorf("expected working version parented at base, got %v", wv.ParentIDs)
	}

	content := "hello\nworld\n"
	updated, err := s.UpdateWorkingVersion(ctx, wv.ID, &content, nil, nil)
	if err != nil {
		t.Fatalf("UpdateWorkingVersion failed: %v", err)
	}
	if updated.Content != content {
		t.Errorf("expected updated content, got %q", updated.Content)
	}

	op, err := s.StageCommit(ctx, wv.ID)
	if err != nil {
		t.Fatalf("StageCommit failed: %v", err)
	}
	if err := s.db.WriteBatch(ctx, []kv.Op{op}); err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	committed, err := s.RetrieveVersion(ctx, wv.ID)
	if err != nil {
		t.Fatalf("RetrieveVersion failed: %v", err)
	}
	if committed.Status != StatusCommitted {
		t.Errorf("expected staged commit to land as Committed, got %s", committed.Status)
	}
	if committed.OwningChange != "" {
		t.Errorf("expected OwningChange cleared on commit, got %q", committed.OwningChange)
	}
}

func TestCreateWorkingVersionRequiresCommittedBase(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, base, err := s.CreateArtifact(ctx, "widgets", "text", "alice", "hello\n", nil)
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	wv, err := s.CreateWorkingVersion(ctx, base.ArtifactID, base.ID, "chg:1")
	if err != nil {
		t.Fatalf("CreateWorkingVersion failed: %v", err)
	}
	if _, err := s.CreateWorkingVersion(ctx, base.ArtifactID, wv.ID, "chg:2"); !errs.Is(err, errs.Constraint) {
		t.Errorf("expected Constraint kind basing a working version off another working version, got %v", err)
	}
}

func TestAbortWorkingVersionErasesContent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, base, err := s.CreateArtifact(ctx, "widgets", "text", "alice", "hello\n", nil)
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	wv, err := s.CreateWorkingVersion(ctx, base.ArtifactID, base.ID, "chg:1")
	if err != nil {
		t.Fatalf("CreateWorkingVersion failed: %v", err)
	}
	aborted, err := s.AbortWorkingVersion(ctx, wv.ID)
	if err != nil {
		t.Fatalf("AbortWorkingVersion failed: %v", err)
	}
	if aborted.Status != StatusAborted {
		t.Errorf("expected Aborted status, got %s", aborted.Status)
	}
	if aborted.Content != "" {
		t.Error("expected content erased on abort")
	}
	if _, err := s.UpdateWorkingVersion(ctx, wv.ID, nil, nil, nil); !errs.Is(err, errs.Constraint) {
		t.Errorf("expected Constraint kind updating an aborted version, got %v", err)
	}
}
