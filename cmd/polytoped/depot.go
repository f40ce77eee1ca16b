package main

import (
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/agents"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/artifact"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/stash"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/workspace"
)

// newArtifactStore and newStashes centralize the depot core's wiring so
// both `init` and `serve` build identical component graphs over the same
// kv.Store.
func newArtifactStore(db kv.Store) *artifact.Store {
	return artifact.NewStore(db)
}

func newStashes(db kv.Store, artifacts *artifact.Store) *stash.Stashes {
	return stash.NewStashes(db, artifacts)
}

func newEngine(db kv.Store, artifacts *artifact.Store, stashes *stash.Stashes) *workspace.Engine {
	return workspace.NewEngine(db, artifacts, stashes, agents.NewRegistry())
}
