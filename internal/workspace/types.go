// Package workspace implements the workspace engine (§4.5, component 8):
// the user's mutable view onto a basis PVS, the add/move/delete/modify
// mutators, save/deliver, and the update/integrate merge orchestration
// built atop internal/agents and internal/artifact's NCA.
package workspace

import (
	"time"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/agents"
)

// Workspace is the user's view onto a basis PVS plus zero or more Working
// versions (§3).
type Workspace struct {
	ID          string    `json:"id"`
	Project     string    `json:"project"`
	Name        string    `json:"name"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Description string    `json:"description"`

	// Basis is the formatted PVS this workspace currently tracks.
	Basis string `json:"basis"`

	RootDirectoryArtifactID string `json:"rootDirectoryArtifactId"`
	BaselineArtifactID      string `json:"baselineArtifactId"`
	BaselineVersionID       string `json:"baselineVersionId"`

	HistoryName string `json:"historyName"`
	// ChangeName is empty when the workspace has no open change.
	ChangeName string `json:"changeName,omitempty"`

	// WorkingVersions maps artifact ID -> Working version ID, for every
	// artifact (including the baseline artifact itself) touched since the
	// last save.
	WorkingVersions map[string]string `json:"workingVersions"`
	// Modified is the set of artifact IDs touched since the last save.
	Modified map[string]bool `json:"modified"`

	Conflicts []MergeConflict `json:"conflicts"`
}

// MergeConflict is one unresolved three-way conflict surfaced onto a
// workspace by update/integrate, tagged with its own ID so a later save
// can reference it in a resolved set.
type MergeConflict struct {
	ID string `json:"id"`
	agents.Conflict
}

func newWorkspaceState() (map[string]string, map[string]bool) {
	return map[string]string{}, map[string]bool{}
}
