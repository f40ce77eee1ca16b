// Package artifact implements the artifact store (§4.1, component 4):
// immutable artifacts, their version DAGs, ancestry queries, and the
// nearest-common-ancestor algorithm.
package artifact

import "time"

// Status is the lifecycle state of an ArtifactVersion (§3).
type Status string

const (
	StatusWorking   Status = "Working"
	StatusCommitted Status = "Committed"
	StatusAborted   Status = "Aborted"
)

// Artifact is identity + type tag + creator + timestamp + owning project +
// metadata + the ordered, append-only list of its version IDs (§3).
type Artifact struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Creator    string            `json:"creator"`
	CreatedAt  time.Time         `json:"createdAt"`
	Project    string            `json:"project"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	VersionIDs []string          `json:"versionIds"`
}

// Version is an ArtifactVersion (§3): identity, parent artifact, type tag
// (must match the parent artifact), creator, timestamp, opaque encoded
// content, parent version IDs forming a DAG, metadata, and status.
type Version struct {
	ID         string            `json:"id"`
	ArtifactID string            `json:"artifactId"`
	Type       string            `json:"type"`
	Creator    string            `json:"creator"`
	CreatedAt  time.Time         `json:"createdAt"`
	Content    string            `json:"content"`
	ParentIDs  []string          `json:"parentIds"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Status     Status            `json:"status"`

	// OwningChange names the change (if any) that owns this Working
	// version. Empty for Committed/Aborted versions.
	OwningChange string `json:"owningChange,omitempty"`
}
