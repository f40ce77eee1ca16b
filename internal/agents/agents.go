// Package agents implements the depot's per-artifact-type codecs and
// three-way merge engine (§4.2, component 5): directory, baseline, text
// (LCS-based), and binary agents, each exposing {encode, decode, merge}.
//
// Merge never throws on conflict: conflicts are returned as data in a
// MergeResult. Agents only return an error on a structural invariant
// violation (e.g. mismatched baseline roots), per §7.
package agents

// ConflictKind further classifies a MergeConflict raised by the directory
// or baseline agents (§3).
type ConflictKind string

const (
	ConflictModMod ConflictKind = "MOD_MOD"
	ConflictModDel ConflictKind = "MOD_DEL"
	ConflictDelMod ConflictKind = "DEL_MOD"
)

// Conflict records one unresolved three-way conflict. Details is an
// agent-specific human-readable description of the conflict.
type Conflict struct {
	ArtifactID   string
	ArtifactType string
	SourceVer    string
	TargetVer    string
	Kind         ConflictKind
	Details      string
}

// Result is what Merge returns: a proposed merged encoding plus any
// conflicts raised while producing it.
type Result struct {
	Proposal  string
	Conflicts []Conflict
}

// Agent is the capability set every artifact type must provide.
type Agent interface {
	Encode(content any) (string, error)
	Decode(encoded string) (any, error)
	// Merge performs a three-way merge given the encoded ancestor, source,
	// and target content. artifactID is threaded through purely so agents
	// can stamp it onto any Conflicts they raise.
	Merge(artifactID, ancestor, source, target string) (Result, error)
}

// Registry looks up an Agent by artifact-type tag (§9: "an agent registry
// indexed by artifact-type string").
type Registry struct {
	agents map[string]Agent
}

// NewRegistry builds the standard registry of directory/baseline/text/binary
// agents.
func NewRegistry() *Registry {
	return &Registry{agents: map[string]Agent{
		"directory": &DirectoryAgent{},
		"baseline":  &BaselineAgent{},
		"text":      &TextAgent{},
		"binary":    &BinaryAgent{},
	}}
}

// For looks up the agent for a type tag.
func (r *Registry) For(artifactType string) (Agent, bool) {
	a, ok := r.agents[artifactType]
	return a, ok
}
