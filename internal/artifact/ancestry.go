package artifact

import (
	"context"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// AllAncestors returns the reflexive-transitive closure of versionID's
// parents, as a set of version IDs (§4.1).
func (s *Store) AllAncestors(ctx context.Context, versionID string) (map[string]struct{}, error) {
	visited := map[string]struct{}{}
	queue := []string{versionID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		v, err := s.getVersion(ctx, cur)
		if err != nil {
			return nil, err
		}
		queue = append(queue, v.ParentIDs...)
	}
	return visited, nil
}

// VersionIsAncestor reports whether candidateAncestor is a (reflexive)
// ancestor of candidateDescendant, via a BFS from the descendant toward
// parents with early exit on match (§4.1).
func (s *Store) VersionIsAncestor(ctx context.Context, candidateAncestor, candidateDescendant string) (bool, error) {
	if candidateAncestor == candidateDescendant {
		return true, nil
	}
	visited := map[string]struct{}{}
	queue := []string{candidateDescendant}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		if cur == candidateAncestor {
			return true, nil
		}
		v, err := s.getVersion(ctx, cur)
		if err != nil {
			return false, err
		}
		queue = append(queue, v.ParentIDs...)
	}
	return false, nil
}

// frontier tracks one side's expanding BFS search during NCA computation.
type frontier struct {
	visited map[string]struct{}
	queue   []string
}

func newFrontier(start string) *frontier {
	return &frontier{visited: map[string]struct{}{}, queue: []string{start}}
}

// step pops the next pending node, marks it visited, and enqueues its
// parents. Returns the popped node ID (empty if the queue was already
// drained).
func (s *Store) step(ctx context.Context, f *frontier) (string, error) {
	for len(f.queue) > 0 {
		cur := f.queue[0]
		f.queue = f.queue[1:]
		if _, seen := f.visited[cur]; seen {
			continue
		}
		f.visited[cur] = struct{}{}
		v, err := s.getVersion(ctx, cur)
		if err != nil {
			return "", err
		}
		f.queue = append(f.queue, v.ParentIDs...)
		return cur, nil
	}
	return "", nil
}

// NCA computes the nearest common ancestor of two versions of the same
// artifact (§4.1). Two expanding BFS frontiers S (from s) and T (from t)
// alternate: at each step, the frontier with the smaller visited set pops
// and expands one pending element (ties favor S). The algorithm halts as
// soon as the two visited sets intersect.
//
// Every artifact version graph is single-rooted (the artifact's first
// Committed version has no parents and every other version chains back to
// it), so the intersection is guaranteed non-empty; exhausting both queues
// without finding one is an Internal invariant violation.
func (s *Store) NCA(ctx context.Context, sourceVersion, targetVersion string) (string, error) {
	sFront := newFrontier(sourceVersion)
	tFront := newFrontier(targetVersion)

	// Seed: a version is its own ancestor.
	if sourceVersion == targetVersion {
		return sourceVersion, nil
	}

	for len(sFront.queue) > 0 || len(tFront.queue) > 0 {
		var popped string
		var poppedFromSource bool
		var err error
		if len(sFront.queue) > 0 && (len(tFront.queue) == 0 || len(sFront.visited) <= len(tFront.visited)) {
			popped, err = s.step(ctx, sFront)
			poppedFromSource = true
		} else {
			popped, err = s.step(ctx, tFront)
		}
		if err != nil {
			return "", err
		}
		if popped == "" {
			continue
		}
		// Check the newly-visited node against the other frontier only:
		// every prior node on this frontier was already checked when it
		// was visited, so re-scanning the whole set each step is
		// unnecessary.
		if poppedFromSource {
			if _, in := tFront.visited[popped]; in {
				return popped, nil
			}
		} else {
			if _, in := sFront.visited[popped]; in {
				return popped, nil
			}
		}
	}
	return "", errs.Internalf("nearest common ancestor search exhausted without finding a common version for %s, %s", sourceVersion, targetVersion)
}
