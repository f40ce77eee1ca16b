package artifact

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/ids"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
)

// Store implements the artifact-store operations of §4.1.
type Store struct {
	db kv.Store
}

// NewStore wraps a kv.Store as an artifact Store.
func NewStore(db kv.Store) *Store {
	return &Store{db: db}
}

func (s *Store) getArtifact(ctx context.Context, id string) (*Artifact, error) {
	raw, ok, err := s.db.Get(ctx, kv.FamilyArtifacts, id)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "reading artifact %s", id)
	}
	if !ok {
		return nil, errs.NotFoundf("no such artifact %s", id)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decoding artifact %s", id)
	}
	return &a, nil
}

func (s *Store) getVersion(ctx context.Context, id string) (*Version, error) {
	raw, ok, err := s.db.Get(ctx, kv.FamilyVersions, id)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "reading version %s", id)
	}
	if !ok {
		return nil, errs.NotFoundf("no such version %s", id)
	}
	var v Version
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decoding version %s", id)
	}
	return &v, nil
}

// RetrieveArtifact returns the artifact record by ID.
func (s *Store) RetrieveArtifact(ctx context.Context, id string) (*Artifact, error) {
	return s.getArtifact(ctx, id)
}

// RetrieveVersion returns the version record by ID.
func (s *Store) RetrieveVersion(ctx context.Context, id string) (*Version, error) {
	return s.getVersion(ctx, id)
}

// RetrieveVersionStatus returns just the status of a version.
func (s *Store) RetrieveVersionStatus(ctx context.Context, id string) (Status, error) {
	v, err := s.getVersion(ctx, id)
	if err != nil {
		return "", err
	}
	return v.Status, nil
}

func marshalArtifact(a *Artifact) ([]byte, error) { return json.Marshal(a) }
func marshalVersion(v *Version) ([]byte, error)   { return json.Marshal(v) }

// CreateArtifact creates a new artifact together with its first Committed
// version.
func (s *Store) CreateArtifact(ctx context.Context, project, artifactType, creator, content string, metadata map[string]string) (*Artifact, *Version, error) {
	now := time.Now().UTC()
	artID := ids.New(ids.KindArtifact)
	verID := ids.New(ids.KindVersion)

	version := &Version{
		ID:         verID,
		ArtifactID: artID,
		Type:       artifactType,
		Creator:    creator,
		CreatedAt:  now,
		Content:    content,
		ParentIDs:  nil,
		Status:     StatusCommitted,
	}
	art := &Artifact{
		ID:         artID,
		Type:       artifactType,
		Creator:    creator,
		CreatedAt:  now,
		Project:    project,
		Metadata:   metadata,
		VersionIDs: []string{verID},
	}

	artBytes, err := marshalArtifact(art)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Internal, err, "encoding artifact")
	}
	verBytes, err := marshalVersion(version)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Internal, err, "encoding version")
	}

	if err := s.db.WriteBatch(ctx, []kv.Op{
		kv.Put(kv.FamilyArtifacts, artID, artBytes),
		kv.Put(kv.FamilyVersions, verID, verBytes),
	}); err != nil {
		return nil, nil, errs.Wrap(errs.Internal, err, "persisting new artifact")
	}
	return art, version, nil
}

// CreateVersion creates a new, immediately Committed version with the
// given parents. Every parent must itself be Committed.
func (s *Store) CreateVersion(ctx context.Context, artifactID, artifactType, creator, content string, parents []string, metadata map[string]string) (*Version, error) {
	art, err := s.getArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if art.Type != artifactType {
		return nil, errs.TypeErrorf("artifact %s has type %q, not %q", artifactID, art.Type, artifactType)
	}
	for _, p := range parents {
		pv, err := s.getVersion(ctx, p)
		if err != nil {
			return nil, err
		}
		if pv.Status != StatusCommitted {
			return nil, errs.Constraintf("parent version %s is not Committed", p)
		}
	}

	now := time.Now().UTC()
	verID := ids.New(ids.KindVersion)
	version := &Version{
		ID:         verID,
		ArtifactID: artifactID,
		Type:       artifactType,
		Creator:    creator,
		CreatedAt:  now,
		Content:    content,
		ParentIDs:  parents,
		Metadata:   metadata,
		Status:     StatusCommitted,
	}
	verBytes, err := marshalVersion(version)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "encoding version")
	}

	art.VersionIDs = append(art.VersionIDs, verID)
	artBytes, err := marshalArtifact(art)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "encoding artifact")
	}

	if err := s.db.WriteBatch(ctx, []kv.Op{
		kv.Put(kv.FamilyVersions, verID, verBytes),
		kv.Put(kv.FamilyArtifacts, artifactID, artBytes),
	}); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "persisting version")
	}
	return version, nil
}

// CreateWorkingVersion creates a new Working version parented at
// baseVersion, owned by the given change.
func (s *Store) CreateWorkingVersion(ctx context.Context, artifactID, baseVersion, owningChange string) (*Version, error) {
	art, err := s.getArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	base, err := s.getVersion(ctx, baseVersion)
	if err != nil {
		return nil, err
	}
	if base.Status != StatusCommitted {
		return nil, errs.Constraintf("base version %s is not Committed", baseVersion)
	}

	now := time.Now().UTC()
	verID := ids.New(ids.KindVersion)
	version := &Version{
		ID:           verID,
		ArtifactID:   artifactID,
		Type:         art.Type,
		Creator:      base.Creator,
		CreatedAt:    now,
		Content:      base.Content,
		ParentIDs:    []string{baseVersion},
		Status:       StatusWorking,
		OwningChange: owningChange,
	}
	verBytes, err := marshalVersion(version)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "encoding version")
	}

	art.VersionIDs = append(art.VersionIDs, verID)
	artBytes, err := marshalArtifact(art)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "encoding artifact")
	}

	if err := s.db.WriteBatch(ctx, []kv.Op{
		kv.Put(kv.FamilyVersions, verID, verBytes),
		kv.Put(kv.FamilyArtifacts, artifactID, artBytes),
	}); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "persisting working version")
	}
	return version, nil
}

// UpdateWorkingVersion rewrites the content/metadata/parents of a Working
// version in place.
func (s *Store) UpdateWorkingVersion(ctx context.Context, versionID string, content *string, metadata map[string]string, parents []string) (*Version, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.Status != StatusWorking {
		return nil, errs.Constraintf("version %s is not Working", versionID)
	}
	if content != nil {
		v.Content = *content
	}
	if metadata != nil {
		v.Metadata = metadata
	}
	if parents != nil {
		v.ParentIDs = parents
	}
	v.CreatedAt = time.Now().UTC()

	raw, err := marshalVersion(v)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "encoding version")
	}
	if err := s.db.Put(ctx, kv.FamilyVersions, versionID, raw); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "persisting version update")
	}
	return v, nil
}

// CommitWorkingVersion transitions a Working version to Committed.
// Committing an already-Committed version is idempotent (it is returned
// unchanged); any other non-Working status is rejected.
func (s *Store) CommitWorkingVersion(ctx context.Context, versionID string) (*Version, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.Status == StatusCommitted {
		return v, nil
	}
	if v.Status != StatusWorking {
		return nil, errs.Constraintf("version %s is not Working", versionID)
	}
	v.Status = StatusCommitted
	v.OwningChange = ""
	raw, err := marshalVersion(v)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "encoding version")
	}
	if err := s.db.Put(ctx, kv.FamilyVersions, versionID, raw); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "persisting commit")
	}
	return v, nil
}

// AbortWorkingVersion transitions a Working version to Aborted, erasing
// its content. Aborted is terminal.
func (s *Store) AbortWorkingVersion(ctx context.Context, versionID string) (*Version, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.Status != StatusWorking {
		return nil, errs.Constraintf("version %s is not Working", versionID)
	}
	v.Status = StatusAborted
	v.Content = ""
	v.OwningChange = ""
	raw, err := marshalVersion(v)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "encoding version")
	}
	if err := s.db.Put(ctx, kv.FamilyVersions, versionID, raw); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "persisting abort")
	}
	return v, nil
}

// PutOp/DeleteOp-style helpers for staged, caller-batched writes (used by
// workspace.Save to commit several versions atomically alongside other
// stash writes).

// StageCommit returns the kv.Op that would commit versionID, without
// writing it, for callers building a larger atomic batch.
func (s *Store) StageCommit(ctx context.Context, versionID string) (kv.Op, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return kv.Op{}, err
	}
	if v.Status != StatusWorking {
		return kv.Op{}, errs.Constraintf("version %s is not Working", versionID)
	}
	v.Status = StatusCommitted
	v.OwningChange = ""
	raw, err := marshalVersion(v)
	if err != nil {
		return kv.Op{}, errs.Wrap(errs.Internal, err, "encoding version")
	}
	return kv.Put(kv.FamilyVersions, versionID, raw), nil
}
