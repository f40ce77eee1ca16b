// Package stash implements the project/history/change/save-point named
// collections (§4.3, component 6): each maintains a primary map keyed by
// ID and a secondary index keyed by human names, with every write updating
// both atomically.
package stash

import (
	"context"
	"encoding/json"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
)

const indexKeyReserved = "__index__"

// Indexed is a generic named+indexed collection over one kv.Family:
// records live at their own ID key, and a single reserved key holds the
// index name -> ID map (§9: "every create/update/delete of a named entity
// writes the primary record and the index entry in the same atomic
// batch").
type Indexed[T any] struct {
	db     kv.Store
	family kv.Family
}

// NewIndexed builds an Indexed collection over the given family.
func NewIndexed[T any](db kv.Store, family kv.Family) *Indexed[T] {
	return &Indexed[T]{db: db, family: family}
}

func (s *Indexed[T]) loadIndex(ctx context.Context) (map[string]string, error) {
	raw, ok, err := s.db.Get(ctx, s.family, indexKeyReserved)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "reading index for family %s", s.family)
	}
	if !ok {
		return map[string]string{}, nil
	}
	var idx map[string]string
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decoding index for family %s", s.family)
	}
	return idx, nil
}

// Create writes a new record and index entry atomically. Returns Conflict
// if indexName is already taken.
func (s *Indexed[T]) Create(ctx context.Context, id, indexName string, value *T) error {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	if existing, ok := idx[indexName]; ok {
		return errs.Conflictf("name %q already in use (id %s)", indexName, existing)
	}
	idx[indexName] = id

	valBytes, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encoding record")
	}
	idxBytes, err := json.Marshal(idx)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encoding index")
	}

	return s.db.WriteBatch(ctx, []kv.Op{
		kv.Put(s.family, id, valBytes),
		kv.Put(s.family, indexKeyReserved, idxBytes),
	})
}

// Get retrieves a record by ID.
func (s *Indexed[T]) Get(ctx context.Context, id string) (*T, error) {
	raw, ok, err := s.db.Get(ctx, s.family, id)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "reading record %s", id)
	}
	if !ok {
		return nil, errs.NotFoundf("no such record %s", id)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decoding record %s", id)
	}
	return &v, nil
}

// GetByName resolves an index name to its record.
func (s *Indexed[T]) GetByName(ctx context.Context, indexName string) (*T, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := idx[indexName]
	if !ok {
		return nil, errs.NotFoundf("no such name %q", indexName)
	}
	return s.Get(ctx, id)
}

// IDForName resolves an index name to its ID without fetching the record.
func (s *Indexed[T]) IDForName(ctx context.Context, indexName string) (string, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return "", err
	}
	id, ok := idx[indexName]
	if !ok {
		return "", errs.NotFoundf("no such name %q", indexName)
	}
	return id, nil
}

// Update rewrites a record in place without touching the index.
func (s *Indexed[T]) Update(ctx context.Context, id string, value *T) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encoding record")
	}
	if err := s.db.Put(ctx, s.family, id, raw); err != nil {
		return errs.Wrap(errs.Internal, err, "persisting update to %s", id)
	}
	return nil
}

// List returns every record in the collection (order unspecified).
func (s *Indexed[T]) List(ctx context.Context) ([]*T, error) {
	entries, err := s.db.Iterate(ctx, s.family)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "listing family %s", s.family)
	}
	out := make([]*T, 0, len(entries))
	for _, e := range entries {
		if e.Key == indexKeyReserved {
			continue
		}
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "decoding record %s", e.Key)
		}
		out = append(out, &v)
	}
	return out, nil
}

// RebuildIndex recomputes the secondary index from every primary record,
// using keyFn to derive each record's index name. Used at start-up to
// repair index/primary drift (§9).
func (s *Indexed[T]) RebuildIndex(ctx context.Context, keyFn func(*T) string) error {
	entries, err := s.db.Iterate(ctx, s.family)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "listing family %s", s.family)
	}
	idx := map[string]string{}
	for _, e := range entries {
		if e.Key == indexKeyReserved {
			continue
		}
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return errs.Wrap(errs.Internal, err, "decoding record %s", e.Key)
		}
		idx[keyFn(&v)] = e.Key
	}
	raw, err := json.Marshal(idx)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encoding rebuilt index")
	}
	return s.db.Put(ctx, s.family, indexKeyReserved, raw)
}
