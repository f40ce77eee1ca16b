package user

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/ids"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
)

// tokens live one-per-user, keyed directly by user ID rather than through
// an Indexed collection: issuance always overwrites in place, which
// Indexed.Create's duplicate-name rejection doesn't support.

func (s *Store) loadToken(ctx context.Context, userID string) (*Token, bool, error) {
	raw, ok, err := s.db.Get(ctx, kv.FamilyTokens, userID)
	if err != nil {
		return nil, false, errs.Wrap(errs.Internal, err, "reading token for user %s", userID)
	}
	if !ok {
		return nil, false, nil
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, false, errs.Wrap(errs.Internal, err, "decoding token for user %s", userID)
	}
	return &t, true, nil
}

func (s *Store) saveToken(ctx context.Context, t *Token) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encoding token")
	}
	return s.db.Put(ctx, kv.FamilyTokens, t.UserID, raw)
}

// IssueToken implements §4.6's rotation policy: a token with less than a
// day left is rotated; otherwise the existing token is reused, valid for
// up to a week from its original issuance.
func (s *Store) IssueToken(ctx context.Context, u *User) (*Token, error) {
	existing, ok, err := s.loadToken(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if ok && time.Until(existing.ExpiresAt) > rotateThreshold {
		return existing, nil
	}

	now := time.Now()
	t := &Token{
		Value:     ids.New(ids.KindToken),
		UserID:    u.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(tokenLifetime),
	}
	if err := s.saveToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ValidateToken reports whether value is the live, unexpired token bound
// to userID. Comparison is constant-time to avoid leaking the stored
// value through timing.
func (s *Store) ValidateToken(ctx context.Context, userID, value string) (bool, error) {
	t, ok, err := s.loadToken(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if time.Now().After(t.ExpiresAt) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(t.Value), []byte(value)) == 1, nil
}

// RevokeToken invalidates a user's current token immediately, e.g. on
// deactivation or explicit logout.
func (s *Store) RevokeToken(ctx context.Context, userID string) error {
	if err := s.db.Delete(ctx, kv.FamilyTokens, userID); err != nil {
		return errs.Wrap(errs.Internal, err, "revoking token for user %s", userID)
	}
	return nil
}
