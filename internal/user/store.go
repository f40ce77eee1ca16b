package user

import (
	"context"
	"time"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/ids"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/kv"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/perm"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/stash"
)

// Store implements §4.6's user & session store: account lifecycle, grants,
// and token issuance, atop a primary+index Users collection and a raw
// per-user token record.
type Store struct {
	db      kv.Store
	Users   *stash.Indexed[User]
	Hashers map[string]Hasher
	Default string // hasher name new accounts are created with
}

// NewStore builds a Store with both documented hashers registered,
// defaulting new accounts to defaultHasher (e.g. "bcrypt").
func NewStore(db kv.Store, defaultHasher string) *Store {
	return &Store{
		db:    db,
		Users: stash.NewIndexed[User](db, kv.FamilyUsers),
		Hashers: map[string]Hasher{
			SHA256Hasher{}.Name(): SHA256Hasher{},
			BcryptHasher{}.Name(): BcryptHasher{},
		},
		Default: defaultHasher,
	}
}

func (s *Store) hasherFor(name string) (Hasher, error) {
	h, ok := s.Hashers[name]
	if !ok {
		return nil, errs.Internalf("no hasher registered with name %q", name)
	}
	return h, nil
}

// Create makes a new active account with no grants (§4.6).
func (s *Store) Create(ctx context.Context, username, email, password string) (*User, error) {
	hasher, err := s.hasherFor(s.Default)
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(username, password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           ids.New(ids.KindUser),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		HasherName:   hasher.Name(),
		Active:       true,
		Grants:       nil,
		CreatedAt:    time.Now(),
	}
	if err := s.Users.Create(ctx, u.ID, username, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Retrieve fetches a user by ID.
func (s *Store) Retrieve(ctx context.Context, id string) (*User, error) {
	return s.Users.Get(ctx, id)
}

// RetrieveByUsername fetches a user by their login name.
func (s *Store) RetrieveByUsername(ctx context.Context, username string) (*User, error) {
	return s.Users.GetByName(ctx, username)
}

// List returns every account (order unspecified).
func (s *Store) List(ctx context.Context) ([]*User, error) {
	return s.Users.List(ctx)
}

// Authenticate verifies a username/password pair against an active
// account (§4.6). Both unknown usernames and wrong passwords report the
// same Authentication error, so a caller cannot distinguish the two.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.Users.GetByName(ctx, username)
	if err != nil {
		return nil, errs.Authenticationf("invalid username or password")
	}
	if !u.Active {
		return nil, errs.Authenticationf("invalid username or password")
	}
	hasher, err := s.hasherFor(u.HasherName)
	if err != nil {
		return nil, err
	}
	if !hasher.Verify(username, password, u.PasswordHash) {
		return nil, errs.Authenticationf("invalid username or password")
	}
	return u, nil
}

// Deactivate disables an account, preventing further authentication.
func (s *Store) Deactivate(ctx context.Context, u *User) error {
	u.Active = false
	return s.Users.Update(ctx, u.ID, u)
}

// Reactivate re-enables a previously deactivated account.
func (s *Store) Reactivate(ctx context.Context, u *User) error {
	u.Active = true
	return s.Users.Update(ctx, u.ID, u)
}

// UpdatePassword rehashes password under the store's default hasher,
// letting an account migrate off a weaker one on next password change.
func (s *Store) UpdatePassword(ctx context.Context, u *User, password string) error {
	hasher, err := s.hasherFor(s.Default)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(u.Username, password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.HasherName = hasher.Name()
	return s.Users.Update(ctx, u.ID, u)
}

// Grant adds a permission action to a user's grants, if not already held.
func (s *Store) Grant(ctx context.Context, u *User, action perm.Action) error {
	for _, g := range u.Grants {
		if g == action {
			return nil
		}
	}
	u.Grants = append(u.Grants, action)
	return s.Users.Update(ctx, u.ID, u)
}

// Revoke removes a permission action from a user's grants, if present.
func (s *Store) Revoke(ctx context.Context, u *User, action perm.Action) error {
	kept := u.Grants[:0]
	for _, g := range u.Grants {
		if g != action {
			kept = append(kept, g)
		}
	}
	u.Grants = kept
	return s.Users.Update(ctx, u.ID, u)
}

// Authorized reports whether u's grants cover the requested action (§4.6).
func (u *User) Authorized(requested perm.Action) bool {
	return perm.Authorized(u.Grants, requested)
}
