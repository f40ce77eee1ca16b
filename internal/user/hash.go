package user

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// Hasher turns a password into a storable hash and verifies one back.
// Username is an input so a hasher can derive a deterministic salt from it
// (§4.6); bcrypt ignores it in favor of its own embedded salt.
type Hasher interface {
	Name() string
	Hash(username, password string) (string, error)
	Verify(username, password, stored string) bool
}

// SHA256Hasher is the documented weak scheme (§4.6): a salt derived
// deterministically from the username, then a single SHA-256 pass over
// salt||password. Adequate for the reference depot, not for production
// use — see BcryptHasher.
type SHA256Hasher struct{}

func (SHA256Hasher) Name() string { return "sha256" }

func (SHA256Hasher) salt(username string) []byte {
	sum := sha256.Sum256([]byte(username))
	return sum[:]
}

func (h SHA256Hasher) Hash(username, password string) (string, error) {
	salted := append(h.salt(username), []byte(password)...)
	sum := sha256.Sum256(salted)
	return hex.EncodeToString(sum[:]), nil
}

func (h SHA256Hasher) Verify(username, password, stored string) bool {
	computed, err := h.Hash(username, password)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}

// BcryptHasher is the production-grade replacement §4.6 explicitly
// allows, salting and hashing with bcrypt's own cost-parameterized KDF.
type BcryptHasher struct {
	Cost int // 0 selects bcrypt.DefaultCost
}

func (BcryptHasher) Name() string { return "bcrypt" }

func (h BcryptHasher) Hash(_, password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	raw, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "hashing password")
	}
	return string(raw), nil
}

func (BcryptHasher) Verify(_, password, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
