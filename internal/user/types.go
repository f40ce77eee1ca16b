// Package user implements the user & session store (§4.6, component 9):
// account lifecycle, pluggable password hashing, opaque token issuance and
// rotation, and permission grants.
package user

import (
	"time"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/perm"
)

// User is an account: identity, credentials, lifecycle, and grants.
type User struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"passwordHash"`
	HasherName   string        `json:"hasherName"`
	Active       bool          `json:"active"`
	Grants       []perm.Action `json:"grants"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Token is an opaque, user-bound session credential (§4.6).
type Token struct {
	Value     string    `json:"value"`
	UserID    string    `json:"userId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// rotateThreshold and tokenLifetime implement §4.6's token rotation policy:
// each token is valid for a week from issuance; tokens with less than a day
// left are rotated on next issuance, otherwise the existing token is reused.
const (
	rotateThreshold = 24 * time.Hour
	tokenLifetime   = 7 * 24 * time.Hour
)
