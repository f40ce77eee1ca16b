// Package perm implements the depot's permission model (§4.6, component 3):
// scoped actions, an inclusion ordering over scopes, and authorization
// checks by coverage.
package perm

import (
	"fmt"
	"strings"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// ScopeType orders from narrowest to broadest: Project < Depot < Global.
type ScopeType int

const (
	ScopeProject ScopeType = iota
	ScopeDepot
	ScopeGlobal
)

func (s ScopeType) String() string {
	switch s {
	case ScopeProject:
		return "Project"
	case ScopeDepot:
		return "Depot"
	case ScopeGlobal:
		return "Global"
	default:
		return "Unknown"
	}
}

func (s ScopeType) letter() byte {
	switch s {
	case ScopeProject:
		return 'P'
	case ScopeDepot:
		return 'D'
	case ScopeGlobal:
		return 'G'
	default:
		return '?'
	}
}

// Level orders from weakest to strongest: Read < Write < Delete < Admin.
type Level int

const (
	Read Level = iota
	Write
	Delete
	Admin
)

func (l Level) String() string {
	switch l {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case Delete:
		return "Delete"
	case Admin:
		return "Admin"
	default:
		return "Unknown"
	}
}

func (l Level) letter() byte {
	switch l {
	case Read:
		return 'R'
	case Write:
		return 'W'
	case Delete:
		return 'D'
	case Admin:
		return 'A'
	default:
		return '?'
	}
}

// Action is a scoped permission: a scope type, a scope name ("*" meaning
// every name within the type), and a minimum level.
type Action struct {
	ScopeType ScopeType
	ScopeName string
	Level     Level
}

// Covers reports whether granted action g authorizes requested action r,
// per §4.6:
//
//	G.level >= R.level AND
//	(G.scope_type > R.scope_type OR
//	 (G.scope_type == R.scope_type AND (G.scope_name == "*" OR G.scope_name == R.scope_name)))
func Covers(g, r Action) bool {
	if g.Level < r.Level {
		return false
	}
	if g.ScopeType > r.ScopeType {
		return true
	}
	if g.ScopeType == r.ScopeType {
		return g.ScopeName == "*" || g.ScopeName == r.ScopeName
	}
	return false
}

// Authorized reports whether any granted action covers the requested one.
func Authorized(granted []Action, requested Action) bool {
	for _, g := range granted {
		if Covers(g, requested) {
			return true
		}
	}
	return false
}

// Render formats an Action in its canonical two-letter + scope surface
// form (§6), e.g. "PA:foo", "GA:*".
func Render(a Action) string {
	return fmt.Sprintf("%c%c:%s", a.ScopeType.letter(), a.Level.letter(), a.ScopeName)
}

// Parse parses the canonical "[GgDdPp][RrWwDdAa]:<name>" surface form
// (§6). Parsing rejects any other shape with InvalidParameter.
func Parse(s string) (Action, error) {
	idx := strings.Index(s, ":")
	if idx != 2 {
		return Action{}, errs.InvalidParamf("malformed action %q: expected two-letter prefix then ':'", s)
	}
	prefix := s[:2]
	name := s[idx+1:]
	if name == "" {
		return Action{}, errs.InvalidParamf("malformed action %q: empty scope name", s)
	}

	var scope ScopeType
	switch prefix[0] {
	case 'G', 'g':
		scope = ScopeGlobal
	case 'D', 'd':
		scope = ScopeDepot
	case 'P', 'p':
		scope = ScopeProject
	default:
		return Action{}, errs.InvalidParamf("malformed action %q: unknown scope letter %q", s, prefix[0])
	}

	var level Level
	switch prefix[1] {
	case 'R', 'r':
		level = Read
	case 'W', 'w':
		level = Write
	case 'D', 'd':
		level = Delete
	case 'A', 'a':
		level = Admin
	default:
		return Action{}, errs.InvalidParamf("malformed action %q: unknown level letter %q", s, prefix[1])
	}

	return Action{ScopeType: scope, ScopeName: name, Level: level}, nil
}
