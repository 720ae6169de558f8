package models

import (
	"fmt"
	"sort"
	"strings"
)

// ScopeKind distinguishes group scopes from pair scopes.
type ScopeKind int

const (
	ScopeGroup ScopeKind = iota + 1
	ScopePair
)

// Scope is the unit of balance isolation: a group, or an unordered pair of
// users. Pair scopes are normalized so that UserA < UserB.
type Scope struct {
	Kind    ScopeKind
	GroupID string
	UserA   string
	UserB   string
}

// GroupScope returns the scope of a group.
func GroupScope(groupID string) Scope {
	return Scope{Kind: ScopeGroup, GroupID: groupID}
}

// PairScope returns the normalized scope of two users.
func PairScope(a, b string) Scope {
	if b < a {
		a, b = b, a
	}
	return Scope{Kind: ScopePair, UserA: a, UserB: b}
}

// Key returns a stable string form used for storage, cache and lock keys.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeGroup:
		return "group:" + s.GroupID
	case ScopePair:
		return "pair:" + s.UserA + ":" + s.UserB
	default:
		return "invalid"
	}
}

func (s Scope) String() string { return s.Key() }

// Valid reports whether the scope is fully specified.
func (s Scope) Valid() bool {
	switch s.Kind {
	case ScopeGroup:
		return s.GroupID != ""
	case ScopePair:
		return s.UserA != "" && s.UserB != "" && s.UserA < s.UserB
	default:
		return false
	}
}

// PairScopes returns the scope of every unordered pair of the given users,
// ordered by key.
func PairScopes(users []string) []Scope {
	sorted := append([]string(nil), users...)
	sort.Strings(sorted)
	var scopes []Scope
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i] == sorted[j] {
				continue
			}
			scopes = append(scopes, PairScope(sorted[i], sorted[j]))
		}
	}
	return scopes
}

// ParseScopeKey is the inverse of Scope.Key.
func ParseScopeKey(key string) (Scope, error) {
	var s Scope
	if id, ok := strings.CutPrefix(key, "group:"); ok {
		s = GroupScope(id)
	} else if rest, ok := strings.CutPrefix(key, "pair:"); ok {
		if a, b, found := strings.Cut(rest, ":"); found {
			s = Scope{Kind: ScopePair, UserA: a, UserB: b}
		}
	}
	if !s.Valid() {
		return Scope{}, fmt.Errorf("invalid scope key %q", key)
	}
	return s, nil
}
