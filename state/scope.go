package state

import (
	"fmt"

	"github.com/personakit/personakit/core"
)

// Scope is the namespace dimension under which a state key is qualified.
type Scope string

// The four supported scopes.
const (
	ScopeGlobal  Scope = "global"
	ScopeUser    Scope = "user"
	ScopeSession Scope = "session"
	ScopeAgent   Scope = "agent"
)

// Sentinel identifiers substituted when the relevant caller identity is
// absent. They are literal namespace segments, not errors: anonymous traffic
// shares one bucket per scope.
const (
	AnonymousUser  = "anonymous"
	UnknownSession = "unknown"
	UnknownAgent   = "unknown"
)

// Valid reports whether s is one of the four supported scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeUser, ScopeSession, ScopeAgent:
		return true
	default:
		return false
	}
}

// scopeIdentifier derives the namespace identifier for a scope from the
// caller context, substituting the sentinel when the identity is absent.
// Global scope carries no identifier.
func scopeIdentifier(scope Scope, call core.CallContext) string {
	switch scope {
	case ScopeUser:
		if call.UserID != "" {
			return call.UserID
		}
		return AnonymousUser
	case ScopeSession:
		if call.SessionID != "" {
			return call.SessionID
		}
		return UnknownSession
	case ScopeAgent:
		if call.AgentName != "" {
			return call.AgentName
		}
		return UnknownAgent
	default:
		return ""
	}
}

// ScopedKey deterministically derives the fully-qualified key
// "scope:identifier:key" (global omits the identifier segment) from the
// caller context. Uniqueness is per fully-qualified key.
func ScopedKey(scope Scope, baseKey string, call core.CallContext) (string, error) {
	return ScopedKeyFor(scope, scopeIdentifier(scope, call), baseKey)
}

// ScopedKeyFor derives the fully-qualified key for an explicit scope
// identifier. Cross-identity access (one session addressing another's entry)
// goes through this form; the entry's permission lists decide admission.
func ScopedKeyFor(scope Scope, identifier, baseKey string) (string, error) {
	if !scope.Valid() {
		return "", &ValidationError{Field: "scope", Message: fmt.Sprintf("unknown scope %q", scope)}
	}
	if baseKey == "" {
		return "", &ValidationError{Field: "key", Message: "key must not be empty"}
	}
	if scope == ScopeGlobal {
		return fmt.Sprintf("%s:%s", scope, baseKey), nil
	}
	return fmt.Sprintf("%s:%s:%s", scope, identifier, baseKey), nil
}
