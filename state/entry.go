package state

import (
	"time"

	"github.com/personakit/personakit/core"
)

// Wildcard passes any permission check for the operation it is listed under.
const Wildcard = "*"

// Permissions holds per-operation allow lists. An empty list denies everyone
// except callers presenting the wildcard.
type Permissions struct {
	Read   []string `json:"read"`
	Write  []string `json:"write"`
	Delete []string `json:"delete"`
}

// allows reports whether any of the caller's tokens intersects the allow
// list for one operation.
func allows(list []string, tokens []string) bool {
	for _, allowed := range list {
		if allowed == Wildcard {
			return true
		}
		for _, tok := range tokens {
			if tok == allowed {
				return true
			}
		}
	}
	return false
}

// clone returns a deep copy so stored permissions cannot be mutated through
// the caller's slices.
func (p Permissions) clone() Permissions {
	return Permissions{
		Read:   append([]string(nil), p.Read...),
		Write:  append([]string(nil), p.Write...),
		Delete: append([]string(nil), p.Delete...),
	}
}

// defaultPermissions builds the scope-shaped default permission sets: global
// entries are world-readable but only the writing agent may mutate them;
// user/session/agent entries are private to the owning identifier.
func defaultPermissions(scope Scope, identifier string, call core.CallContext) Permissions {
	switch scope {
	case ScopeGlobal:
		writer := call.AgentName
		if writer == "" {
			writer = UnknownAgent
		}
		return Permissions{
			Read:   []string{Wildcard},
			Write:  []string{writer},
			Delete: []string{writer},
		}
	default:
		return Permissions{
			Read:   []string{identifier},
			Write:  []string{identifier},
			Delete: []string{identifier},
		}
	}
}

// Entry is a single stored state record. CreatedAt anchors TTL expiry; a zero
// TTL means the entry never expires.
type Entry struct {
	Scope       Scope         `json:"scope"`
	Identifier  string        `json:"scopeIdentifier,omitempty"`
	Key         string        `json:"key"`
	Value       any           `json:"value"`
	CreatedAt   time.Time     `json:"createdAt"`
	TTL         time.Duration `json:"ttl,omitempty"`
	Permissions Permissions   `json:"permissions"`
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}
