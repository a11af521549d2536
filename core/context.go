package core

// CallContext carries the caller identity for one operation. The values are
// supplied by upstream auth/session middleware and are trusted as given; the
// core performs no independent identity verification.
//
// Permissions lists extra permission tokens granted to this call beyond the
// implicit agent/user/session identifiers. The state store intersects them
// with an entry's permission lists during admission checks.
type CallContext struct {
	UserID      string
	SessionID   string
	AgentName   string
	Permissions []string
}

// PermissionTokens returns every token this caller may present during a
// permission check: the explicit grants plus the non-empty identity fields.
func (c CallContext) PermissionTokens() []string {
	tokens := make([]string, 0, len(c.Permissions)+3)
	tokens = append(tokens, c.Permissions...)
	if c.AgentName != "" {
		tokens = append(tokens, c.AgentName)
	}
	if c.UserID != "" {
		tokens = append(tokens, c.UserID)
	}
	if c.SessionID != "" {
		tokens = append(tokens, c.SessionID)
	}
	return tokens
}
