package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/personakit/personakit/core"
)

// CrossSessionOptions tunes cross-session context retrieval.
type CrossSessionOptions struct {
	// MaxContextSize bounds the number of returned snippets (default 20).
	MaxContextSize int
	// RelevantKeywords, when set, keeps only records containing at least one
	// keyword (case-insensitive).
	RelevantKeywords []string
}

// ContextSnippet is one record pulled from another session of the same user,
// tagged with its origin and a relevance weight for prompt injection ahead of
// the live conversation.
type ContextSnippet struct {
	SessionID string            `json:"sessionId"`
	Record    core.MemoryRecord `json:"record"`
	Weight    float64           `json:"weight"`
}

// CrossSessionContext collects recent conversational records from the user's
// other sessions of this agent that are still within the active window. An
// absent user, no peer sessions or an expired context all yield an empty
// result, never an error: "no cross-session context" is the normal case.
func (f *Factory) CrossSessionContext(ctx context.Context, agentID, sessionID, userID string, opts CrossSessionOptions) []ContextSnippet {
	if userID == "" || ctx.Err() != nil {
		return nil
	}
	maxSize := opts.MaxContextSize
	if maxSize <= 0 {
		maxSize = 20
	}
	cutoff := time.Now().Add(-f.window)

	f.mu.Lock()
	peers := make([]*Conversational, 0, len(f.conversational))
	for _, m := range f.conversational {
		if m.AgentID() != agentID || m.SessionID() == normalizeSession(sessionID) {
			continue
		}
		peers = append(peers, m)
	}
	f.mu.Unlock()

	var snippets []ContextSnippet
	for _, peer := range peers {
		if !peer.activeFor(userID, cutoff) {
			continue
		}
		for _, record := range peer.History() {
			if !matchesKeywords(record, opts.RelevantKeywords) {
				continue
			}
			snippets = append(snippets, ContextSnippet{
				SessionID: peer.SessionID(),
				Record:    record,
				Weight:    f.crossWt,
			})
		}
	}

	// Newest first, bounded by MaxContextSize.
	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Record.Metadata.Timestamp.After(snippets[j].Record.Metadata.Timestamp)
	})
	if len(snippets) > maxSize {
		snippets = snippets[:maxSize]
	}
	return snippets
}

func matchesKeywords(record core.MemoryRecord, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := strings.ToLower(serializeData(record.Data))
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
