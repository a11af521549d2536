package testutil

import (
	"time"

	"github.com/personakit/personakit/core"
)

// ConversationBuilder provides a fluent helper for constructing message
// histories in tests. Example:
//
//	msgs := NewConversationBuilder().User("hi").Assistant("hello").Build()
//
// Chain only the parts you need.
type ConversationBuilder struct {
	messages []core.Message
}

// NewConversationBuilder creates an empty builder.
func NewConversationBuilder() *ConversationBuilder { return &ConversationBuilder{} }

// User appends a user message (chainable).
func (b *ConversationBuilder) User(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.Message{Role: core.RoleUser, Content: content})
	return b
}

// Assistant appends an assistant message (chainable).
func (b *ConversationBuilder) Assistant(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.Message{Role: core.RoleAssistant, Content: content})
	return b
}

// System appends a system message (chainable).
func (b *ConversationBuilder) System(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.Message{Role: core.RoleSystem, Content: content})
	return b
}

// Build returns the accumulated messages in order.
func (b *ConversationBuilder) Build() []core.Message { return b.messages }

// Record constructs a MemoryRecord with populated metadata, for tests that
// seed memories directly.
func Record(key string, data any, agentID, sessionID, userID string) core.MemoryRecord {
	return core.MemoryRecord{
		Key:  key,
		Data: data,
		Metadata: core.RecordMetadata{
			Timestamp: time.Now(),
			AgentID:   agentID,
			SessionID: sessionID,
			UserID:    userID,
		},
	}
}
