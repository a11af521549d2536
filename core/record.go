package core

import "time"

// RecordMetadata identifies the origin of a memory record. SessionID and
// UserID are back-references enabling cross-session lookups without granting
// the reader ownership of the record.
type RecordMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agentId"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
}

// MemoryRecord is the persisted unit of memory. Conversational records leave
// Vector nil; semantic records carry the embedding computed at write time.
// A record is owned exclusively by the agent/session pair that created it.
type MemoryRecord struct {
	Key      string         `json:"key"`
	Data     any            `json:"data"`
	Metadata RecordMetadata `json:"metadata"`
	Vector   []float32      `json:"vector,omitempty"`
}

// SearchResult is a scored retrieval hit. SourceSessionID is set when the
// record was merged in from another session of the same user and carries the
// session it originated from.
type SearchResult struct {
	Record          MemoryRecord `json:"record"`
	Score           float64      `json:"score"`
	SourceSessionID string       `json:"sourceSessionId,omitempty"`
}
