package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/personakit/personakit/core"
)

// ChromemIndex is a VectorIndex backed by chromem-go, a pure Go embedded
// vector database using cosine similarity. One collection holds the records
// of one agent/session memory.
type ChromemIndex struct {
	lock       sync.Mutex
	collection *chromem.Collection
	count      int
}

// NewChromemIndex creates a collection named for the agent/session pair on
// the given database. Callers typically share one chromem.DB per process.
func NewChromemIndex(db *chromem.DB, agentID, session string) (*ChromemIndex, error) {
	name := collectionName(agentID, session)
	collection, err := db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return &ChromemIndex{collection: collection}, nil
}

// Add implements VectorIndex. The record's vector must be set.
func (x *ChromemIndex) Add(ctx context.Context, record core.MemoryRecord) error {
	if len(record.Vector) == 0 {
		return fmt.Errorf("record %q has no vector", record.Key)
	}
	doc := chromem.Document{
		ID:        documentID(record),
		Content:   serializeData(record.Data),
		Embedding: record.Vector,
		Metadata: map[string]string{
			"key":       record.Key,
			"agent_id":  record.Metadata.AgentID,
			"session":   record.Metadata.SessionID,
			"user_id":   record.Metadata.UserID,
			"timestamp": record.Metadata.Timestamp.Format(time.RFC3339Nano),
		},
	}
	if err := x.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	x.lock.Lock()
	x.count++
	x.lock.Unlock()
	return nil
}

// Query implements VectorIndex, returning hits sorted by similarity. The
// limit is clamped to the number of stored documents since chromem rejects
// oversized result requests.
func (x *ChromemIndex) Query(ctx context.Context, vector []float32, limit int) ([]core.SearchResult, error) {
	x.lock.Lock()
	count := x.count
	x.lock.Unlock()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}
	if limit <= 0 {
		limit = 1
	}

	hits, err := x.collection.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]core.SearchResult, 0, len(hits))
	for _, hit := range hits {
		ts, _ := time.Parse(time.RFC3339Nano, hit.Metadata["timestamp"])
		results = append(results, core.SearchResult{
			Record: core.MemoryRecord{
				Key:  hit.Metadata["key"],
				Data: hit.Content,
				Metadata: core.RecordMetadata{
					Timestamp: ts,
					AgentID:   hit.Metadata["agent_id"],
					SessionID: hit.Metadata["session"],
					UserID:    hit.Metadata["user_id"],
				},
				Vector: hit.Embedding,
			},
			Score: float64(hit.Similarity),
		})
	}
	return results, nil
}

// documentID disambiguates successive writes to the same key so the index
// keeps the latest version queryable without relying on replace semantics.
func documentID(record core.MemoryRecord) string {
	return fmt.Sprintf("%s@%d", record.Key, record.Metadata.Timestamp.UnixNano())
}

func collectionName(agentID, session string) string {
	name := fmt.Sprintf("%s_%s", agentID, session)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}
