package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/embedding"
	"github.com/personakit/personakit/logging"
)

// Semantic search defaults.
const (
	DefaultSemanticThreshold  = 0.7
	DefaultSemanticMaxResults = 5
)

// VectorIndex is the similarity-search backend boundary for semantic memory.
// Query returns hits sorted by similarity descending with Score carrying the
// similarity; it may return records that were since deleted, the memory
// filters those out.
type VectorIndex interface {
	Add(ctx context.Context, record core.MemoryRecord) error
	Query(ctx context.Context, vector []float32, limit int) ([]core.SearchResult, error)
}

// Semantic is a vector-similarity memory for one agent/session pair. Every
// stored item is embedded at write time through the shared embedding service;
// search embeds the query and ranks stored vectors by cosine similarity.
type Semantic struct {
	mu         sync.RWMutex
	agentID    string
	session    string
	embeddings *embedding.Service
	index      VectorIndex
	threshold  float64
	logger     logging.Logger

	records map[string]core.MemoryRecord // live bookkeeping, key -> record
	deleted int                          // count of index entries no longer live
}

func newSemantic(agentID, session string, embeddings *embedding.Service, index VectorIndex, threshold float64, logger logging.Logger) *Semantic {
	if threshold <= 0 {
		threshold = DefaultSemanticThreshold
	}
	return &Semantic{
		agentID:    agentID,
		session:    session,
		embeddings: embeddings,
		index:      index,
		threshold:  threshold,
		logger:     logger,
		records:    make(map[string]core.MemoryRecord),
	}
}

// AgentID returns the owning agent.
func (m *Semantic) AgentID() string { return m.agentID }

// SessionID returns the owning session.
func (m *Semantic) SessionID() string { return m.session }

// Store embeds text and adds it to the vector index under key. An empty key
// gets a generated identifier which is returned either way.
func (m *Semantic) Store(ctx context.Context, key string, text string, call core.CallContext) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	vector, err := m.embeddings.GenerateEmbedding(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed memory item: %w", err)
	}

	record := core.MemoryRecord{
		Key:  key,
		Data: text,
		Metadata: core.RecordMetadata{
			Timestamp: time.Now(),
			AgentID:   m.agentID,
			SessionID: m.session,
			UserID:    call.UserID,
		},
		Vector: vector,
	}

	if err := m.index.Add(ctx, record); err != nil {
		return "", fmt.Errorf("index memory item: %w", err)
	}

	m.mu.Lock()
	if _, existed := m.records[key]; existed {
		m.deleted++ // the superseded index entry is no longer live
	}
	m.records[key] = record
	m.mu.Unlock()
	return key, nil
}

// Search embeds the query and returns stored items at or above the similarity
// threshold, sorted descending, capped at MaxResults (default 5).
func (m *Semantic) Search(ctx context.Context, query string, opts SearchOptions) ([]core.SearchResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultSemanticMaxResults
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = m.threshold
	}

	m.mu.RLock()
	live := len(m.records)
	stale := m.deleted
	m.mu.RUnlock()
	if live == 0 {
		return nil, nil
	}

	// Overfetch to cover index entries that are deleted or superseded; the
	// index clamps the limit to what it actually holds.
	overfetch := maxResults + stale

	vector, err := m.embeddings.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := m.index.Query(ctx, vector, overfetch)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []core.SearchResult
	for _, hit := range hits {
		current, ok := m.records[hit.Record.Key]
		if !ok || !current.Metadata.Timestamp.Equal(hit.Record.Metadata.Timestamp) {
			continue // deleted or superseded
		}
		if hit.Score < threshold {
			continue
		}
		hit.Record = current
		results = append(results, hit)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// Delete removes the record with key from the live set. The underlying index
// entry is filtered out of future queries rather than physically removed.
func (m *Semantic) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return false
	}
	delete(m.records, key)
	m.deleted++
	return true
}

// List returns all live records, newest first.
func (m *Semantic) List() []core.MemoryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.MemoryRecord, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.Timestamp.After(out[j].Metadata.Timestamp) })
	return out
}

// Clear drops every live record.
func (m *Semantic) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted += len(m.records)
	m.records = make(map[string]core.MemoryRecord)
}

// Len returns the number of live records.
func (m *Semantic) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
