package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/logging"
	"github.com/personakit/personakit/state"
)

// DefaultConversationalCapacity bounds a conversational memory when no
// explicit capacity is configured.
const DefaultConversationalCapacity = 1000

// DefaultSearchResults caps conversational search output.
const DefaultSearchResults = 10

// SearchOptions tunes a memory search. Zero values select the defaults of
// the memory kind being searched.
type SearchOptions struct {
	// MaxResults caps returned hits (conversational default 10, semantic 5).
	MaxResults int
	// Threshold is the minimum semantic similarity; ignored by
	// conversational search.
	Threshold float64
	// CrossSession additionally merges hits from the user's other active
	// sessions, down-weighted relative to same-session matches.
	CrossSession bool
	// UserID identifies the user whose other sessions are consulted when
	// CrossSession is set.
	UserID string
}

// peerSearcher is the factory-side hook conversational search uses to pull
// matches from the user's other active sessions.
type peerSearcher interface {
	searchPeers(ctx context.Context, agentID, excludeSession, userID, query string, limit int) []core.SearchResult
}

// Conversational is a bounded, ordered conversational memory for one
// agent/session pair. Writes land in the local ordered cache and, when a
// session id is present, write through to the durable state store under
// "memory:{agentID}:{key}". Reads consult the local cache first and fall back
// to the store, repopulating the cache on hit. Safe for concurrent use.
type Conversational struct {
	mu       sync.RWMutex
	agentID  string
	session  string
	capacity int
	order    []string
	records  map[string]core.MemoryRecord

	store      *state.Store
	peers      peerSearcher
	crossWt    float64
	logger     logging.Logger
	lastActive time.Time
	lastUser   string
}

func newConversational(agentID, session string, capacity int, store *state.Store, peers peerSearcher, crossWt float64, logger logging.Logger) *Conversational {
	if capacity <= 0 {
		capacity = DefaultConversationalCapacity
	}
	return &Conversational{
		agentID:  agentID,
		session:  session,
		capacity: capacity,
		records:  make(map[string]core.MemoryRecord),
		store:    store,
		peers:    peers,
		crossWt:  crossWt,
		logger:   logger,
	}
}

// AgentID returns the owning agent.
func (m *Conversational) AgentID() string { return m.agentID }

// SessionID returns the owning session ("global" for session-less memory).
func (m *Conversational) SessionID() string { return m.session }

// Store records data under key, evicting the oldest entry beyond capacity.
func (m *Conversational) Store(ctx context.Context, key string, data any, call core.CallContext) error {
	if key == "" {
		return fmt.Errorf("memory key must not be empty")
	}
	record := core.MemoryRecord{
		Key:  key,
		Data: data,
		Metadata: core.RecordMetadata{
			Timestamp: time.Now(),
			AgentID:   m.agentID,
			SessionID: m.session,
			UserID:    call.UserID,
		},
	}

	m.mu.Lock()
	var evicted []string
	if _, exists := m.records[key]; !exists {
		m.order = append(m.order, key)
		evicted = m.evictLocked()
	}
	m.records[key] = record
	m.lastActive = time.Now()
	if call.UserID != "" {
		m.lastUser = call.UserID
	}
	m.mu.Unlock()

	m.persist(ctx, key, record, call)
	m.dropDurable(ctx, evicted, call)
	return nil
}

// evictLocked trims the ordered map to capacity, returning the evicted keys.
// Callers must hold m.mu and afterwards remove the durable copies so an
// evicted entry does not resurface through the fallback read path.
func (m *Conversational) evictLocked() []string {
	var evicted []string
	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.records, oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

// Get returns the record for key. A local miss falls back to the durable
// store and repopulates the cache on hit; a miss everywhere returns ok=false.
func (m *Conversational) Get(ctx context.Context, key string, call core.CallContext) (core.MemoryRecord, bool) {
	m.mu.RLock()
	record, ok := m.records[key]
	m.mu.RUnlock()
	if ok {
		return record, true
	}

	record, ok = m.loadDurable(ctx, key, call)
	if !ok {
		return core.MemoryRecord{}, false
	}
	m.mu.Lock()
	var evicted []string
	if _, exists := m.records[key]; !exists {
		m.order = append(m.order, key)
		evicted = m.evictLocked()
	}
	m.records[key] = record
	m.mu.Unlock()
	m.dropDurable(ctx, evicted, call)
	return record, true
}

// History returns the stored records in insertion order.
func (m *Conversational) History() []core.MemoryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.MemoryRecord, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.records[key])
	}
	return out
}

// Messages returns the stored records whose data is a conversational message,
// in insertion order. It is the LOAD_HISTORY view of this memory.
func (m *Conversational) Messages() []core.Message {
	var msgs []core.Message
	for _, record := range m.History() {
		if msg, ok := record.Data.(core.Message); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Len returns the number of locally held records.
func (m *Conversational) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Search performs case-insensitive substring matching over serialized record
// content. Relevance is occurrence count divided by text length; results are
// sorted descending and capped at MaxResults (default 10). With CrossSession
// and a UserID set, matches from the user's other active sessions are merged
// in, down-weighted by the configured cross-session factor.
func (m *Conversational) Search(ctx context.Context, query string, opts SearchOptions) []core.SearchResult {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}

	results := m.searchLocal(query, maxResults)

	if opts.CrossSession && opts.UserID != "" && m.peers != nil {
		peerHits := m.peers.searchPeers(ctx, m.agentID, m.session, opts.UserID, query, maxResults)
		for _, hit := range peerHits {
			hit.Score *= m.crossWt
			results = append(results, hit)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// searchLocal scores this memory's own records against the query.
func (m *Conversational) searchLocal(query string, limit int) []core.SearchResult {
	needle := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []core.SearchResult
	for _, key := range m.order {
		record := m.records[key]
		text := strings.ToLower(serializeData(record.Data))
		if needle == "" || !strings.Contains(text, needle) {
			continue
		}
		score := float64(strings.Count(text, needle)) / float64(len(text))
		results = append(results, core.SearchResult{Record: record, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// activeFor reports whether this memory belongs to userID and saw activity
// after cutoff. Used by cross-session retrieval.
func (m *Conversational) activeFor(userID string, cutoff time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUser == userID && m.lastActive.After(cutoff)
}

// persist writes through to the durable store when a real session owns this
// memory. Store-level failures degrade to cache-only and are logged there.
func (m *Conversational) persist(ctx context.Context, key string, record core.MemoryRecord, call core.CallContext) {
	if m.store == nil || m.session == "" || m.session == GlobalSession {
		return
	}
	durableKey := fmt.Sprintf("memory:%s:%s", m.agentID, key)
	writeCall := core.CallContext{UserID: call.UserID, SessionID: m.session, AgentName: m.agentID}
	if err := m.store.Set(ctx, state.ScopeSession, durableKey, record, state.SetOptions{}, writeCall); err != nil {
		m.logger.Warn("conversational memory write-through failed", "key", durableKey, "error", err)
	}
}

// dropDurable removes the durable copies of evicted keys so the capacity
// bound holds across the fallback read path too.
func (m *Conversational) dropDurable(ctx context.Context, keys []string, call core.CallContext) {
	if m.store == nil || m.session == "" || m.session == GlobalSession {
		return
	}
	deleteCall := core.CallContext{UserID: call.UserID, SessionID: m.session, AgentName: m.agentID}
	for _, key := range keys {
		durableKey := fmt.Sprintf("memory:%s:%s", m.agentID, key)
		if _, err := m.store.Delete(ctx, state.ScopeSession, durableKey, deleteCall); err != nil {
			m.logger.Warn("conversational memory eviction delete failed", "key", durableKey, "error", err)
		}
	}
}

// loadDurable reads a record back from the durable store.
func (m *Conversational) loadDurable(ctx context.Context, key string, call core.CallContext) (core.MemoryRecord, bool) {
	if m.store == nil || m.session == "" || m.session == GlobalSession {
		return core.MemoryRecord{}, false
	}
	durableKey := fmt.Sprintf("memory:%s:%s", m.agentID, key)
	readCall := core.CallContext{UserID: call.UserID, SessionID: m.session, AgentName: m.agentID}
	value, err := m.store.Get(ctx, state.ScopeSession, durableKey, readCall)
	if err != nil || value == nil {
		return core.MemoryRecord{}, false
	}
	if record, ok := value.(core.MemoryRecord); ok {
		return record, true
	}
	return core.MemoryRecord{}, false
}

// serializeData flattens arbitrary record data into searchable text.
func serializeData(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case core.Message:
		return v.Content
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
