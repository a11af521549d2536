package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/embedding"
	"github.com/personakit/personakit/logging"
	"github.com/personakit/personakit/state"
)

// GlobalSession is the session key for memories not bound to a session.
const GlobalSession = "global"

// Kind names the two memory kinds the factory can produce.
type Kind string

// The supported memory kinds.
const (
	KindConversational Kind = "conversational"
	KindSemantic       Kind = "semantic"
)

// DefaultCrossSessionWeight down-weights matches merged in from a user's
// other sessions relative to same-session matches. It is a tuning default,
// not an invariant.
const DefaultCrossSessionWeight = 0.8

// DefaultActiveWindow bounds how far back a session may have last been
// active to still contribute cross-session context.
const DefaultActiveWindow = 30 * time.Minute

// Options holds dependency + configuration overrides passed to NewFactory().
type Options struct {
	// Store is the scoped state store conversational memory persists
	// through. Nil keeps memories purely in-process.
	Store *state.Store
	// Embeddings is the shared embedding service semantic memory uses.
	// Defaults to a hash-embedder backed service.
	Embeddings *embedding.Service
	// VectorDB hosts one collection per semantic memory. Defaults to a
	// fresh in-memory chromem database.
	VectorDB *chromem.DB
	// ConversationalCapacity bounds each conversational memory (default 1000).
	ConversationalCapacity int
	// SemanticThreshold is the minimum similarity for semantic hits (default 0.7).
	SemanticThreshold float64
	// CrossSessionWeight scales cross-session match scores (default 0.8).
	CrossSessionWeight float64
	// ActiveWindow is how recently a session must have been active to
	// contribute cross-session context (default 30m).
	ActiveWindow time.Duration
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Factory creates and caches memory instances per (agent, session, kind).
// Repeated requests with the identical key return the identical instance.
// It is the composition-root replacement for the original design's implicit
// module-level singletons.
type Factory struct {
	mu             sync.Mutex
	conversational map[string]*Conversational
	semantic       map[string]*Semantic

	store      *state.Store
	embeddings *embedding.Service
	vectorDB   *chromem.DB
	capacity   int
	threshold  float64
	crossWt    float64
	window     time.Duration
	logger     logging.Logger
}

// NewFactory constructs a Factory with optional overrides.
func NewFactory(optFns ...func(o *Options)) *Factory {
	opts := Options{
		ConversationalCapacity: DefaultConversationalCapacity,
		SemanticThreshold:      DefaultSemanticThreshold,
		CrossSessionWeight:     DefaultCrossSessionWeight,
		ActiveWindow:           DefaultActiveWindow,
		Logger:                 logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Embeddings == nil {
		opts.Embeddings = embedding.NewService()
	}
	if opts.VectorDB == nil {
		opts.VectorDB = chromem.NewDB()
	}
	if opts.CrossSessionWeight <= 0 {
		opts.CrossSessionWeight = DefaultCrossSessionWeight
	}
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = DefaultActiveWindow
	}
	return &Factory{
		conversational: make(map[string]*Conversational),
		semantic:       make(map[string]*Semantic),
		store:          opts.Store,
		embeddings:     opts.Embeddings,
		vectorDB:       opts.VectorDB,
		capacity:       opts.ConversationalCapacity,
		threshold:      opts.SemanticThreshold,
		crossWt:        opts.CrossSessionWeight,
		window:         opts.ActiveWindow,
		logger:         opts.Logger,
	}
}

// Conversational returns the conversational memory for (agentID, sessionID),
// creating it on first request. An empty sessionID selects the agent's
// global memory.
func (f *Factory) Conversational(agentID, sessionID string) *Conversational {
	key := instanceKey(agentID, sessionID, KindConversational)

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.conversational[key]; ok {
		return m
	}
	m := newConversational(agentID, normalizeSession(sessionID), f.capacity, f.store, f, f.crossWt, f.logger)
	f.conversational[key] = m
	return m
}

// Semantic returns the semantic memory for (agentID, sessionID), creating it
// and its vector collection on first request.
func (f *Factory) Semantic(agentID, sessionID string) (*Semantic, error) {
	key := instanceKey(agentID, sessionID, KindSemantic)

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.semantic[key]; ok {
		return m, nil
	}
	if err := f.embeddings.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("initialize embeddings: %w", err)
	}
	index, err := NewChromemIndex(f.vectorDB, agentID, normalizeSession(sessionID))
	if err != nil {
		return nil, err
	}
	m := newSemantic(agentID, normalizeSession(sessionID), f.embeddings, index, f.threshold, f.logger)
	f.semantic[key] = m
	return m, nil
}

// searchPeers implements peerSearcher: it scores the query against the
// conversational memories of the user's other active sessions for the same
// agent. Peer scores come back unweighted; the caller applies the
// cross-session factor.
func (f *Factory) searchPeers(_ context.Context, agentID, excludeSession, userID, query string, limit int) []core.SearchResult {
	cutoff := time.Now().Add(-f.window)

	f.mu.Lock()
	peers := make([]*Conversational, 0, len(f.conversational))
	for _, m := range f.conversational {
		if m.AgentID() != agentID || m.SessionID() == normalizeSession(excludeSession) {
			continue
		}
		peers = append(peers, m)
	}
	f.mu.Unlock()

	var results []core.SearchResult
	for _, peer := range peers {
		if !peer.activeFor(userID, cutoff) {
			continue
		}
		for _, hit := range peer.searchLocal(query, limit) {
			hit.SourceSessionID = peer.SessionID()
			results = append(results, hit)
		}
	}
	return results
}

func instanceKey(agentID, sessionID string, kind Kind) string {
	return fmt.Sprintf("%s|%s|%s", agentID, normalizeSession(sessionID), kind)
}

func normalizeSession(sessionID string) string {
	if sessionID == "" {
		return GlobalSession
	}
	return sessionID
}
