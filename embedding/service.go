package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/personakit/personakit/logging"
)

// Options holds dependency + configuration overrides passed to NewService().
type Options struct {
	// Embedder computes vectors on cache misses. Defaults to a HashEmbedder.
	Embedder Embedder
	// CacheCapacity bounds the embedding cache; the oldest inserted entry is
	// evicted once the capacity is reached. Non-positive selects 1000.
	CacheCapacity int
	// MaxInputLength truncates longer inputs instead of rejecting them.
	// Non-positive selects 8192 characters.
	MaxInputLength int
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// CacheStats reports embedding cache effectiveness.
type CacheStats struct {
	Size    int
	Hits    int
	Misses  int
	Evicted int
}

// Service is the process-wide embedding façade. Initialize must complete
// before the first GenerateEmbedding call; it is idempotent and cheap to call
// defensively. Safe for concurrent use.
type Service struct {
	mu          sync.Mutex
	embedder    Embedder
	capacity    int
	maxInput    int
	logger      logging.Logger
	initialized bool

	cache map[string][]float32
	order []string // insertion order, oldest first
	stats CacheStats
}

// NewService constructs a Service with optional overrides.
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{
		Embedder:       NewHashEmbedder(0),
		CacheCapacity:  1000,
		MaxInputLength: 8192,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = 1000
	}
	if opts.MaxInputLength <= 0 {
		opts.MaxInputLength = 8192
	}
	return &Service{
		embedder: opts.Embedder,
		capacity: opts.CacheCapacity,
		maxInput: opts.MaxInputLength,
		logger:   opts.Logger,
		cache:    make(map[string][]float32),
	}
}

// Initialize prepares the service for use. Calling it again is a no-op.
func (s *Service) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	s.initialized = true
	s.logger.Info("embedding service initialized", "dimensions", s.embedder.Dimensions(), "cache_capacity", s.capacity)
	return nil
}

// Dimensions returns the fixed output dimensionality.
func (s *Service) Dimensions() int { return s.embedder.Dimensions() }

// GenerateEmbedding returns the vector for text, serving repeated inputs from
// the cache. The cached slice itself is returned, so two calls with the same
// content yield the identical slice.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, fmt.Errorf("embedding service not initialized")
	}
	text = s.truncate(text)
	key := contentHash(text)
	if vec, ok := s.cache[key]; ok {
		s.stats.Hits++
		s.mu.Unlock()
		return vec, nil
	}
	s.stats.Misses++
	s.mu.Unlock()

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	s.mu.Lock()
	s.insertLocked(key, vec)
	s.mu.Unlock()
	return vec, nil
}

// GenerateBatchEmbeddings embeds many texts, computing only the cache misses
// and preserving input order in the returned vectors.
func (s *Service) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Stats returns a snapshot of cache effectiveness counters.
func (s *Service) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Size = len(s.cache)
	return stats
}

// insertLocked stores a vector, evicting the oldest inserted entry when the
// capacity is reached. Caller holds s.mu.
func (s *Service) insertLocked(key string, vec []float32) {
	if _, ok := s.cache[key]; ok {
		return // a concurrent call already cached it
	}
	if len(s.cache) >= s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
		s.stats.Evicted++
	}
	s.cache[key] = vec
	s.order = append(s.order, key)
}

func (s *Service) truncate(text string) string {
	if len(text) <= s.maxInput {
		return text
	}
	return text[:s.maxInput]
}

// contentHash keys the cache by input content rather than raw text to keep
// key sizes bounded.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
