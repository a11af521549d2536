// Package personakit provides a high-level façade over the turn pipeline and
// its supporting services (scoped state, tiered memory, embeddings,
// classification & logging) enabling rapid construction of persona-routed
// conversational systems. Most applications interact with this package by:
//  1. Creating a Kit via New() around a generation model (optionally loading
//     a YAML catalog/settings file)
//  2. Calling Initialize() once to warm the embedding service
//  3. Submitting turns via ProcessTurn()
//
// The façade delegates sequencing to turn.Processor while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable state backend
// and a structured logger.
package personakit

import (
	"context"
	"fmt"
	"time"

	"github.com/personakit/personakit/classify"
	"github.com/personakit/personakit/config"
	"github.com/personakit/personakit/embedding"
	"github.com/personakit/personakit/logging"
	"github.com/personakit/personakit/memory"
	"github.com/personakit/personakit/model"
	"github.com/personakit/personakit/state"
	"github.com/personakit/personakit/turn"
)

// Options configures the Kit instance.
type Options struct {
	// Config supplies agent catalogs plus tuning settings. Nil falls back to
	// built-in defaults with catalog-less classification.
	Config *config.Config

	// CatalogLoader overrides the catalog source (e.g. config.FileLoader for
	// reload-on-invalidate). Takes precedence over Config's catalogs.
	CatalogLoader classify.CatalogLoader

	// StateBackend persists scoped state durably. Nil keeps state in-process.
	StateBackend state.Backend

	// Embedder overrides the vector function behind the embedding service.
	Embedder embedding.Embedder

	// GenerateTimeout caps each generation call (0 = caller's context only).
	GenerateTimeout time.Duration

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Kit is the high-level façade aggregating the turn processor and services.
type Kit struct {
	store      *state.Store
	embeddings *embedding.Service
	memory     *memory.Factory
	classifier *classify.Engine
	processor  *turn.Processor
}

// New creates a Kit around the generation model with optional overrides. Any
// unset service defaults to an in-memory implementation.
func New(llm model.Model, optFns ...func(o *Options)) *Kit {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	settings := config.Settings{}
	if opts.Config != nil {
		settings = opts.Config.Settings
	}

	store := state.New(func(o *state.Options) {
		o.Backend = opts.StateBackend
		o.Logger = opts.Logger
	})

	embeddings := embedding.NewService(func(o *embedding.Options) {
		if opts.Embedder != nil {
			o.Embedder = opts.Embedder
		}
		o.CacheCapacity = settings.EmbeddingCacheSize
		o.Logger = opts.Logger
	})

	mem := memory.NewFactory(func(o *memory.Options) {
		o.Store = store
		o.Embeddings = embeddings
		o.ConversationalCapacity = settings.ConversationalCapacity
		o.SemanticThreshold = settings.SimilarityThreshold
		o.CrossSessionWeight = settings.CrossSessionWeight
		o.ActiveWindow = settings.ActiveWindow
		o.Logger = opts.Logger
	})

	classifier := classify.NewEngine(func(o *classify.Options) {
		o.Model = llm
		o.Logger = opts.Logger
		o.ConfidenceThreshold = settings.ConfidenceThreshold
		switch {
		case opts.CatalogLoader != nil:
			o.Loader = opts.CatalogLoader
		case opts.Config != nil:
			o.Loader = opts.Config
		}
		if opts.Config != nil {
			o.Keywords = opts.Config.KeywordTable()
		}
	})

	processor := turn.NewProcessor(llm, func(o *turn.Options) {
		o.Classifier = classifier
		o.Memory = mem
		o.HistoryWindow = settings.HistoryWindow
		o.GenerateTimeout = opts.GenerateTimeout
		o.Logger = opts.Logger
	})

	return &Kit{
		store:      store,
		embeddings: embeddings,
		memory:     mem,
		classifier: classifier,
		processor:  processor,
	}
}

// Initialize warms the embedding service. Idempotent; call once at startup
// before the first semantic write.
func (k *Kit) Initialize(ctx context.Context) error {
	if err := k.embeddings.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize embeddings: %w", err)
	}
	return nil
}

// ProcessTurn runs one conversational turn through the pipeline.
func (k *Kit) ProcessTurn(ctx context.Context, req turn.Request) (*turn.Outcome, error) {
	return k.processor.Process(ctx, req)
}

// Classify exposes variant selection without running a full turn.
func (k *Kit) Classify(ctx context.Context, input, agent string, opts classify.ClassifyOptions) classify.Result {
	return k.classifier.Classify(ctx, input, agent, opts)
}

// ReloadCatalogs drops every cached catalog so subsequent classifications
// reload from the configured source.
func (k *Kit) ReloadCatalogs() {
	k.classifier.InvalidateAll()
}

// State returns the scoped shared-state store.
func (k *Kit) State() *state.Store { return k.store }

// Memory returns the memory factory.
func (k *Kit) Memory() *memory.Factory { return k.memory }

// Embeddings returns the shared embedding service.
func (k *Kit) Embeddings() *embedding.Service { return k.embeddings }

// Classifier returns the classification engine.
func (k *Kit) Classifier() *classify.Engine { return k.classifier }
