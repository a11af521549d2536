package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/personakit/personakit/classify"
)

// Settings carries the numeric tuning knobs. Zero values are replaced with
// defaults at load time.
type Settings struct {
	// HistoryWindow bounds the messages sent to generation per turn.
	HistoryWindow int `yaml:"historyWindow"`
	// ConversationalCapacity bounds per-session conversational memory.
	ConversationalCapacity int `yaml:"conversationalCapacity"`
	// SimilarityThreshold filters semantic search results.
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	// ConfidenceThreshold marks low-confidence classifications.
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	// CrossSessionWeight down-weights matches from other sessions.
	CrossSessionWeight float64 `yaml:"crossSessionWeight"`
	// ActiveWindow bounds how recently a session must have been touched to
	// contribute cross-session context.
	ActiveWindow time.Duration `yaml:"activeWindow"`
	// EmbeddingCacheSize bounds the embedding service cache.
	EmbeddingCacheSize int `yaml:"embeddingCacheSize"`
}

// AgentConfig is one agent's catalog: variant name to instruction template,
// plus optional fallback keywords per variant.
type AgentConfig struct {
	Variants map[string]string   `yaml:"variants"`
	Keywords map[string][]string `yaml:"keywords,omitempty"`
}

// Config is the root document.
type Config struct {
	Agents   map[string]AgentConfig `yaml:"agents"`
	Settings Settings               `yaml:"settings"`
}

// Default settings applied where the document is silent.
const (
	DefaultHistoryWindow          = 10
	DefaultConversationalCapacity = 1000
	DefaultSimilarityThreshold    = 0.7
	DefaultConfidenceThreshold    = 0.5
	DefaultCrossSessionWeight     = 0.8
	DefaultActiveWindow           = 30 * time.Minute
	DefaultEmbeddingCacheSize     = 1000
)

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.HistoryWindow <= 0 {
		c.Settings.HistoryWindow = DefaultHistoryWindow
	}
	if c.Settings.ConversationalCapacity <= 0 {
		c.Settings.ConversationalCapacity = DefaultConversationalCapacity
	}
	if c.Settings.SimilarityThreshold <= 0 {
		c.Settings.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.Settings.ConfidenceThreshold <= 0 {
		c.Settings.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.Settings.CrossSessionWeight <= 0 {
		c.Settings.CrossSessionWeight = DefaultCrossSessionWeight
	}
	if c.Settings.ActiveWindow <= 0 {
		c.Settings.ActiveWindow = DefaultActiveWindow
	}
	if c.Settings.EmbeddingCacheSize <= 0 {
		c.Settings.EmbeddingCacheSize = DefaultEmbeddingCacheSize
	}
}

// validate enforces catalog well-formedness: every declared agent needs a
// non-blank default variant.
func (c *Config) validate() error {
	for name, agent := range c.Agents {
		template, ok := agent.Variants[classify.DefaultVariant]
		if !ok || strings.TrimSpace(template) == "" {
			return fmt.Errorf("agent %q: catalog must declare a non-blank %q variant", name, classify.DefaultVariant)
		}
		for variant := range agent.Keywords {
			if _, ok := agent.Variants[variant]; !ok {
				return fmt.Errorf("agent %q: keywords reference unknown variant %q", name, variant)
			}
		}
	}
	return nil
}

// LoadCatalog implements classify.CatalogLoader. Unknown agents return a nil
// catalog, which the engine degrades to the default variant.
func (c *Config) LoadCatalog(_ context.Context, agent string) (classify.VariantCatalog, error) {
	ac, ok := c.Agents[agent]
	if !ok {
		return nil, nil
	}
	catalog := make(classify.VariantCatalog, len(ac.Variants))
	for name, template := range ac.Variants {
		catalog[name] = template
	}
	return catalog, nil
}

// KeywordTable merges every agent's fallback keywords into one table for the
// classification engine's deterministic path. Agent-specific entries win on
// collision with later agents in map order; catalogs that share variant
// names should share keywords.
func (c *Config) KeywordTable() classify.KeywordTable {
	table := classify.DefaultKeywordTable()
	for _, agent := range c.Agents {
		for variant, keywords := range agent.Keywords {
			table[variant] = keywords
		}
	}
	return table
}

// FileLoader is a classify.CatalogLoader that re-reads its file on every
// load. Paired with the engine's catalog cache this gives reload-on-demand:
// invalidate the agent and the next classification picks up the file's
// current content.
type FileLoader struct {
	Path string
}

// LoadCatalog implements classify.CatalogLoader.
func (l FileLoader) LoadCatalog(ctx context.Context, agent string) (classify.VariantCatalog, error) {
	cfg, err := Load(l.Path)
	if err != nil {
		return nil, err
	}
	return cfg.LoadCatalog(ctx, agent)
}

var (
	_ classify.CatalogLoader = (*Config)(nil)
	_ classify.CatalogLoader = FileLoader{}
)
