package classify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/logging"
	"github.com/personakit/personakit/model"
)

// AnalysisMode selects which instruction template drives the primary
// classification call. It affects prompt depth, never the outcome schema.
type AnalysisMode string

// The two analysis modes.
const (
	AnalysisQuick    AnalysisMode = "quick"
	AnalysisDetailed AnalysisMode = "detailed"
)

// DefaultConfidenceThreshold marks results below it for observability. It
// never gates acceptance.
const DefaultConfidenceThreshold = 0.5

// detailedInputLength and detailedSentenceMarks are the structural signals
// that flip analysis into detailed mode.
const (
	detailedInputLength   = 200
	detailedSentenceMarks = 2
)

// complexityTerms flag inputs that warrant detailed analysis regardless of
// length.
var complexityTerms = []string{
	"analyze", "architecture", "compare", "debug", "design", "evaluate",
	"explain", "integrate", "optimize", "performance", "refactor", "security",
}

// Result is the outcome of one classification. SelectedVariant is always a
// member of the target agent's selectable set, or FallbackUsed is true with
// the default variant.
type Result struct {
	Success         bool         `json:"success"`
	SelectedVariant string       `json:"selectedVariant"`
	FullVariantPath string       `json:"fullVariantPath"`
	Confidence      float64      `json:"confidence"`
	Reasoning       string       `json:"reasoning"`
	AnalysisMode    AnalysisMode `json:"analysisMode"`
	FallbackUsed    bool         `json:"fallbackUsed"`
	LowConfidence   bool         `json:"lowConfidence"`
	Timestamp       time.Time    `json:"timestamp"`
}

// ClassifyOptions tunes a single classification call.
type ClassifyOptions struct {
	// Detailed forces detailed analysis mode.
	Detailed bool
}

// Options holds dependency + configuration overrides passed to NewEngine().
type Options struct {
	// Model drives the primary path. Nil disables it, leaving only the
	// deterministic fallback.
	Model model.Model
	// Loader supplies agent catalogs. Defaults to an empty StaticLoader.
	Loader CatalogLoader
	// Keywords drives the fallback path. Defaults to DefaultKeywordTable().
	Keywords KeywordTable
	// ConfidenceThreshold marks low-confidence results (default 0.5).
	ConfidenceThreshold float64
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Engine classifies turns onto behavior variants. Catalogs are cached per
// agent after first load until explicitly invalidated. Safe for concurrent
// use.
type Engine struct {
	mu        sync.Mutex
	catalogs  map[string]VariantCatalog
	llm       model.Model
	loader    CatalogLoader
	keywords  KeywordTable
	threshold float64
	logger    logging.Logger
}

// NewEngine constructs an Engine with optional overrides.
func NewEngine(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Loader:              StaticLoader{},
		Keywords:            DefaultKeywordTable(),
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &Engine{
		catalogs:  make(map[string]VariantCatalog),
		llm:       opts.Model,
		loader:    opts.Loader,
		keywords:  opts.Keywords,
		threshold: opts.ConfidenceThreshold,
		logger:    opts.Logger,
	}
}

// Classify selects a behavior variant for input on the target agent. It
// never returns an error: any primary-path failure degrades to the
// deterministic fallback.
func (e *Engine) Classify(ctx context.Context, input, targetAgent string, opts ClassifyOptions) Result {
	mode := e.analysisMode(input, opts)
	catalog := e.catalog(ctx, targetAgent)
	selectable := catalog.Selectable()

	result, ok := e.primary(ctx, input, selectable, mode)
	if !ok {
		cause := "primary classification unavailable"
		if e.llm != nil {
			cause = "primary classification failed"
		}
		result = fallbackSelect(input, selectable, e.keywords, cause)
	}

	result.AnalysisMode = mode
	result.FullVariantPath = targetAgent + "/" + result.SelectedVariant
	result.Timestamp = time.Now()
	if result.Confidence < e.threshold {
		// Observability marker only; the result stands.
		result.LowConfidence = true
		e.logger.Warn("classification confidence below threshold",
			"agent", targetAgent, "variant", result.SelectedVariant, "confidence", result.Confidence)
	}
	if pl, ok := e.logger.(*logging.PersonaLogger); ok {
		pl.LogClassification(targetAgent, result.SelectedVariant, result.Confidence, result.FallbackUsed)
	}
	return result
}

// Template resolves the instruction template for a classified variant.
func (e *Engine) Template(ctx context.Context, targetAgent, variant string) string {
	return e.catalog(ctx, targetAgent).Template(variant)
}

// Selectable exposes the target agent's current selectable variant set.
func (e *Engine) Selectable(ctx context.Context, targetAgent string) []string {
	return e.catalog(ctx, targetAgent).Selectable()
}

// InvalidateAgent drops one agent's cached catalog so the next call reloads.
func (e *Engine) InvalidateAgent(agent string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.catalogs, agent)
}

// InvalidateAll drops every cached catalog.
func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catalogs = make(map[string]VariantCatalog)
}

// catalog returns the cached catalog for agent, loading it on first use. A
// loader failure caches an empty catalog, which degrades selection to
// ["default"] rather than surfacing the error per turn.
func (e *Engine) catalog(ctx context.Context, agent string) VariantCatalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	if catalog, ok := e.catalogs[agent]; ok {
		return catalog
	}
	catalog, err := e.loader.LoadCatalog(ctx, agent)
	if err != nil {
		e.logger.Warn("catalog load failed, degrading to default variant", "agent", agent, "error", err)
		catalog = VariantCatalog{}
	}
	if catalog == nil {
		catalog = VariantCatalog{}
	}
	e.catalogs[agent] = catalog
	return catalog
}

// analysisMode applies the detailed-mode heuristics: an explicit request, a
// complexity-signaling term, input over 200 characters, or more than two
// sentence-ending marks.
func (e *Engine) analysisMode(input string, opts ClassifyOptions) AnalysisMode {
	if opts.Detailed {
		return AnalysisDetailed
	}
	if len(input) > detailedInputLength {
		return AnalysisDetailed
	}
	lowered := strings.ToLower(input)
	for _, term := range complexityTerms {
		if strings.Contains(lowered, term) {
			return AnalysisDetailed
		}
	}
	marks := strings.Count(input, ".") + strings.Count(input, "!") + strings.Count(input, "?")
	if marks > detailedSentenceMarks {
		return AnalysisDetailed
	}
	return AnalysisQuick
}

// primary runs the model-backed path. ok is false whenever the result should
// not be trusted: no model, a call error, or a selection outside the
// selectable set.
func (e *Engine) primary(ctx context.Context, input string, selectable []string, mode AnalysisMode) (Result, bool) {
	if e.llm == nil {
		return Result{}, false
	}

	resp, err := e.llm.Generate(ctx, model.Request{
		Instructions: classificationInstructions(selectable, mode),
		Messages:     []core.Message{{Role: core.RoleUser, Content: input}},
	})
	if err != nil {
		e.logger.Warn("primary classification call failed", "error", err)
		return Result{}, false
	}

	parsed, confidence, reasoning := parseClassification(resp.Content)
	variant, ok := matchVariant(selectable, parsed)
	if !ok {
		e.logger.Warn("primary classification selected unknown variant", "variant", parsed)
		return Result{}, false
	}
	return Result{
		Success:         true,
		SelectedVariant: variant,
		Confidence:      confidence,
		Reasoning:       reasoning,
	}, true
}

// classificationInstructions builds the structured-label prompt for the
// primary path.
func classificationInstructions(selectable []string, mode AnalysisMode) string {
	var b strings.Builder
	b.WriteString("You route user messages to a behavior variant.\n")
	b.WriteString("Available variants: ")
	b.WriteString(strings.Join(selectable, ", "))
	b.WriteString("\n")
	if mode == AnalysisDetailed {
		b.WriteString("Consider the request's intent, complexity and domain before deciding.\n")
	}
	b.WriteString("Answer with exactly these three lines:\n")
	b.WriteString("SELECTED_VARIANT: <one of the available variants>\n")
	b.WriteString("CONFIDENCE: <0.0-1.0>\n")
	b.WriteString("REASONING: <one sentence>\n")
	return b.String()
}

// parseClassification scans response lines for the three expected labels,
// tolerant of casing and surrounding whitespace. Missing confidence defaults
// to 0.5, missing reasoning to a placeholder.
func parseClassification(response string) (variant string, confidence float64, reasoning string) {
	confidence = 0.5
	reasoning = "no reasoning provided"

	for _, line := range strings.Split(response, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(label)) {
		case "SELECTED_VARIANT":
			variant = value
		case "CONFIDENCE":
			if parsed, err := strconv.ParseFloat(value, 64); err == nil {
				confidence = clamp01(parsed)
			}
		case "REASONING":
			if value != "" {
				reasoning = value
			}
		}
	}
	return variant, confidence, reasoning
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// matchVariant resolves value against the selectable set case-insensitively,
// returning the catalog's canonical spelling.
func matchVariant(set []string, value string) (string, bool) {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return s, true
		}
	}
	return "", false
}

// String helps logging engine state.
func (e *Engine) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("classify.Engine{cached_catalogs: %d, primary: %v}", len(e.catalogs), e.llm != nil)
}
