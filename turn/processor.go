package turn

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personakit/personakit/classify"
	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/internal/util"
	"github.com/personakit/personakit/logging"
	"github.com/personakit/personakit/memory"
	"github.com/personakit/personakit/model"
)

// DefaultHistoryWindow bounds how many trailing messages accompany the
// composed instructions into generation.
const DefaultHistoryWindow = 10

// DefaultEnvironmentContext is appended to every composed instruction set.
const DefaultEnvironmentContext = "You are operating inside a turn-based conversational runtime. " +
	"Prior conversation context, when present, precedes the current message."

// Options holds dependency + configuration overrides passed to NewProcessor().
type Options struct {
	// Classifier selects the behavior variant per turn. Defaults to an
	// engine without a primary model, i.e. deterministic fallback only.
	Classifier *classify.Engine
	// Memory supplies per-session conversational memory. Defaults to an
	// in-memory factory.
	Memory *memory.Factory
	// HistoryWindow bounds the messages sent to generation (default 10).
	HistoryWindow int
	// EnvironmentContext overrides the fixed suffix appended to composed
	// instructions.
	EnvironmentContext string
	// GenerateTimeout caps the generation call. Zero relies on the caller's
	// context alone.
	GenerateTimeout time.Duration
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Request is one incoming user turn.
type Request struct {
	AgentName string
	SessionID string
	UserID    string
	Message   string
	// DetailedAnalysis forces the classifier's detailed analysis mode.
	DetailedAnalysis bool
	// CustomInstructions are appended after the environment context.
	CustomInstructions string
}

// Outcome is the result of a processed turn. A turn that absorbed a
// generation failure still carries the substituted reply; the failure text
// is retained in GenerationError for observability.
type Outcome struct {
	TurnID          string          `json:"turnId"`
	SessionID       string          `json:"sessionId"`
	Reply           core.Message    `json:"reply"`
	Classification  classify.Result `json:"classification"`
	GenerationError string          `json:"generationError,omitempty"`
	Duration        time.Duration   `json:"duration"`
	CompletedAt     time.Time       `json:"completedAt"`
}

// Processor drives the turn pipeline. Safe for concurrent use; turns on the
// same session are serialized through a per-session lock so each turn reads
// the then-current history before appending.
type Processor struct {
	llm        model.Model
	classifier *classify.Engine
	memory     *memory.Factory
	window     int
	envContext string
	genTimeout time.Duration
	logger     logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProcessor constructs a Processor around the generation capability.
func NewProcessor(llm model.Model, optFns ...func(o *Options)) *Processor {
	opts := Options{
		HistoryWindow:      DefaultHistoryWindow,
		EnvironmentContext: DefaultEnvironmentContext,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.NewEngine()
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewFactory()
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	return &Processor{
		llm:        llm,
		classifier: opts.Classifier,
		memory:     opts.Memory,
		window:     opts.HistoryWindow,
		envContext: opts.EnvironmentContext,
		genTimeout: opts.GenerateTimeout,
		logger:     opts.Logger,
	}
}

// Process runs one turn end to end. It returns an error only for malformed
// requests; pipeline failures are absorbed into the Outcome.
func (p *Processor) Process(ctx context.Context, req Request) (*Outcome, error) {
	if req.AgentName == "" {
		return nil, fmt.Errorf("agent name must not be empty")
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	if req.Message == "" {
		return nil, fmt.Errorf("message must not be empty")
	}

	lock := p.sessionLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	turnID := uuid.NewString()
	call := core.CallContext{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		AgentName: req.AgentName,
	}
	conv := p.memory.Conversational(req.AgentName, req.SessionID)

	// LOAD_HISTORY
	history := conv.Messages()
	userMsg := core.Message{Role: core.RoleUser, Content: req.Message}
	messages := append(history, userMsg)

	// CLASSIFY
	classification, template := p.classifyTurn(ctx, req)

	// COMPOSE
	instructions := p.compose(req, classification, template)

	// GENERATE
	genStart := time.Now()
	reply, genErr := p.generate(ctx, instructions, messages)
	if pl, ok := p.logger.(*logging.PersonaLogger); ok {
		pl.LogModelCall(p.llm.Info().Name, time.Since(genStart), genErr == nil, genErr)
	}
	if genErr != nil {
		p.logger.Warn("generation failed, substituting apology",
			"session", req.SessionID, "turn", turnID, "error", genErr)
		reply = core.Message{
			Role:    core.RoleAssistant,
			Content: fmt.Sprintf("I apologize, but I was unable to generate a response (%s). Please try again.", genErr),
		}
	}

	// PERSIST
	p.persist(ctx, conv, turnID, userMsg, reply, call)

	outcome := &Outcome{
		TurnID:         turnID,
		SessionID:      req.SessionID,
		Reply:          reply,
		Classification: classification,
		Duration:       time.Since(started),
		CompletedAt:    time.Now(),
	}
	if genErr != nil {
		outcome.GenerationError = genErr.Error()
	}
	if pl, ok := p.logger.(*logging.PersonaLogger); ok {
		pl.LogTurn(req.SessionID, outcome.Duration, genErr != nil, genErr)
	} else {
		p.logger.Info("turn completed",
			"session", req.SessionID, "turn", turnID,
			"variant", classification.SelectedVariant, "duration", outcome.Duration)
	}
	return outcome, nil
}

// classifyTurn invokes the classifier and resolves the selected variant's
// template, absorbing any engine-level failure into a fabricated
// default-variant result with an empty template. Template resolution happens
// here rather than in COMPOSE so that a classifier that fails on every call
// (e.g. a broken catalog loader) cannot escape the recovery through the
// second engine entry. Classification never blocks a turn.
func (p *Processor) classifyTurn(ctx context.Context, req Request) (result classify.Result, template string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("classifier panicked, using default variant", "session", req.SessionID, "panic", r)
			template = ""
			result = classify.Result{
				Success:         true,
				SelectedVariant: classify.DefaultVariant,
				FullVariantPath: req.AgentName + "/" + classify.DefaultVariant,
				Confidence:      0.3,
				Reasoning:       fmt.Sprintf("classification unavailable: %v", r),
				FallbackUsed:    true,
				LowConfidence:   true,
				Timestamp:       time.Now(),
			}
		}
	}()
	result = p.classifier.Classify(ctx, req.Message, req.AgentName,
		classify.ClassifyOptions{Detailed: req.DetailedAnalysis})
	template = p.classifier.Template(ctx, req.AgentName, result.SelectedVariant)
	return result, template
}

// compose substitutes the template's placeholders and appends the
// environment context plus any caller-supplied instructions. An empty
// template falls back to a synthesized default instruction.
func (p *Processor) compose(req Request, classification classify.Result, template string) string {
	if template == "" {
		template = "You are " + req.AgentName + ", a helpful assistant."
	}

	instructions := util.Substitute(template, map[string]string{
		"agent_name":    req.AgentName,
		"session_id":    req.SessionID,
		"user_id":       req.UserID,
		"timestamp":     time.Now().Format(time.RFC3339),
		"variant":       classification.SelectedVariant,
		"confidence":    strconv.FormatFloat(classification.Confidence, 'f', 2, 64),
		"analysis_mode": string(classification.AnalysisMode),
	})

	if p.envContext != "" {
		instructions += "\n\n" + p.envContext
	}
	if req.CustomInstructions != "" {
		instructions += "\n\n" + req.CustomInstructions
	}
	return instructions
}

// generate calls the model with the composed instructions and the bounded
// trailing window of the conversation.
func (p *Processor) generate(ctx context.Context, instructions string, messages []core.Message) (core.Message, error) {
	if p.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.genTimeout)
		defer cancel()
	}
	resp, err := p.llm.Generate(ctx, model.Request{
		Instructions: instructions,
		Messages:     core.TailWindow(messages, p.window),
	})
	if err != nil {
		return core.Message{}, err
	}
	return core.Message{Role: core.RoleAssistant, Content: resp.Content}, nil
}

// persist writes the user message and the (real or substituted) assistant
// reply into conversational memory. A persistence failure is logged, never
// surfaced: the store itself retains writes locally when degraded.
func (p *Processor) persist(ctx context.Context, conv *memory.Conversational, turnID string, user, reply core.Message, call core.CallContext) {
	if err := conv.Store(ctx, turnID+":user", user, call); err != nil {
		p.logger.Error("failed to persist user message", "turn", turnID, "error", err)
	}
	if err := conv.Store(ctx, turnID+":assistant", reply, call); err != nil {
		p.logger.Error("failed to persist assistant message", "turn", turnID, "error", err)
	}
}

// sessionLock returns the mutex serializing turns for sessionID, creating it
// on first use. Locks are retained for the process lifetime; the registry is
// bounded by the number of distinct sessions seen.
func (p *Processor) sessionLock(sessionID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[sessionID]
	if !ok {
		if p.locks == nil {
			p.locks = make(map[string]*sync.Mutex)
		}
		lock = &sync.Mutex{}
		p.locks[sessionID] = lock
	}
	return lock
}
