package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personakit/personakit/classify"
	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/internal/testutil"
	"github.com/personakit/personakit/memory"
	"github.com/personakit/personakit/model"
)

func testClassifier() *classify.Engine {
	return classify.NewEngine(func(o *classify.Options) {
		o.Loader = classify.StaticLoader{
			"helper": classify.VariantCatalog{
				"default":   "You are helper in session {session_id}.",
				"technical": "You are a precise engineering assistant.",
			},
		}
	})
}

func TestProcessor_SuccessfulTurn(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("hello there", "Hi! How can I help?")

	factory := memory.NewFactory()
	p := NewProcessor(llm, func(o *Options) {
		o.Classifier = testClassifier()
		o.Memory = factory
	})

	outcome, err := p.Process(context.Background(), Request{
		AgentName: "helper",
		SessionID: "sess-1",
		UserID:    "user-1",
		Message:   "hello there",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.TurnID)
	assert.Equal(t, core.RoleAssistant, outcome.Reply.Role)
	assert.Equal(t, "Hi! How can I help?", outcome.Reply.Content)
	assert.Empty(t, outcome.GenerationError)
	assert.True(t, outcome.Classification.Success)

	// Both sides of the exchange are persisted in order.
	msgs := factory.Conversational("helper", "sess-1").Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello there", msgs[0].Content)
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)
}

func TestProcessor_HistoryAccumulates(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	factory := memory.NewFactory()
	p := NewProcessor(llm, func(o *Options) {
		o.Classifier = testClassifier()
		o.Memory = factory
	})

	for i := 0; i < 3; i++ {
		_, err := p.Process(context.Background(), Request{
			AgentName: "helper",
			SessionID: "sess-1",
			Message:   fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}
	assert.Len(t, factory.Conversational("helper", "sess-1").Messages(), 6)
}

func TestProcessor_GenerationFailureSubstitutesApology(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.FailWith(errors.New("upstream unavailable"))

	factory := memory.NewFactory()
	p := NewProcessor(llm, func(o *Options) {
		o.Classifier = testClassifier()
		o.Memory = factory
	})

	outcome, err := p.Process(context.Background(), Request{
		AgentName: "helper",
		SessionID: "sess-1",
		Message:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "upstream unavailable", outcome.GenerationError)
	assert.Contains(t, outcome.Reply.Content, "upstream unavailable")
	assert.Equal(t, core.RoleAssistant, outcome.Reply.Role)

	// Exactly one assistant message is persisted alongside the user message.
	msgs := factory.Conversational("helper", "sess-1").Messages()
	require.Len(t, msgs, 2)
	assistants := 0
	for _, m := range msgs {
		if m.Role == core.RoleAssistant {
			assistants++
		}
	}
	assert.Equal(t, 1, assistants)
}

func TestProcessor_ComposeSubstitutesAndAppends(t *testing.T) {
	llm := &recordingModel{}
	p := NewProcessor(llm, func(o *Options) {
		o.Classifier = testClassifier()
		o.EnvironmentContext = "Environment: test harness."
	})

	_, err := p.Process(context.Background(), Request{
		AgentName:          "helper",
		SessionID:          "sess-42",
		Message:            "hello",
		CustomInstructions: "Answer in one sentence.",
	})
	require.NoError(t, err)

	assert.Contains(t, llm.lastRequest.Instructions, "session sess-42")
	assert.NotContains(t, llm.lastRequest.Instructions, "{session_id}")
	assert.Contains(t, llm.lastRequest.Instructions, "Environment: test harness.")
	assert.Contains(t, llm.lastRequest.Instructions, "Answer in one sentence.")
}

func TestProcessor_HistoryWindowBoundsGeneration(t *testing.T) {
	llm := &recordingModel{}
	factory := memory.NewFactory()
	p := NewProcessor(llm, func(o *Options) {
		o.Classifier = testClassifier()
		o.Memory = factory
		o.HistoryWindow = 3
	})

	conv := factory.Conversational("helper", "sess-1")
	call := core.CallContext{SessionID: "sess-1", AgentName: "helper"}
	seed := testutil.NewConversationBuilder().
		User("one").Assistant("two").User("three").Assistant("four").
		Build()
	for i, msg := range seed {
		require.NoError(t, conv.Store(context.Background(), fmt.Sprintf("seed-%d", i), msg, call))
	}

	_, err := p.Process(context.Background(), Request{
		AgentName: "helper",
		SessionID: "sess-1",
		Message:   "five",
	})
	require.NoError(t, err)

	require.Len(t, llm.lastRequest.Messages, 3)
	assert.Equal(t, "three", llm.lastRequest.Messages[0].Content)
	assert.Equal(t, "five", llm.lastRequest.Messages[2].Content)
}

func TestProcessor_ClassifierPanicFabricatesFallback(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	classifier := classify.NewEngine(func(o *classify.Options) {
		o.Loader = panickingLoader{}
	})
	p := NewProcessor(llm, func(o *Options) {
		o.Classifier = classifier
	})

	outcome, err := p.Process(context.Background(), Request{
		AgentName: "helper",
		SessionID: "sess-1",
		Message:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, classify.DefaultVariant, outcome.Classification.SelectedVariant)
	assert.True(t, outcome.Classification.FallbackUsed)
	assert.Equal(t, core.RoleAssistant, outcome.Reply.Role)
	assert.NotEmpty(t, outcome.Reply.Content)

	// The loader keeps failing on every call; subsequent turns must still
	// complete instead of escaping through template resolution.
	outcome, err = p.Process(context.Background(), Request{
		AgentName: "helper",
		SessionID: "sess-1",
		Message:   "hello again",
	})
	require.NoError(t, err)
	assert.Equal(t, classify.DefaultVariant, outcome.Classification.SelectedVariant)
}

func TestProcessor_ConcurrentTurnsSameSession(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	factory := memory.NewFactory()
	p := NewProcessor(llm, func(o *Options) {
		o.Classifier = testClassifier()
		o.Memory = factory
	})

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Process(context.Background(), Request{
				AgentName: "helper",
				SessionID: "sess-1",
				Message:   fmt.Sprintf("concurrent %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Serialization guarantees no lost updates: every turn appended both
	// sides of its exchange.
	assert.Len(t, factory.Conversational("helper", "sess-1").Messages(), 2*turns)
}

func TestProcessor_RequestValidation(t *testing.T) {
	p := NewProcessor(model.NewMockModel("mock", "mock"))

	_, err := p.Process(context.Background(), Request{SessionID: "s", Message: "m"})
	assert.Error(t, err)
	_, err = p.Process(context.Background(), Request{AgentName: "a", Message: "m"})
	assert.Error(t, err)
	_, err = p.Process(context.Background(), Request{AgentName: "a", SessionID: "s"})
	assert.Error(t, err)
}

type recordingModel struct {
	mu          sync.Mutex
	lastRequest model.Request
}

func (m *recordingModel) Generate(_ context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.lastRequest = req
	m.mu.Unlock()
	return &model.Response{Content: "ok", FinishReason: "stop"}, nil
}

func (m *recordingModel) Info() model.Info {
	return model.Info{Name: "recording", Provider: "test"}
}

type panickingLoader struct{}

func (panickingLoader) LoadCatalog(context.Context, string) (classify.VariantCatalog, error) {
	panic("catalog backend exploded")
}

var _ model.Model = (*recordingModel)(nil)
