package personakit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personakit/personakit/classify"
	"github.com/personakit/personakit/config"
	"github.com/personakit/personakit/core"
	"github.com/personakit/personakit/model"
	"github.com/personakit/personakit/turn"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
agents:
  helper:
    variants:
      default: "You are a helpful assistant."
      technical: "You are a precise engineering assistant."
settings:
  historyWindow: 4
`))
	require.NoError(t, err)
	return cfg
}

func TestKit_EndToEndTurn(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("Can you debug this function?",
		"SELECTED_VARIANT: technical\nCONFIDENCE: 0.9\nREASONING: debugging request")

	kit := New(llm, func(o *Options) {
		o.Config = testConfig(t)
	})
	require.NoError(t, kit.Initialize(context.Background()))

	outcome, err := kit.ProcessTurn(context.Background(), turn.Request{
		AgentName: "helper",
		SessionID: "sess-1",
		UserID:    "user-1",
		Message:   "Can you debug this function?",
	})
	require.NoError(t, err)
	assert.Equal(t, "technical", outcome.Classification.SelectedVariant)
	assert.Equal(t, core.RoleAssistant, outcome.Reply.Role)

	msgs := kit.Memory().Conversational("helper", "sess-1").Messages()
	assert.Len(t, msgs, 2)
}

func TestKit_ClassifyWithoutTurn(t *testing.T) {
	kit := New(model.NewMockModel("mock", "mock"), func(o *Options) {
		o.Config = testConfig(t)
	})

	result := kit.Classify(context.Background(), "hello", "helper", classify.ClassifyOptions{})
	assert.True(t, result.Success)
	assert.Contains(t, []string{"default", "technical"}, result.SelectedVariant)
}

func TestKit_DefaultsWithoutConfig(t *testing.T) {
	kit := New(model.NewMockModel("mock", "mock"))
	require.NoError(t, kit.Initialize(context.Background()))

	outcome, err := kit.ProcessTurn(context.Background(), turn.Request{
		AgentName: "helper",
		SessionID: "sess-1",
		Message:   "hello",
	})
	require.NoError(t, err)
	assert.NotNil(t, outcome)
	assert.NotNil(t, kit.State())
	assert.NotNil(t, kit.Embeddings())
	assert.NotNil(t, kit.Classifier())
}
