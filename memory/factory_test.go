package memory

import (
	"context"
	"testing"

	"github.com/personakit/personakit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ peerSearcher = (*Factory)(nil)
var _ VectorIndex = (*ChromemIndex)(nil)

func TestFactory_SameKeyReturnsSameInstance(t *testing.T) {
	f := NewFactory()

	a := f.Conversational("helper", "session-1")
	b := f.Conversational("helper", "session-1")
	assert.Same(t, a, b, "identical key must return the identical instance")

	c := f.Conversational("helper", "session-2")
	assert.NotSame(t, a, c)

	d := f.Conversational("other-agent", "session-1")
	assert.NotSame(t, a, d)

	s1, err := f.Semantic("helper", "session-1")
	require.NoError(t, err)
	s2, err := f.Semantic("helper", "session-1")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}

func TestFactory_EmptySessionIsGlobal(t *testing.T) {
	f := NewFactory()

	a := f.Conversational("helper", "")
	b := f.Conversational("helper", GlobalSession)
	assert.Same(t, a, b)
	assert.Equal(t, GlobalSession, a.SessionID())
}

func TestFactory_CrossSessionContext(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	user := core.CallContext{UserID: "user-7", SessionID: "session-a", AgentName: "helper"}

	other := f.Conversational("helper", "session-a")
	require.NoError(t, other.Store(ctx, "m1", core.Message{Role: core.RoleUser, Content: "my dog is called Rex"}, user))
	require.NoError(t, other.Store(ctx, "m2", core.Message{Role: core.RoleAssistant, Content: "Nice to meet Rex!"}, user))

	snippets := f.CrossSessionContext(ctx, "helper", "session-b", "user-7", CrossSessionOptions{})
	require.Len(t, snippets, 2)
	assert.Equal(t, "session-a", snippets[0].SessionID)
	assert.InDelta(t, DefaultCrossSessionWeight, snippets[0].Weight, 1e-9)

	// Keyword filtering keeps only matching records.
	snippets = f.CrossSessionContext(ctx, "helper", "session-b", "user-7", CrossSessionOptions{RelevantKeywords: []string{"rex"}})
	require.Len(t, snippets, 2)
	snippets = f.CrossSessionContext(ctx, "helper", "session-b", "user-7", CrossSessionOptions{RelevantKeywords: []string{"cat"}})
	assert.Empty(t, snippets)

	// MaxContextSize bounds the result, newest first.
	snippets = f.CrossSessionContext(ctx, "helper", "session-b", "user-7", CrossSessionOptions{MaxContextSize: 1})
	require.Len(t, snippets, 1)
	assert.Equal(t, "m2", snippets[0].Record.Key)
}

func TestFactory_CrossSessionContextEmptyCases(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	// No user, no sessions, unknown agent: all degrade to empty, never error.
	assert.Empty(t, f.CrossSessionContext(ctx, "helper", "session-b", "", CrossSessionOptions{}))
	assert.Empty(t, f.CrossSessionContext(ctx, "helper", "session-b", "user-7", CrossSessionOptions{}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Empty(t, f.CrossSessionContext(cancelled, "helper", "session-b", "user-7", CrossSessionOptions{}))
}

func TestFactory_CrossSessionContextExcludesOwnSessionAndOtherUsers(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	own := f.Conversational("helper", "session-a")
	require.NoError(t, own.Store(ctx, "m1", "own note", core.CallContext{UserID: "user-7", SessionID: "session-a"}))

	foreign := f.Conversational("helper", "session-x")
	require.NoError(t, foreign.Store(ctx, "m1", "foreign note", core.CallContext{UserID: "someone-else", SessionID: "session-x"}))

	snippets := f.CrossSessionContext(ctx, "helper", "session-a", "user-7", CrossSessionOptions{})
	assert.Empty(t, snippets, "own session and other users' sessions must not contribute")
}
