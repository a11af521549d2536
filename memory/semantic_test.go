package memory

import (
	"context"
	"testing"

	"github.com/personakit/personakit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSemantic(t *testing.T) *Semantic {
	t.Helper()
	f := NewFactory()
	mem, err := f.Semantic("helper", "session-1")
	require.NoError(t, err)
	return mem
}

func TestSemantic_StoreAndExactSearch(t *testing.T) {
	mem := newTestSemantic(t)
	ctx := context.Background()
	call := core.CallContext{UserID: "user-7", SessionID: "session-1"}

	key, err := mem.Store(ctx, "", "the capital of France is Paris", call)
	require.NoError(t, err)
	assert.NotEmpty(t, key, "empty key gets a generated identifier")

	// The identical text embeds to the identical vector, similarity 1.0.
	results, err := mem.Search(ctx, "the capital of France is Paris", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-3)
	assert.Equal(t, key, results[0].Record.Key)
}

func TestSemantic_ThresholdFiltersDissimilar(t *testing.T) {
	mem := newTestSemantic(t)
	ctx := context.Background()
	call := core.CallContext{SessionID: "session-1"}

	_, err := mem.Store(ctx, "fact", "the capital of France is Paris", call)
	require.NoError(t, err)

	// Hash embeddings of unrelated strings are effectively orthogonal, so
	// nothing clears the 0.7 default threshold.
	results, err := mem.Search(ctx, "completely different query text", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemantic_EmptyMemorySearches(t *testing.T) {
	mem := newTestSemantic(t)
	results, err := mem.Search(context.Background(), "anything", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemantic_DeleteHidesRecord(t *testing.T) {
	mem := newTestSemantic(t)
	ctx := context.Background()
	call := core.CallContext{SessionID: "session-1"}

	key, err := mem.Store(ctx, "fact", "remember this sentence", call)
	require.NoError(t, err)

	assert.True(t, mem.Delete(key))
	assert.False(t, mem.Delete(key), "second delete reports absence")

	results, err := mem.Search(ctx, "remember this sentence", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results, "deleted records must not surface in search")
	assert.Equal(t, 0, mem.Len())
}

func TestSemantic_OverwriteServesLatest(t *testing.T) {
	mem := newTestSemantic(t)
	ctx := context.Background()
	call := core.CallContext{SessionID: "session-1"}

	_, err := mem.Store(ctx, "pref", "the user prefers tea", call)
	require.NoError(t, err)
	_, err = mem.Store(ctx, "pref", "the user prefers coffee", call)
	require.NoError(t, err)

	results, err := mem.Search(ctx, "the user prefers coffee", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the user prefers coffee", results[0].Record.Data)

	// The superseded version no longer matches at full similarity.
	results, err = mem.Search(ctx, "the user prefers tea", SearchOptions{Threshold: 0.99})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemantic_ListAndClear(t *testing.T) {
	mem := newTestSemantic(t)
	ctx := context.Background()
	call := core.CallContext{SessionID: "session-1"}

	_, err := mem.Store(ctx, "a", "first note", call)
	require.NoError(t, err)
	_, err = mem.Store(ctx, "b", "second note", call)
	require.NoError(t, err)

	assert.Len(t, mem.List(), 2)

	mem.Clear()
	assert.Equal(t, 0, mem.Len())
	assert.Empty(t, mem.List())
}
