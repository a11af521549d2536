package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personakit/personakit/model"
)

func testLoader() StaticLoader {
	return StaticLoader{
		"assistant": VariantCatalog{
			"default":   "You are a helpful assistant.",
			"technical": "You are a precise engineering assistant.",
			"creative":  "You are an imaginative writing partner.",
			"blank":     "placeholder",
			"draft":     "   ",
		},
	}
}

func TestCatalog_Selectable(t *testing.T) {
	catalog := testLoader()["assistant"]

	selectable := catalog.Selectable()
	assert.Equal(t, []string{"creative", "default", "technical"}, selectable)

	// Empty catalogs degrade to the default variant alone.
	assert.Equal(t, []string{"default"}, VariantCatalog{}.Selectable())
	assert.Equal(t, []string{"default"}, VariantCatalog{"blank": "x"}.Selectable())
}

func TestCatalog_Template(t *testing.T) {
	catalog := testLoader()["assistant"]

	assert.Equal(t, "You are a precise engineering assistant.", catalog.Template("technical"))
	assert.Equal(t, "You are a helpful assistant.", catalog.Template("nonexistent"))
	assert.Equal(t, "You are a helpful assistant.", catalog.Template("draft"))
}

func TestEngine_PrimaryPath(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("help me fix this bug",
		"SELECTED_VARIANT: technical\nCONFIDENCE: 0.92\nREASONING: debugging request")

	engine := NewEngine(func(o *Options) {
		o.Model = llm
		o.Loader = testLoader()
	})

	result := engine.Classify(context.Background(), "help me fix this bug", "assistant", ClassifyOptions{})
	require.True(t, result.Success)
	assert.Equal(t, "technical", result.SelectedVariant)
	assert.Equal(t, "assistant/technical", result.FullVariantPath)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	assert.Equal(t, "debugging request", result.Reasoning)
	assert.False(t, result.FallbackUsed)
	assert.False(t, result.LowConfidence)
	assert.False(t, result.Timestamp.IsZero())
}

func TestEngine_ParseTolerance(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("casual hello",
		"  selected_variant :  Technical  \nsome extra line\nCONFIDENCE: not-a-number")

	engine := NewEngine(func(o *Options) {
		o.Model = llm
		o.Loader = testLoader()
	})

	result := engine.Classify(context.Background(), "casual hello", "assistant", ClassifyOptions{})
	assert.Equal(t, "technical", result.SelectedVariant)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
	assert.Equal(t, "no reasoning provided", result.Reasoning)
}

func TestEngine_MixedCaseCatalogVariantSelectable(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("fix my build",
		"SELECTED_VARIANT: technical\nCONFIDENCE: 0.9\nREASONING: build issue")

	engine := NewEngine(func(o *Options) {
		o.Model = llm
		o.Loader = StaticLoader{
			"assistant": VariantCatalog{
				"default":   "You are a helpful assistant.",
				"Technical": "You are a precise engineering assistant.",
			},
		}
	})

	result := engine.Classify(context.Background(), "fix my build", "assistant", ClassifyOptions{})
	require.False(t, result.FallbackUsed)
	// The catalog's canonical spelling wins, matched case-insensitively.
	assert.Equal(t, "Technical", result.SelectedVariant)
}

func TestEngine_KeywordFallback(t *testing.T) {
	// No model configured: the deterministic path must still route a
	// debugging request onto the technical variant.
	engine := NewEngine(func(o *Options) {
		o.Loader = testLoader()
	})

	result := engine.Classify(context.Background(), "Can you debug this function?", "assistant", ClassifyOptions{})
	require.True(t, result.Success)
	assert.Equal(t, "technical", result.SelectedVariant)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.True(t, result.FallbackUsed)
	assert.Contains(t, result.Reasoning, "debug")
}

func TestEngine_FallbackOnModelError(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.FailWith(errors.New("upstream timeout"))

	engine := NewEngine(func(o *Options) {
		o.Model = llm
		o.Loader = testLoader()
	})

	result := engine.Classify(context.Background(), "hello there", "assistant", ClassifyOptions{})
	require.True(t, result.Success)
	assert.Equal(t, DefaultVariant, result.SelectedVariant)
	assert.InDelta(t, 0.3, result.Confidence, 1e-9)
	assert.True(t, result.FallbackUsed)
	assert.True(t, result.LowConfidence)
}

func TestEngine_RejectsUnknownVariant(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("pick something odd",
		"SELECTED_VARIANT: pirate\nCONFIDENCE: 0.99\nREASONING: arbitrary")

	engine := NewEngine(func(o *Options) {
		o.Model = llm
		o.Loader = testLoader()
	})

	result := engine.Classify(context.Background(), "pick something odd", "assistant", ClassifyOptions{})
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, DefaultVariant, result.SelectedVariant)
}

func TestEngine_AnalysisMode(t *testing.T) {
	engine := NewEngine(func(o *Options) { o.Loader = testLoader() })

	tests := []struct {
		name  string
		input string
		opts  ClassifyOptions
		want  AnalysisMode
	}{
		{"short casual", "hey there", ClassifyOptions{}, AnalysisQuick},
		{"explicit request", "hey there", ClassifyOptions{Detailed: true}, AnalysisDetailed},
		{"complexity term", "optimize my queries", ClassifyOptions{}, AnalysisDetailed},
		{"many sentences", "One. Two. Three! Four?", ClassifyOptions{}, AnalysisDetailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Classify(context.Background(), tt.input, "assistant", tt.opts)
			assert.Equal(t, tt.want, result.AnalysisMode)
		})
	}

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	result := engine.Classify(context.Background(), string(long), "assistant", ClassifyOptions{})
	assert.Equal(t, AnalysisDetailed, result.AnalysisMode)
}

func TestEngine_CatalogCacheAndInvalidation(t *testing.T) {
	loader := &countingLoader{catalogs: testLoader()}
	engine := NewEngine(func(o *Options) { o.Loader = loader })

	engine.Classify(context.Background(), "hi", "assistant", ClassifyOptions{})
	engine.Classify(context.Background(), "hi again", "assistant", ClassifyOptions{})
	assert.Equal(t, 1, loader.loads)

	engine.InvalidateAgent("assistant")
	engine.Classify(context.Background(), "hi once more", "assistant", ClassifyOptions{})
	assert.Equal(t, 2, loader.loads)

	engine.InvalidateAll()
	engine.Classify(context.Background(), "hi", "assistant", ClassifyOptions{})
	assert.Equal(t, 3, loader.loads)
}

func TestEngine_LoaderFailureDegrades(t *testing.T) {
	engine := NewEngine(func(o *Options) {
		o.Loader = failingLoader{}
	})

	result := engine.Classify(context.Background(), "anything at all", "assistant", ClassifyOptions{})
	require.True(t, result.Success)
	assert.Equal(t, DefaultVariant, result.SelectedVariant)
	assert.True(t, result.FallbackUsed)
}

type countingLoader struct {
	catalogs StaticLoader
	loads    int
}

func (l *countingLoader) LoadCatalog(ctx context.Context, agent string) (VariantCatalog, error) {
	l.loads++
	return l.catalogs.LoadCatalog(ctx, agent)
}

type failingLoader struct{}

func (failingLoader) LoadCatalog(context.Context, string) (VariantCatalog, error) {
	return nil, errors.New("catalog source unavailable")
}
