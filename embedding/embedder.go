package embedding

import "context"

// Embedder converts text to vector embeddings. Implementations must return
// vectors of constant dimensionality for all inputs.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
