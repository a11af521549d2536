// Package embedding provides the shared embedding service used by semantic
// memory. A Service wraps an Embedder implementation with lazy one-time
// initialization, input truncation and a content-hash keyed cache so repeated
// texts never recompute their vectors. The default HashEmbedder produces
// deterministic vectors without any external model, which keeps local
// development and tests hermetic; production deployments plug in a real
// provider behind the same interface.
package embedding
