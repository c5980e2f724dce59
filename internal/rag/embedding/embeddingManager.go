package embedding

import "context"

// Embedder turns text into a fixed-length vector. Adapters fail with ragErrors.ErrEmbeddingProvider
// on upstream errors, timeouts and empty vectors.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}
