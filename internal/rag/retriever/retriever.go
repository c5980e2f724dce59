package retriever

import (
	"context"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/metrics"
	"github.com/akolanti/DocQA/internal/rag/embedding"
	"github.com/akolanti/DocQA/internal/rag/vectorDB"
	"github.com/akolanti/DocQA/pkg/logger_i"
)

type Retriever struct {
	embedder     embedding.Embedder
	gateway      vectorDB.Gateway
	defaultLimit int
	logger       *logger_i.Logger
}

func New(embedder embedding.Embedder, gateway vectorDB.Gateway, defaultLimit int) *Retriever {
	if defaultLimit <= 0 {
		defaultLimit = config.TopK
	}
	return &Retriever{
		embedder:     embedder,
		gateway:      gateway,
		defaultLimit: defaultLimit,
		logger:       logger_i.NewLogger("Retriever"),
	}
}

// Retrieve embeds the query and returns the passages above threshold, best first.
// An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, collection string, threshold float32, limit int) ([]string, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	log := r.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	vector, err := r.embed(ctx, query)
	if err != nil {
		log.Error("Query embedding failed", "error", err)
		return nil, ragErrors.New(ragErrors.ErrRetrievalFailed, "retrieve.embed", err)
	}

	start := time.Now()
	matches, err := r.gateway.SimilaritySearch(ctx, collection, vector, threshold, limit)
	metrics.CaptureExecutionMetrics("vector_search", time.Since(start))
	if err != nil {
		return nil, err
	}
	log.Debug("Retrieved passages", "count", len(matches), "threshold", threshold, "limit", limit)
	return matches, nil
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	vector, err := r.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "retrieve.embed", nil)
	}
	return vector, nil
}
