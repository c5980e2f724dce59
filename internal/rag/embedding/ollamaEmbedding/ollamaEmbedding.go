package ollamaEmbedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/embedding"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

type client struct {
	embedder *embeddings.EmbedderImpl
	timeout  time.Duration
	logger   *logger_i.Logger
}

func New(serverURL string, model string, timeout time.Duration) (embedding.Embedder, error) {
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	if timeout <= 0 {
		timeout = config.EmbeddingTimeout
	}
	return &client{embedder: embedder, timeout: timeout, logger: logger_i.NewLogger("ollama_embedding")}, nil
}

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vector, err := c.embedder.EmbedQuery(callCtx, text)
	if err != nil {
		c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Error getting embedding from Ollama", "error", err)
		return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "ollama.embed", err)
	}
	if len(vector) == 0 {
		return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "ollama.embed", errors.New("empty embedding"))
	}
	return vector, nil
}
