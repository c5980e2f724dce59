package openaiEmbedding

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/embedding"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/openai/openai-go"
)

type client struct {
	api       openai.Client
	model     string
	dimension int32
	timeout   time.Duration
	logger    *logger_i.Logger
}

func New(api openai.Client, model string, dimension int32, timeout time.Duration) embedding.Embedder {
	if timeout <= 0 {
		timeout = config.EmbeddingTimeout
	}
	return &client{
		api:       api,
		model:     model,
		dimension: dimension,
		timeout:   timeout,
		logger:    logger_i.NewLogger("openai_embedding"),
	}
}

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	res, err := c.api.Embeddings.New(callCtx, params)
	if err != nil {
		c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Error getting embedding from OpenAI", "error", err)
		return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "openai.embed", err)
	}
	if res == nil || len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "openai.embed", errors.New("empty embedding"))
	}

	// the api speaks float64
	vector := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}
