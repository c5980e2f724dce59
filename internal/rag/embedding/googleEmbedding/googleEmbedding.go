package googleEmbedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/embedding"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type Options struct {
	Model     string
	Dimension int32
	TaskType  string
	Timeout   time.Duration
	RetryWait time.Duration
}

type client struct {
	genAi  *genai.Client
	opts   Options
	logger *logger_i.Logger
}

// New wraps an already constructed genai client. Documents and queries use separate
// instances so the task type matches what is being embedded.
func New(genAi *genai.Client, opts Options) embedding.Embedder {
	if opts.Timeout <= 0 {
		opts.Timeout = config.EmbeddingTimeout
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = config.EmbeddingRetryWait
	}
	return &client{
		genAi:  genAi,
		opts:   opts,
		logger: logger_i.NewLogger("google_embedding").With("task", opts.TaskType),
	}
}

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	res, err := c.doCall(ctx, text)
	if err != nil && doRetry(err, log) {
		log.Debug("Retrying embedding", "wait", c.opts.RetryWait)
		select {
		case <-time.After(c.opts.RetryWait):
			res, err = c.doCall(ctx, text)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		log.Error("Error getting embedding from Google", "error", err)
		return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "google.embed", err)
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil || len(res.Embeddings[0].Values) == 0 {
		return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "google.embed", errors.New("empty embedding"))
	}
	return res.Embeddings[0].Values, nil
}

func (c *client) doCall(ctx context.Context, text string) (*genai.EmbedContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	cfg := &genai.EmbedContentConfig{TaskType: c.opts.TaskType}
	if c.opts.Dimension > 0 {
		dimension := c.opts.Dimension
		cfg.OutputDimensionality = &dimension
	}
	return c.genAi.Models.EmbedContent(callCtx, c.opts.Model, genai.Text(text), cfg)
}

// doRetry reports whether the failure was a rate limit, over grpc or the REST api.
func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	return false
}
