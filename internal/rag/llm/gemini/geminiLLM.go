package gemini

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/rag/llm"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client      *genai.Client
	modelName   string
	temperature float32
	timeout     time.Duration
	logger      *logger_i.Logger
}

// NewGeminiClient builds the shared genai client used by the llm and embedding adapters.
func NewGeminiClient(ctx context.Context, apiKey string, httpClient *http.Client) (*genai.Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return c, nil
}

func New(client *genai.Client, modelName string, temperature float32, timeout time.Duration) llm.StreamingProvider {
	if timeout <= 0 {
		timeout = config.LLMCallTimeout
	}
	return &llmClient{
		client:      client,
		modelName:   modelName,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger_i.NewLogger("llm_gemini").With("model", modelName),
	}
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents, contentConfig := c.buildRequest(req)
	result, err := c.client.Models.GenerateContent(callCtx, c.modelName, contents, contentConfig)
	if err != nil {
		c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Gemini generate failed", "error", err)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return result.Text(), nil
}

func (c *llmClient) GenerateStream(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		contents, contentConfig := c.buildRequest(req)
		for resp, err := range c.client.Models.GenerateContentStream(callCtx, c.modelName, contents, contentConfig) {
			if err != nil {
				c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Gemini stream failed", "error", err)
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func (c *llmClient) buildRequest(req llm.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.RoleUser
		if m.Role == commonModels.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	contentConfig := &genai.GenerateContentConfig{Temperature: genai.Ptr(temperature)}
	if req.SystemInstruction != "" {
		contentConfig.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	return contents, contentConfig
}
