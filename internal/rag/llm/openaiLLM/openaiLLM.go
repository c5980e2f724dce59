package openaiLLM

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
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type chatClient struct {
	api         openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *logger_i.Logger
}

// NewOpenAIClient builds the shared api client. An empty baseURL keeps the official endpoint,
// anything else targets an OpenAI compatible server.
func NewOpenAIClient(apiKey string, baseURL string, httpClient *http.Client) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return openai.NewClient(opts...)
}

func New(api openai.Client, model string, temperature float32, timeout time.Duration) llm.StreamingProvider {
	if timeout <= 0 {
		timeout = config.LLMCallTimeout
	}
	return &chatClient{
		api:         api,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger_i.NewLogger("llm_openai").With("model", model),
	}
}

func (c *chatClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(callCtx, c.params(req))
	if err != nil {
		c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("OpenAI completion failed", "error", err)
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *chatClient) GenerateStream(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		stream := c.api.Chat.Completions.NewStreaming(callCtx, c.params(req))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("OpenAI stream failed", "error", err)
			yield("", fmt.Errorf("openai stream: %w", err))
		}
	}
}

func (c *chatClient) params(req llm.Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	for _, m := range req.History {
		if m.Role == commonModels.RoleModel {
			messages = append(messages, openai.AssistantMessage(m.Content))
			continue
		}
		messages = append(messages, openai.UserMessage(m.Content))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(float64(temperature)),
	}
}
