package ollamaLLM

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/rag/llm"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// local models through langchaingo. No streaming here, callers get the whole answer as one fragment.
type localClient struct {
	model       *ollama.LLM
	temperature float32
	timeout     time.Duration
	logger      *logger_i.Logger
}

func New(serverURL string, modelName string, temperature float32, timeout time.Duration) (llm.Provider, error) {
	model, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	if timeout <= 0 {
		timeout = config.LLMCallTimeout
	}
	return &localClient{
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger_i.NewLogger("llm_ollama").With("model", modelName),
	}, nil
}

func (c *localClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]llms.MessageContent, 0, len(req.History)+2)
	if req.SystemInstruction != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemInstruction))
	}
	for _, m := range req.History {
		role := llms.ChatMessageTypeHuman
		if m.Role == commonModels.RoleModel {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	resp, err := c.model.GenerateContent(callCtx, messages, llms.WithTemperature(float64(temperature)))
	if err != nil {
		c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Ollama generate failed", "error", err)
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
