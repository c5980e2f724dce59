package triage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/llm"
	"github.com/akolanti/DocQA/internal/rag/prompts"
	"github.com/akolanti/DocQA/pkg/logger_i"
)

type Renderer interface {
	RenderPrompt(templateID string, data prompts.Data) (string, error)
}

// Classifier decides whether a question needs the document. It never sees conversation history.
type Classifier struct {
	provider llm.Provider
	renderer Renderer
	subject  string
	logger   *logger_i.Logger
}

func NewClassifier(provider llm.Provider, renderer Renderer, subject string) *Classifier {
	return &Classifier{
		provider: provider,
		renderer: renderer,
		subject:  subject,
		logger:   logger_i.NewLogger("Triage"),
	}
}

func (c *Classifier) Classify(ctx context.Context, question string) (commonModels.TriageDecision, error) {
	instruction, err := c.renderer.RenderPrompt(prompts.Triage, prompts.Data{Subject: c.subject})
	if err != nil {
		return "", ragErrors.New(ragErrors.ErrTriageFailed, "triage.render", err)
	}

	out, err := c.provider.Generate(ctx, llm.Request{
		SystemInstruction: instruction,
		Prompt:            question,
		Temperature:       llm.Temperature(0),
	})
	if err != nil {
		return "", ragErrors.New(ragErrors.ErrTriageFailed, "triage.generate", err)
	}

	decision, err := ParseDecision(out)
	if err != nil {
		c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Warn("Unusable triage output", "output", out)
		return "", ragErrors.New(ragErrors.ErrTriageFailed, "triage.parse", err)
	}
	return decision, nil
}

// ParseDecision accepts model output that names exactly one of the two labels.
func ParseDecision(out string) (commonModels.TriageDecision, error) {
	normalized := strings.ToLower(strings.TrimSpace(out))
	if normalized == "" {
		return "", errors.New("empty classifier output")
	}
	search := strings.Contains(normalized, string(commonModels.SearchDocument))
	decline := strings.Contains(normalized, string(commonModels.GreetOrDecline))
	switch {
	case search && !decline:
		return commonModels.SearchDocument, nil
	case decline && !search:
		return commonModels.GreetOrDecline, nil
	default:
		return "", fmt.Errorf("unrecognised classifier output %q", out)
	}
}

// StandardResponder greets or declines without touching the document.
type StandardResponder struct {
	provider llm.Provider
	renderer Renderer
	subject  string
}

func NewStandardResponder(provider llm.Provider, renderer Renderer, subject string) *StandardResponder {
	return &StandardResponder{provider: provider, renderer: renderer, subject: subject}
}

func (s *StandardResponder) RespondStandard(ctx context.Context, question string) (string, error) {
	req, err := s.request(question)
	if err != nil {
		return "", err
	}
	return s.provider.Generate(ctx, req)
}

func (s *StandardResponder) RespondStandardStream(ctx context.Context, question string) iter.Seq2[string, error] {
	req, err := s.request(question)
	if err != nil {
		return func(yield func(string, error) bool) { yield("", err) }
	}
	return llm.Stream(ctx, s.provider, req)
}

func (s *StandardResponder) request(question string) (llm.Request, error) {
	instruction, err := s.renderer.RenderPrompt(prompts.Standard, prompts.Data{Subject: s.subject, Question: question})
	if err != nil {
		return llm.Request{}, err
	}
	return llm.Request{SystemInstruction: instruction, Prompt: question}, nil
}
