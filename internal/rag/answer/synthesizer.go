package answer

import (
	"context"
	"iter"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/rag/llm"
	"github.com/akolanti/DocQA/internal/rag/prompts"
)

type Renderer interface {
	RenderPrompt(templateID string, data prompts.Data) (string, error)
}

// Synthesizer answers strictly from the retrieved passages.
type Synthesizer struct {
	provider     llm.Provider
	renderer     Renderer
	subject      string
	cannotAnswer string
}

func NewSynthesizer(provider llm.Provider, renderer Renderer, subject string, cannotAnswer string) *Synthesizer {
	return &Synthesizer{
		provider:     provider,
		renderer:     renderer,
		subject:      subject,
		cannotAnswer: cannotAnswer,
	}
}

// Synthesize returns the cannot-answer sentence without a model call when contexts is empty.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) (string, error) {
	if len(contexts) == 0 {
		return s.cannotAnswer, nil
	}
	req, err := s.request(question, history, contexts)
	if err != nil {
		return "", err
	}
	return s.provider.Generate(ctx, req)
}

func (s *Synthesizer) SynthesizeStream(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) iter.Seq2[string, error] {
	if len(contexts) == 0 {
		return func(yield func(string, error) bool) { yield(s.cannotAnswer, nil) }
	}
	req, err := s.request(question, history, contexts)
	if err != nil {
		return func(yield func(string, error) bool) { yield("", err) }
	}
	return llm.Stream(ctx, s.provider, req)
}

func (s *Synthesizer) request(question string, history []commonModels.ConversationMessage, contexts []string) (llm.Request, error) {
	instruction, err := s.renderer.RenderPrompt(prompts.Answer, prompts.Data{
		Subject:  s.subject,
		Question: question,
		Context:  contexts,
	})
	if err != nil {
		return llm.Request{}, err
	}
	return llm.Request{
		SystemInstruction: instruction,
		History:           history,
		Prompt:            question,
	}, nil
}
