package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/rag/llm"
	"github.com/akolanti/DocQA/internal/rag/prompts"
)

const cannotAnswer = "I cannot answer based on the provided information."

type mockProvider struct {
	OnGenerate func(ctx context.Context, req llm.Request) (string, error)
	calls      int
	lastReq    llm.Request
}

func (m *mockProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.calls++
	m.lastReq = req
	return m.OnGenerate(ctx, req)
}

func newSynthesizer(t *testing.T, p llm.Provider) *Synthesizer {
	t.Helper()
	r, err := prompts.NewRenderer(nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewSynthesizer(p, r, "the Constitution of Mauritius", cannotAnswer)
}

func TestSynthesize_EmptyContext(t *testing.T) {
	p := &mockProvider{OnGenerate: func(ctx context.Context, req llm.Request) (string, error) {
		return "made up answer", nil
	}}
	s := newSynthesizer(t, p)

	got, err := s.Synthesize(context.Background(), "What is the capital of France?", nil, nil)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if got != cannotAnswer {
		t.Errorf("got %q, want the cannot-answer text", got)
	}
	if p.calls != 0 {
		t.Errorf("model called %d times for an empty context", p.calls)
	}

	var streamed []string
	for f, err := range s.SynthesizeStream(context.Background(), "What is the capital of France?", nil, nil) {
		if err != nil {
			t.Fatal(err)
		}
		streamed = append(streamed, f)
	}
	if len(streamed) != 1 || streamed[0] != cannotAnswer {
		t.Errorf("stream = %v", streamed)
	}
}

func TestSynthesize_PassesContextAndHistory(t *testing.T) {
	p := &mockProvider{OnGenerate: func(ctx context.Context, req llm.Request) (string, error) {
		return "Every citizen aged 18 may vote.", nil
	}}
	s := newSynthesizer(t, p)
	history := []commonModels.ConversationMessage{
		{Role: commonModels.RoleUser, Content: "Hi"},
		{Role: commonModels.RoleModel, Content: "Hello!"},
	}

	got, err := s.Synthesize(context.Background(), "Who can vote?", history, []string{"Section 42. Qualification of electors."})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if got != "Every citizen aged 18 may vote." {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(p.lastReq.SystemInstruction, "Section 42. Qualification of electors.") {
		t.Error("context missing from the instruction")
	}
	if len(p.lastReq.History) != 2 || p.lastReq.Prompt != "Who can vote?" {
		t.Errorf("request = %+v", p.lastReq)
	}
}

func TestSynthesize_ProviderError(t *testing.T) {
	p := &mockProvider{OnGenerate: func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("deadline exceeded")
	}}
	s := newSynthesizer(t, p)

	if _, err := s.Synthesize(context.Background(), "Who can vote?", nil, []string{"passage"}); err == nil {
		t.Error("expected the provider error to surface")
	}
}
