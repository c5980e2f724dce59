package triage

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/llm"
	"github.com/akolanti/DocQA/internal/rag/prompts"
)

type mockProvider struct {
	OnGenerate func(ctx context.Context, req llm.Request) (string, error)
	lastReq    llm.Request
}

func (m *mockProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.lastReq = req
	return m.OnGenerate(ctx, req)
}

type mockStreamingProvider struct {
	mockProvider
	OnGenerateStream func(ctx context.Context, req llm.Request) iter.Seq2[string, error]
}

func (m *mockStreamingProvider) GenerateStream(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
	return m.OnGenerateStream(ctx, req)
}

func renderer(t *testing.T) *prompts.Renderer {
	t.Helper()
	r, err := prompts.NewRenderer(nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		out     string
		want    commonModels.TriageDecision
		wantErr bool
	}{
		{out: "search_document", want: commonModels.SearchDocument},
		{out: "  SEARCH_DOCUMENT\n", want: commonModels.SearchDocument},
		{out: "greet_or_decline", want: commonModels.GreetOrDecline},
		{out: "Label: greet_or_decline.", want: commonModels.GreetOrDecline},
		{out: "", wantErr: true},
		{out: "maybe", wantErr: true},
		{out: "search_document or greet_or_decline", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			got, err := ParseDecision(tt.out)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseDecision(%q) = %q, %v; want %q", tt.out, got, err, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		generate func(ctx context.Context, req llm.Request) (string, error)
		want     commonModels.TriageDecision
		wantErr  bool
	}{
		{
			name:     "greeting",
			generate: func(ctx context.Context, req llm.Request) (string, error) { return "greet_or_decline", nil },
			want:     commonModels.GreetOrDecline,
		},
		{
			name:     "document question",
			generate: func(ctx context.Context, req llm.Request) (string, error) { return "search_document", nil },
			want:     commonModels.SearchDocument,
		},
		{
			name:     "provider error",
			generate: func(ctx context.Context, req llm.Request) (string, error) { return "", errors.New("503") },
			wantErr:  true,
		},
		{
			name:     "empty output",
			generate: func(ctx context.Context, req llm.Request) (string, error) { return "  ", nil },
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{OnGenerate: tt.generate}
			c := NewClassifier(p, renderer(t), "the Constitution of Mauritius")

			got, err := c.Classify(context.Background(), "Hello!")
			if tt.wantErr {
				if !errors.Is(err, ragErrors.ErrTriageFailed) {
					t.Errorf("err = %v, want ErrTriageFailed", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Classify = %q, %v; want %q", got, err, tt.want)
			}
			if p.lastReq.Temperature == nil || *p.lastReq.Temperature != 0 {
				t.Error("triage must run at temperature 0")
			}
			if len(p.lastReq.History) != 0 {
				t.Error("triage must not see history")
			}
			if !strings.Contains(p.lastReq.SystemInstruction, "the Constitution of Mauritius") {
				t.Error("subject not injected into the triage prompt")
			}
		})
	}
}

func TestRespondStandard(t *testing.T) {
	p := &mockProvider{OnGenerate: func(ctx context.Context, req llm.Request) (string, error) {
		return "Hello! Ask me about the Road Traffic Act.", nil
	}}
	s := NewStandardResponder(p, renderer(t), "the Road Traffic Act")

	got, err := s.RespondStandard(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("RespondStandard failed: %v", err)
	}
	if got != "Hello! Ask me about the Road Traffic Act." {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(p.lastReq.SystemInstruction, "the Road Traffic Act") {
		t.Error("subject not injected into the standard prompt")
	}
}

func TestRespondStandardStream(t *testing.T) {
	p := &mockStreamingProvider{OnGenerateStream: func(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, f := range []string{"Hel", "lo"} {
				if !yield(f, nil) {
					return
				}
			}
		}
	}}
	s := NewStandardResponder(p, renderer(t), "the Constitution of Mauritius")

	var got strings.Builder
	for fragment, err := range s.RespondStandardStream(context.Background(), "Hi") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got.WriteString(fragment)
	}
	if got.String() != "Hello" {
		t.Errorf("got %q", got.String())
	}
}
