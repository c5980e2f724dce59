package llm

import (
	"context"
	"iter"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
)

type Request struct {
	SystemInstruction string
	History           []commonModels.ConversationMessage
	Prompt            string
	// Temperature overrides the provider default when set.
	Temperature *float32
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// StreamingProvider is implemented by providers that can hand back partial output.
type StreamingProvider interface {
	Provider
	GenerateStream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// Stream yields the provider's fragments as they arrive. Providers without streaming
// produce their whole answer as a single fragment.
func Stream(ctx context.Context, p Provider, req Request) iter.Seq2[string, error] {
	if sp, ok := p.(StreamingProvider); ok {
		return sp.GenerateStream(ctx, req)
	}
	return func(yield func(string, error) bool) {
		text, err := p.Generate(ctx, req)
		if err != nil {
			yield("", err)
			return
		}
		yield(text, nil)
	}
}

func Temperature(t float32) *float32 {
	return &t
}
