package rag_test

import (
	"context"
	"iter"
	"sync"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
)

// MockClassifier implements rag.Classifier
type MockClassifier struct {
	OnClassify func(ctx context.Context, question string) (commonModels.TriageDecision, error)
}

func (m *MockClassifier) Classify(ctx context.Context, question string) (commonModels.TriageDecision, error) {
	if m.OnClassify != nil {
		return m.OnClassify(ctx, question)
	}
	return commonModels.SearchDocument, nil
}

// MockResponder implements rag.StandardResponder
type MockResponder struct {
	OnRespond       func(ctx context.Context, question string) (string, error)
	OnRespondStream func(ctx context.Context, question string) iter.Seq2[string, error]
}

func (m *MockResponder) RespondStandard(ctx context.Context, question string) (string, error) {
	if m.OnRespond != nil {
		return m.OnRespond(ctx, question)
	}
	return "Hello! Ask me about the Constitution.", nil
}

func (m *MockResponder) RespondStandardStream(ctx context.Context, question string) iter.Seq2[string, error] {
	if m.OnRespondStream != nil {
		return m.OnRespondStream(ctx, question)
	}
	return fragments("Hello! ", "Ask me about the Constitution.")
}

// MockRetriever implements rag.Retriever and counts calls
type MockRetriever struct {
	OnRetrieve func(ctx context.Context, query, collection string, threshold float32, limit int) ([]string, error)
	Calls      int
}

func (m *MockRetriever) Retrieve(ctx context.Context, query, collection string, threshold float32, limit int) ([]string, error) {
	m.Calls++
	if m.OnRetrieve != nil {
		return m.OnRetrieve(ctx, query, collection, threshold, limit)
	}
	return []string{"Section 42. Every citizen of 18 years may be registered as an elector."}, nil
}

// MockSynthesizer implements rag.Synthesizer
type MockSynthesizer struct {
	OnSynthesize       func(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) (string, error)
	OnSynthesizeStream func(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) iter.Seq2[string, error]
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) (string, error) {
	if m.OnSynthesize != nil {
		return m.OnSynthesize(ctx, question, history, contexts)
	}
	return "mocked answer", nil
}

func (m *MockSynthesizer) SynthesizeStream(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) iter.Seq2[string, error] {
	if m.OnSynthesizeStream != nil {
		return m.OnSynthesizeStream(ctx, question, history, contexts)
	}
	return fragments("mocked ", "answer")
}

// MockIndexer implements rag.Indexer
type MockIndexer struct {
	OnReindex func(ctx context.Context, text, collection string) (commonModels.ReindexResult, error)
}

func (m *MockIndexer) Reindex(ctx context.Context, text, collection string) (commonModels.ReindexResult, error) {
	if m.OnReindex != nil {
		return m.OnReindex(ctx, text, collection)
	}
	return commonModels.ReindexResult{}, nil
}

// MockPublisher records published turns
type MockPublisher struct {
	mu    sync.Mutex
	Turns []commonModels.TurnRecord
}

func (m *MockPublisher) Publish(ctx context.Context, turn commonModels.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Turns = append(m.Turns, turn)
	return nil
}

func fragments(parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}
