package retriever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/vectorDB/chromemDB"
)

type mockEmbedder struct {
	OnGetEmbedding func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	return m.OnGetEmbedding(ctx, text)
}

type mockGateway struct {
	OnSearch  func(ctx context.Context, collection string, vec []float32, threshold float32, limit int) ([]string, error)
	lastLimit int
}

func (m *mockGateway) ClearCollection(ctx context.Context, collection string) error { return nil }

func (m *mockGateway) BulkInsert(ctx context.Context, collection string, chunks []commonModels.EmbeddedChunk) error {
	return nil
}

func (m *mockGateway) SimilaritySearch(ctx context.Context, collection string, vec []float32, threshold float32, limit int) ([]string, error) {
	m.lastLimit = limit
	return m.OnSearch(ctx, collection, vec, threshold, limit)
}

func fixedEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestRetrieve_Errors(t *testing.T) {
	storeErr := ragErrors.New(ragErrors.ErrStoreQuery, "test", errors.New("timeout"))

	tests := []struct {
		name    string
		embed   func(ctx context.Context, text string) ([]float32, error)
		search  func(ctx context.Context, collection string, vec []float32, threshold float32, limit int) ([]string, error)
		wantErr error
	}{
		{
			name: "embedding failure",
			embed: func(ctx context.Context, text string) ([]float32, error) {
				return nil, ragErrors.New(ragErrors.ErrEmbeddingProvider, "test", errors.New("quota"))
			},
			wantErr: ragErrors.ErrRetrievalFailed,
		},
		{
			name: "empty vector",
			embed: func(ctx context.Context, text string) ([]float32, error) {
				return nil, nil
			},
			wantErr: ragErrors.ErrRetrievalFailed,
		},
		{
			name:  "store failure passes through",
			embed: fixedEmbedding,
			search: func(ctx context.Context, collection string, vec []float32, threshold float32, limit int) ([]string, error) {
				return nil, storeErr
			},
			wantErr: ragErrors.ErrStoreQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&mockEmbedder{OnGetEmbedding: tt.embed}, &mockGateway{OnSearch: tt.search}, 5)
			_, err := r.Retrieve(context.Background(), "Who can vote?", "constitution", 0.75, 5)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetrieve_DefaultLimit(t *testing.T) {
	g := &mockGateway{OnSearch: func(ctx context.Context, collection string, vec []float32, threshold float32, limit int) ([]string, error) {
		return []string{}, nil
	}}
	r := New(&mockEmbedder{OnGetEmbedding: fixedEmbedding}, g, 7)

	got, err := r.Retrieve(context.Background(), "Who can vote?", "constitution", 0.75, 0)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if g.lastLimit != 7 {
		t.Errorf("limit = %d, want the default 7", g.lastLimit)
	}
}

func TestRetrieve_ThresholdAgainstStore(t *testing.T) {
	store, err := chromemDB.New("", false, 2)
	if err != nil {
		t.Fatal(err)
	}
	var chunks []commonModels.EmbeddedChunk
	for i, sim := range []float64{0.9, 0.8, 0.76, 0.7, 0.6} {
		chunks = append(chunks, commonModels.EmbeddedChunk{
			DocumentChunk: commonModels.DocumentChunk{Index: i, Content: []string{"a", "b", "c", "d", "e"}[i]},
			Embedding:     []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))},
		})
	}
	if err := store.ClearCollection(context.Background(), "constitution"); err != nil {
		t.Fatal(err)
	}
	if err := store.BulkInsert(context.Background(), "constitution", chunks); err != nil {
		t.Fatal(err)
	}

	r := New(&mockEmbedder{OnGetEmbedding: fixedEmbedding}, store, 5)
	got, err := r.Retrieve(context.Background(), "Who can vote?", "constitution", 0.75, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}
