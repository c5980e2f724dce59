package chromemDB

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/vectorDB"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

var errNoEmbeddingFunc = errors.New("chromem: embeddings are computed outside the store")

// vectors always arrive precomputed; this keeps chromem from reaching for its default OpenAI embedder
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Store is the embedded backend, in memory or persisted to a directory.
type Store struct {
	db        *chromem.DB
	dimension int
	logger    *logger_i.Logger
}

func New(path string, compress bool, dimension int) (*Store, error) {
	logger := logger_i.NewLogger("chromem")
	if path == "" {
		logger.Info("Using in-memory vector store")
		return &Store{db: chromem.NewDB(), dimension: dimension, logger: logger}, nil
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, ragErrors.New(ragErrors.ErrStoreUnavailable, "chromem.open", err)
	}
	logger.Info("Using persistent vector store", "path", path)
	return &Store{db: db, dimension: dimension, logger: logger}, nil
}

func (s *Store) ClearCollection(ctx context.Context, collection string) error {
	if err := s.db.DeleteCollection(collection); err != nil {
		return ragErrors.New(ragErrors.ErrStoreUnavailable, "chromem.clear", err)
	}
	if _, err := s.db.GetOrCreateCollection(collection, nil, noEmbedding); err != nil {
		return ragErrors.New(ragErrors.ErrStoreUnavailable, "chromem.clear", err)
	}
	s.logger.Info("Collection cleared", "collection", collection)
	return nil
}

func (s *Store) BulkInsert(ctx context.Context, collection string, chunks []commonModels.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := ragErrors.DimensionCheck(ragErrors.ErrStoreWrite, "chromem.insert", s.dimension, chunk.Embedding); err != nil {
			return err
		}
		ids[i] = uuid.NewString()
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   chunk.Content,
			Embedding: chunk.Embedding,
			Metadata: map[string]string{
				"chunk_index": strconv.Itoa(chunk.Index),
				"token_count": strconv.Itoa(chunk.TokenCount),
			},
		}
	}

	c, err := s.db.GetOrCreateCollection(collection, nil, noEmbedding)
	if err != nil {
		return ragErrors.New(ragErrors.ErrStoreWrite, "chromem.insert", err)
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		// concurrent adds may have landed before the failure
		if delErr := c.Delete(ctx, nil, nil, ids...); delErr != nil {
			s.logger.Error("Rollback after failed insert did not complete", "error", delErr)
		}
		return ragErrors.New(ragErrors.ErrStoreWrite, "chromem.insert", err)
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, collection string, queryVector []float32, threshold float32, limit int) ([]string, error) {
	if err := ragErrors.DimensionCheck(ragErrors.ErrStoreQuery, "chromem.search", s.dimension, queryVector); err != nil {
		return nil, err
	}
	c := s.db.GetCollection(collection, noEmbedding)
	if c == nil {
		return nil, ragErrors.New(ragErrors.ErrStoreQuery, "chromem.search", fmt.Errorf("collection %q not found", collection))
	}

	// chromem rejects nResults above the document count
	n := min(limit, c.Count())
	if n <= 0 {
		return []string{}, nil
	}
	results, err := c.QueryEmbedding(ctx, queryVector, n, nil, nil)
	if err != nil {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("chromem query failed", "error", err)
		return nil, ragErrors.New(ragErrors.ErrStoreQuery, "chromem.search", err)
	}

	hits := make([]vectorDB.ScoredContent, len(results))
	for i, r := range results {
		hits[i] = vectorDB.ScoredContent{Content: r.Content, Score: r.Similarity}
	}
	return vectorDB.RankAndFilter(hits, threshold, limit), nil
}
