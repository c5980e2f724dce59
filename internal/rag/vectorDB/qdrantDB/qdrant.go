package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/vectorDB"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const contentKey = "content"

type Options struct {
	Host      string
	Port      int
	APIKey    string
	UseTLS    bool
	PoolSize  int
	Dimension int
	Timeout   time.Duration
}

type ClientHolder struct {
	QObj      *qdrant.Client
	dimension uint64
	timeout   time.Duration
	logger    *logger_i.Logger
}

func New(opts Options) (*ClientHolder, error) {
	if opts.Dimension <= 0 {
		return nil, errors.New("qdrant: vector dimension is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     opts.Host,
		Port:     opts.Port,
		APIKey:   opts.APIKey,
		UseTLS:   opts.UseTLS,
		PoolSize: uint(opts.PoolSize),
	})
	if err != nil {
		return nil, ragErrors.New(ragErrors.ErrStoreUnavailable, "qdrant.connect", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = config.VectorStoreCallTimeout
	}
	return &ClientHolder{
		QObj:      client,
		dimension: uint64(opts.Dimension),
		timeout:   timeout,
		logger:    logger_i.NewLogger("Qdrant"),
	}, nil
}

func (db *ClientHolder) Close() error {
	db.logger.Info("Shutting down Qdrant")
	return db.QObj.Close()
}

// ClearCollection drops and recreates the collection, which is cheaper than deleting every point.
func (db *ClientHolder) ClearCollection(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	exists, err := db.QObj.CollectionExists(ctx, collection)
	if err != nil {
		return ragErrors.New(ragErrors.ErrStoreUnavailable, "qdrant.clear", err)
	}
	if exists {
		if err := db.QObj.DeleteCollection(ctx, collection); err != nil {
			return ragErrors.New(ragErrors.ErrStoreUnavailable, "qdrant.clear", err)
		}
	}
	if err := db.createCollection(ctx, collection); err != nil {
		return ragErrors.New(ragErrors.ErrStoreUnavailable, "qdrant.clear", err)
	}
	db.logger.Info("Collection cleared", "collection", collection)
	return nil
}

func (db *ClientHolder) BulkInsert(ctx context.Context, collection string, chunks []commonModels.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		if err := ragErrors.DimensionCheck(ragErrors.ErrStoreWrite, "qdrant.insert", int(db.dimension), chunk.Embedding); err != nil {
			return err
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(chunk.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				contentKey:    chunk.Content,
				"chunk_index": chunk.Index,
				"token_count": chunk.TokenCount,
			}),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	// a single request so a failure leaves nothing half written
	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return ragErrors.New(ragErrors.ErrStoreWrite, "qdrant.insert", fmt.Errorf("upsert %d points: %w", len(points), err))
	}
	return nil
}

func (db *ClientHolder) SimilaritySearch(ctx context.Context, collection string, queryVector []float32, threshold float32, limit int) ([]string, error) {
	if err := ragErrors.DimensionCheck(ragErrors.ErrStoreQuery, "qdrant.search", int(db.dimension), queryVector); err != nil {
		return nil, err
	}
	log := db.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(threshold),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		log.Error("Error querying Qdrant", "error", err)
		return nil, ragErrors.New(ragErrors.ErrStoreQuery, "qdrant.search", err)
	}

	hits := make([]vectorDB.ScoredContent, 0, len(result))
	for _, hit := range result {
		hits = append(hits, vectorDB.ScoredContent{
			Content: hit.Payload[contentKey].GetStringValue(),
			Score:   hit.Score,
		})
	}
	matches := vectorDB.RankAndFilter(hits, threshold, limit)
	log.Debug("Found matches", "count", len(matches))
	return matches, nil
}

func (db *ClientHolder) createCollection(ctx context.Context, collection string) error {
	if collection == "" {
		return errors.New("empty collection name")
	}
	return db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     db.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
