package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/metrics"
	"github.com/akolanti/DocQA/internal/rag/embedding"
	"github.com/akolanti/DocQA/internal/rag/vectorDB"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

// IndexLocker serializes reindex runs per collection, across processes when backed by Redis.
type IndexLocker interface {
	Acquire(ctx context.Context, collection string) (release func(), err error)
}

type IndexerConfig struct {
	Embedder    embedding.Embedder
	Gateway     vectorDB.Gateway
	Locker      IndexLocker
	ChunkSize   int
	Overlap     int
	Concurrency int
}

type Indexer struct {
	embedder    embedding.Embedder
	gateway     vectorDB.Gateway
	locker      IndexLocker
	chunkSize   int
	overlap     int
	concurrency int
	logger      *logger_i.Logger
}

func NewIndexer(cfg IndexerConfig) (*Indexer, error) {
	if cfg.Embedder == nil || cfg.Gateway == nil {
		return nil, errors.New("indexer: embedder and gateway are required")
	}
	if err := ValidateChunking(cfg.ChunkSize, cfg.Overlap); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.EmbedConcurrency
	}
	return &Indexer{
		embedder:    cfg.Embedder,
		gateway:     cfg.Gateway,
		locker:      cfg.Locker,
		chunkSize:   cfg.ChunkSize,
		overlap:     cfg.Overlap,
		concurrency: cfg.Concurrency,
		logger:      logger_i.NewLogger("Indexer"),
	}, nil
}

// Reindex replaces the whole collection with the chunks of text. Chunks whose embedding fails
// are skipped and counted; the rest are written in one batch, in chunk order.
func (ix *Indexer) Reindex(ctx context.Context, text string, collection string) (commonModels.ReindexResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("reindex", time.Since(start)) }()

	log := ix.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("collection", collection)

	if ix.locker != nil {
		release, err := ix.locker.Acquire(ctx, collection)
		if err != nil {
			return commonModels.ReindexResult{}, ragErrors.New(ragErrors.ErrIndexBusy, "reindex", err)
		}
		defer release()
	}

	chunks, err := Chunk(text, ix.chunkSize, ix.overlap)
	if err != nil {
		return commonModels.ReindexResult{}, err
	}
	log.Info("Document chunked", "chunks", len(chunks))

	if err := ix.gateway.ClearCollection(ctx, collection); err != nil {
		log.Error("Clearing collection failed", "error", err)
		return commonModels.ReindexResult{}, err
	}

	embedded := ix.embedAll(ctx, log, chunks)
	if err := ctx.Err(); err != nil {
		return commonModels.ReindexResult{}, err
	}

	ready := make([]commonModels.EmbeddedChunk, 0, len(chunks))
	for i, vec := range embedded {
		if vec != nil {
			ready = append(ready, commonModels.EmbeddedChunk{DocumentChunk: chunks[i], Embedding: vec})
		}
	}
	result := commonModels.ReindexResult{Inserted: len(ready), Skipped: len(chunks) - len(ready)}

	if len(ready) == 0 {
		return result, ragErrors.New(ragErrors.ErrNoEmbeddableContent, "reindex",
			fmt.Errorf("0 of %d chunks embedded", len(chunks)))
	}

	if err := ix.gateway.BulkInsert(ctx, collection, ready); err != nil {
		log.Error("Bulk insert failed", "error", err)
		return commonModels.ReindexResult{}, err
	}

	metrics.CaptureChunks(result.Inserted, result.Skipped)
	log.Info("Reindex complete", "inserted", result.Inserted, "skipped", result.Skipped)
	return result, nil
}

// embedAll returns one vector per chunk, nil where embedding failed.
func (ix *Indexer) embedAll(ctx context.Context, log *logger_i.Logger, chunks []commonModels.DocumentChunk) [][]float32 {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			vec, err := ix.embedder.GetEmbedding(gctx, chunk.Content)
			if err != nil {
				log.Warn("Skipping chunk", "index", chunk.Index, "error", err)
				return nil
			}
			if len(vec) == 0 {
				log.Warn("Skipping chunk with empty embedding", "index", chunk.Index)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	return vectors
}
