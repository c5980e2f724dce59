package pgvectorDB

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/vectorDB"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// chunkRow is one stored chunk. The vector column is sized at table creation.
type chunkRow struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`

	ID         uuid.UUID       `bun:"id,pk,type:uuid"`
	Collection string          `bun:"collection,notnull"`
	ChunkIndex int             `bun:"chunk_index,notnull"`
	Content    string          `bun:"content,notnull"`
	TokenCount int             `bun:"token_count"`
	Embedding  pgvector.Vector `bun:"embedding,type:vector,notnull"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type scoredRow struct {
	Content    string  `bun:"content"`
	Similarity float64 `bun:"similarity"`
}

type Options struct {
	DSN       string
	Dimension int
	Debug     bool
	Timeout   time.Duration
}

type Store struct {
	db        *bun.DB
	dimension int
	timeout   time.Duration
	logger    *logger_i.Logger
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Dimension <= 0 {
		return nil, errors.New("pgvector: vector dimension is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if opts.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = config.VectorStoreCallTimeout
	}
	s := &Store{db: db, dimension: opts.Dimension, timeout: timeout, logger: logger_i.NewLogger("pgvector")}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, ragErrors.New(ragErrors.ErrStoreUnavailable, "pgvector.schema", err)
	}
	return s, nil
}

// NewWithDB is used when the caller already owns a bun handle.
func NewWithDB(db *bun.DB, dimension int) *Store {
	return &Store{db: db, dimension: dimension, timeout: config.VectorStoreCallTimeout, logger: logger_i.NewLogger("pgvector")}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	// the vector width depends on the embedding model so the DDL is built here rather than from tags
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
	id uuid PRIMARY KEY,
	collection text NOT NULL,
	chunk_index integer NOT NULL,
	content text NOT NULL,
	token_count integer,
	embedding vector(%d) NOT NULL,
	created_at timestamptz NOT NULL DEFAULT current_timestamp
)`, s.dimension))
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	_, err = s.db.NewCreateIndex().
		Model((*chunkRow)(nil)).
		IfNotExists().
		Index("document_chunks_collection_idx").
		Column("collection").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (s *Store) ClearCollection(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("collection = ?", collection).
		Exec(ctx)
	if err != nil {
		return ragErrors.New(ragErrors.ErrStoreUnavailable, "pgvector.clear", err)
	}
	removed, _ := res.RowsAffected()
	s.logger.Info("Collection cleared", "collection", collection, "removed", removed)
	return nil
}

func (s *Store) BulkInsert(ctx context.Context, collection string, chunks []commonModels.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]chunkRow, len(chunks))
	for i, chunk := range chunks {
		if err := ragErrors.DimensionCheck(ragErrors.ErrStoreWrite, "pgvector.insert", s.dimension, chunk.Embedding); err != nil {
			return err
		}
		rows[i] = chunkRow{
			ID:         uuid.New(),
			Collection: collection,
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			TokenCount: chunk.TokenCount,
			Embedding:  pgvector.NewVector(chunk.Embedding),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return ragErrors.New(ragErrors.ErrStoreWrite, "pgvector.insert", err)
	}
	return nil
}

// SimilaritySearch uses cosine distance (<=>); similarity is 1 - distance.
func (s *Store) SimilaritySearch(ctx context.Context, collection string, queryVector []float32, threshold float32, limit int) ([]string, error) {
	if err := ragErrors.DimensionCheck(ragErrors.ErrStoreQuery, "pgvector.search", s.dimension, queryVector); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := pgvector.NewVector(queryVector)
	var rows []scoredRow
	err := s.db.NewSelect().
		Model((*chunkRow)(nil)).
		Column("content").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", query).
		Where("collection = ?", collection).
		Where("1 - (embedding <=> ?) > ?", query, threshold).
		OrderExpr("embedding <=> ?", query).
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("pgvector query failed", "error", err)
		return nil, ragErrors.New(ragErrors.ErrStoreQuery, "pgvector.search", err)
	}

	hits := make([]vectorDB.ScoredContent, len(rows))
	for i, r := range rows {
		hits[i] = vectorDB.ScoredContent{Content: r.Content, Score: float32(r.Similarity)}
	}
	return vectorDB.RankAndFilter(hits, threshold, limit), nil
}
