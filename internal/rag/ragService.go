package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/jobModel"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/metrics"
	"github.com/akolanti/DocQA/internal/rag/ingest"
	"github.com/akolanti/DocQA/pkg/logger_i"
)

// Service is all the worker pool, the handlers and the CLI see of the pipeline.
type Service interface {
	Answer(ctx context.Context, question string, history []commonModels.ConversationMessage, opts ...QueryOption) (string, error)
	AnswerStream(ctx context.Context, question string, history []commonModels.ConversationMessage, opts ...QueryOption) iter.Seq2[string, error]
	Reindex(ctx context.Context, sourceText string, collection string) (commonModels.ReindexResult, error)
	ProcessRequest(ctx context.Context, job jobModel.Job, history []commonModels.ConversationMessage) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

type Classifier interface {
	Classify(ctx context.Context, question string) (commonModels.TriageDecision, error)
}

type StandardResponder interface {
	RespondStandard(ctx context.Context, question string) (string, error)
	RespondStandardStream(ctx context.Context, question string) iter.Seq2[string, error]
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, collection string, threshold float32, limit int) ([]string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) (string, error)
	SynthesizeStream(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) iter.Seq2[string, error]
}

type Indexer interface {
	Reindex(ctx context.Context, sourceText string, collection string) (commonModels.ReindexResult, error)
}

type TurnPublisher interface {
	Publish(ctx context.Context, turn commonModels.TurnRecord) error
}

type ServiceConfig struct {
	Classifier  Classifier
	Responder   StandardResponder
	Retriever   Retriever
	Synthesizer Synthesizer
	Indexer     Indexer
	// Publisher is optional.
	Publisher TurnPublisher

	Collection          string
	SimilarityThreshold float32
	TopK                int
	TurnTimeout         time.Duration

	StandardFallback  string
	SynthesisFallback string
	TriageApology     string
}

type QueryOption func(*query)

type query struct {
	collection string
	threshold  float32
	limit      int
}

func WithThreshold(threshold float32) QueryOption {
	return func(q *query) { q.threshold = threshold }
}

func WithTopK(limit int) QueryOption {
	return func(q *query) {
		if limit > 0 {
			q.limit = limit
		}
	}
}

func WithCollection(collection string) QueryOption {
	return func(q *query) {
		if collection != "" {
			q.collection = collection
		}
	}
}

type service struct {
	cfg    ServiceConfig
	logger *logger_i.Logger
}

func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Classifier == nil || cfg.Responder == nil || cfg.Retriever == nil || cfg.Synthesizer == nil || cfg.Indexer == nil {
		return nil, errors.New("rag: classifier, responder, retriever, synthesizer and indexer are required")
	}
	if cfg.Collection == "" {
		cfg.Collection = config.DefaultCollection
	}
	if cfg.TopK <= 0 {
		cfg.TopK = config.TopK
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = config.TurnTimeout
	}
	if cfg.StandardFallback == "" {
		cfg.StandardFallback = fmt.Sprintf(config.StandardFallback, config.SubjectDescription)
	}
	if cfg.SynthesisFallback == "" {
		cfg.SynthesisFallback = config.SynthesisFallback
	}
	if cfg.TriageApology == "" {
		cfg.TriageApology = config.TriageApology
	}
	return &service{
		cfg:    cfg,
		logger: logger_i.NewLogger("RAG Service"),
	}, nil
}

func (s *service) newQuery(opts []QueryOption) query {
	q := query{
		collection: s.cfg.Collection,
		threshold:  s.cfg.SimilarityThreshold,
		limit:      s.cfg.TopK,
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

func (s *service) Answer(ctx context.Context, question string, history []commonModels.ConversationMessage, opts ...QueryOption) (string, error) {
	res, err := s.runTurn(ctx, question, history, s.newQuery(opts), nil)
	if err != nil {
		return "", err
	}
	return res.answer, nil
}

func (s *service) Reindex(ctx context.Context, sourceText string, collection string) (commonModels.ReindexResult, error) {
	if collection == "" {
		collection = s.cfg.Collection
	}
	return s.cfg.Indexer.Reindex(ctx, sourceText, collection)
}

// ProcessRequest runs one turn for the async job API. The job status is left to the caller.
func (s *service) ProcessRequest(ctx context.Context, jobt jobModel.Job, history []commonModels.ConversationMessage) jobModel.Job {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("JobId", jobt.Id)

	jobt.CurrentStep = jobModel.UserQueryInit
	res, err := s.runTurn(ctx, jobt.JobPayload.Question, history, s.newQuery(nil), func(step jobModel.InternalStatus) {
		jobt.CurrentStep = step
		log.Debug("ProcessRequest", "Current Status", step)
	})

	switch {
	case errors.Is(err, ragErrors.ErrTriageFailed):
		return s.jobError(jobt, err, s.cfg.TriageApology, true)
	case err != nil:
		return s.jobError(jobt, err, "Internal Server Error", true)
	}

	jobt.JobPayload.Answer = res.answer
	jobt.JobPayload.Sources = res.contexts
	jobt.JobPayload.Decision = res.decision
	jobt.CurrentStep = jobModel.Complete
	return jobt
}

// IngestDocument extracts the uploaded file and rebuilds the collection from it.
func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("JobId", job.Id)
	job.CurrentStep = jobModel.IngestProcessing

	path := job.JobPayload.IngestURL
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("Error removing file", "error", err)
		}
	}()

	text, err := ingest.ExtractText(path)
	if err != nil {
		return s.jobError(job, err, "Error extracting document content", false)
	}

	collection := job.JobPayload.Collection
	if collection == "" {
		collection = s.cfg.Collection
	}
	result, err := s.cfg.Indexer.Reindex(ctx, text, collection)
	if err != nil {
		retry := !errors.Is(err, ragErrors.ErrNoEmbeddableContent) && !errors.Is(err, ragErrors.ErrDegenerateChunkingConfig)
		return s.jobError(job, err, "Document ingestion failed", retry)
	}

	job.JobPayload.Collection = collection
	job.JobPayload.Inserted = result.Inserted
	job.JobPayload.Skipped = result.Skipped
	job.CurrentStep = jobModel.Complete
	log.Info("Document ingested", "file", job.JobPayload.IngestFileName, "inserted", result.Inserted, "skipped", result.Skipped)
	return job
}
