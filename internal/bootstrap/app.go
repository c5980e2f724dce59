package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/customHttpClient"
	"github.com/akolanti/DocQA/internal/data/redisStore"
	"github.com/akolanti/DocQA/internal/data/store"
	"github.com/akolanti/DocQA/internal/data/turnEvents"
	"github.com/akolanti/DocQA/internal/mcpServer"
	"github.com/akolanti/DocQA/internal/rag"
	"github.com/akolanti/DocQA/internal/rag/answer"
	"github.com/akolanti/DocQA/internal/rag/embedding"
	"github.com/akolanti/DocQA/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/DocQA/internal/rag/embedding/ollamaEmbedding"
	"github.com/akolanti/DocQA/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/DocQA/internal/rag/ingest"
	"github.com/akolanti/DocQA/internal/rag/llm"
	"github.com/akolanti/DocQA/internal/rag/llm/gemini"
	"github.com/akolanti/DocQA/internal/rag/llm/ollamaLLM"
	"github.com/akolanti/DocQA/internal/rag/llm/openaiLLM"
	"github.com/akolanti/DocQA/internal/rag/prompts"
	"github.com/akolanti/DocQA/internal/rag/retriever"
	"github.com/akolanti/DocQA/internal/rag/triage"
	"github.com/akolanti/DocQA/internal/rag/vectorDB"
	"github.com/akolanti/DocQA/internal/rag/vectorDB/chromemDB"
	"github.com/akolanti/DocQA/internal/rag/vectorDB/pgvectorDB"
	"github.com/akolanti/DocQA/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

// App holds everything built from Settings that outlives a single request.
type App struct {
	RagService rag.Service
	MCP        *mcp.Server
	closers    []io.Closer
	logger     *logger_i.Logger
}

// Build wires providers, the vector store and the pipeline. External clients are created once
// here and shared by every request.
func Build(ctx context.Context, s *config.Settings) (*App, error) {
	app := &App{logger: logger_i.NewLogger("bootstrap")}

	var genAi *genai.Client
	if s.LLM.Provider == config.ProviderGemini || s.Embedding.Provider == config.ProviderGemini {
		key := s.LLM.APIKey
		if s.LLM.Provider != config.ProviderGemini {
			key = s.Embedding.APIKey
		}
		c, err := gemini.NewGeminiClient(ctx, key, customHttpClient.GetClient())
		if err != nil {
			return nil, err
		}
		genAi = c
	}

	docEmbedder, queryEmbedder, err := newEmbedders(s.Embedding, genAi)
	if err != nil {
		return nil, err
	}

	gateway, err := app.newGateway(ctx, s.VectorStore, int(s.Embedding.Dimension))
	if err != nil {
		return nil, err
	}

	renderer, err := prompts.NewRenderer(s.RAG.Prompts)
	if err != nil {
		app.Close()
		return nil, err
	}

	providers := make(map[string]llm.Provider)
	provider := func(model string) (llm.Provider, error) {
		if p, ok := providers[model]; ok {
			return p, nil
		}
		p, err := newProvider(s.LLM, model, genAi)
		if err != nil {
			return nil, err
		}
		providers[model] = p
		return p, nil
	}
	triageLLM, err := provider(s.LLM.TriageModel)
	if err != nil {
		app.Close()
		return nil, err
	}
	standardLLM, err := provider(s.LLM.StandardModel)
	if err != nil {
		app.Close()
		return nil, err
	}
	answerLLM, err := provider(s.LLM.AnswerModel)
	if err != nil {
		app.Close()
		return nil, err
	}

	indexer, err := ingest.NewIndexer(ingest.IndexerConfig{
		Embedder:    docEmbedder,
		Gateway:     gateway,
		Locker:      newLocker(ctx, s.Redis),
		ChunkSize:   s.RAG.ChunkSize,
		Overlap:     s.RAG.ChunkOverlap,
		Concurrency: s.RAG.EmbedConcurrency,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	subject := s.RAG.SubjectDescription
	ragService, err := rag.NewService(rag.ServiceConfig{
		Classifier:          triage.NewClassifier(triageLLM, renderer, subject),
		Responder:           triage.NewStandardResponder(standardLLM, renderer, subject),
		Retriever:           retriever.New(queryEmbedder, gateway, s.RAG.TopK),
		Synthesizer:         answer.NewSynthesizer(answerLLM, renderer, subject, s.RAG.CannotAnswer),
		Indexer:             indexer,
		Publisher:           app.newPublisher(ctx, s.RabbitMQ),
		Collection:          s.RAG.Collection,
		SimilarityThreshold: s.RAG.SimilarityThreshold,
		TopK:                s.RAG.TopK,
		TurnTimeout:         config.TurnTimeout,
		StandardFallback:    s.StandardFallbackText(),
		SynthesisFallback:   s.RAG.SynthesisFallback,
		TriageApology:       s.RAG.TriageApology,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.RagService = ragService
	app.MCP = mcpServer.New(ragService, subject)
	app.logger.Info("Pipeline ready",
		"llm", s.LLM.Provider, "embedding", s.Embedding.Provider, "vectorStore", s.VectorStore.Backend, "collection", s.RAG.Collection)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("Error closing client", "error", err)
		}
	}
	a.closers = nil
}

func newProvider(s config.LLMSettings, model string, genAi *genai.Client) (llm.Provider, error) {
	switch s.Provider {
	case config.ProviderGemini:
		return gemini.New(genAi, model, s.Temperature, s.Timeout), nil
	case config.ProviderOpenAI:
		return openaiLLM.New(openaiLLM.NewOpenAIClient(s.APIKey, s.BaseURL, customHttpClient.GetClient()), model, s.Temperature, s.Timeout), nil
	case config.ProviderOllama:
		url := s.BaseURL
		if url == "" {
			url = config.OllamaServerURL
		}
		return ollamaLLM.New(url, model, s.Temperature, s.Timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}
}

// newEmbedders returns the embedder used for indexing and the one used for queries.
// Only gemini distinguishes the two.
func newEmbedders(s config.EmbeddingSettings, genAi *genai.Client) (embedding.Embedder, embedding.Embedder, error) {
	switch s.Provider {
	case config.ProviderGemini:
		opts := googleEmbedding.Options{Model: s.Model, Dimension: s.Dimension, Timeout: s.Timeout}
		docOpts, queryOpts := opts, opts
		docOpts.TaskType = googleEmbedding.TaskRetrievalDocument
		queryOpts.TaskType = googleEmbedding.TaskRetrievalQuery
		return googleEmbedding.New(genAi, docOpts), googleEmbedding.New(genAi, queryOpts), nil
	case config.ProviderOpenAI:
		e := openaiEmbedding.New(openaiLLM.NewOpenAIClient(s.APIKey, s.BaseURL, customHttpClient.GetClient()), s.Model, s.Dimension, s.Timeout)
		return e, e, nil
	case config.ProviderOllama:
		url := s.BaseURL
		if url == "" {
			url = config.OllamaServerURL
		}
		e, err := ollamaEmbedding.New(url, s.Model, s.Timeout)
		return e, e, err
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}

func (a *App) newGateway(ctx context.Context, s config.VectorStoreSettings, dimension int) (vectorDB.Gateway, error) {
	switch s.Backend {
	case config.VectorBackendQdrant:
		db, err := qdrantDB.New(qdrantDB.Options{
			Host:      s.Qdrant.Host,
			Port:      s.Qdrant.Port,
			APIKey:    s.Qdrant.APIKey,
			UseTLS:    s.Qdrant.UseTLS,
			PoolSize:  s.Qdrant.PoolSize,
			Dimension: dimension,
			Timeout:   s.Timeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return db, nil
	case config.VectorBackendPgvector:
		db, err := pgvectorDB.New(ctx, pgvectorDB.Options{DSN: s.Pg.DSN, Dimension: dimension, Debug: s.Pg.Debug, Timeout: s.Timeout})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return db, nil
	case config.VectorBackendChromem:
		return chromemDB.New(s.Chromem.Path, s.Chromem.Compress, dimension)
	default:
		return nil, errors.New("unknown vector store backend " + s.Backend)
	}
}

func newLocker(ctx context.Context, s config.RedisSettings) ingest.IndexLocker {
	if s.Enabled {
		if lock, ok := store.GetRedisIndexLock(ctx, redisStore.Options{Addr: s.Addr, Password: s.Password}); ok {
			return lock
		}
		logger_i.NewLogger("bootstrap").Warn("Redis offline, index lock is process local")
	}
	return store.InitInMemoryIndexLock()
}

func (a *App) newPublisher(ctx context.Context, s config.RabbitMQSettings) rag.TurnPublisher {
	if !s.Enabled {
		return turnEvents.Noop{}
	}
	p, err := turnEvents.Connect(ctx, s.URL, s.Queue)
	if err != nil {
		a.logger.Warn("RabbitMQ offline, turns will not be published", "error", err)
		return turnEvents.Noop{}
	}
	a.closers = append(a.closers, p)
	return p
}
