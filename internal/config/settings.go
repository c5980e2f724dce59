package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Server      ServerSettings      `yaml:"server" toml:"server"`
	Log         LogSettings         `yaml:"log" toml:"log"`
	RAG         RAGSettings         `yaml:"rag" toml:"rag"`
	LLM         LLMSettings         `yaml:"llm" toml:"llm"`
	Embedding   EmbeddingSettings   `yaml:"embedding" toml:"embedding"`
	VectorStore VectorStoreSettings `yaml:"vectorStore" toml:"vector_store"`
	Redis       RedisSettings       `yaml:"redis" toml:"redis"`
	RabbitMQ    RabbitMQSettings    `yaml:"rabbitmq" toml:"rabbitmq"`
}

type ServerSettings struct {
	ListenAddr     string  `yaml:"listenAddr" toml:"listen_addr"`
	AuthToken      string  `yaml:"authToken" toml:"auth_token"`
	NoAuthBypass   bool    `yaml:"noAuthBypass" toml:"no_auth_bypass"`
	RateLimit      float64 `yaml:"rateLimit" toml:"rate_limit"`
	RateLimitBurst int     `yaml:"rateLimitBurst" toml:"rate_limit_burst"`
	UploadDir      string  `yaml:"uploadDir" toml:"upload_dir"`
}

type LogSettings struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

type RAGSettings struct {
	SubjectDescription  string            `yaml:"subjectDescription" toml:"subject_description"`
	Collection          string            `yaml:"collection" toml:"collection"`
	SimilarityThreshold float32           `yaml:"similarityThreshold" toml:"similarity_threshold"`
	TopK                int               `yaml:"topK" toml:"top_k"`
	ChunkSize           int               `yaml:"chunkSize" toml:"chunk_size"`
	ChunkOverlap        int               `yaml:"chunkOverlap" toml:"chunk_overlap"`
	EmbedConcurrency    int               `yaml:"embedConcurrency" toml:"embed_concurrency"`
	HistoryWindow       int               `yaml:"historyWindow" toml:"history_window"`
	StandardFallback    string            `yaml:"standardFallback" toml:"standard_fallback"`
	SynthesisFallback   string            `yaml:"synthesisFallback" toml:"synthesis_fallback"`
	CannotAnswer        string            `yaml:"cannotAnswer" toml:"cannot_answer"`
	TriageApology       string            `yaml:"triageApology" toml:"triage_apology"`
	Prompts             map[string]string `yaml:"prompts" toml:"prompts"`
}

type LLMSettings struct {
	Provider      string        `yaml:"provider" toml:"provider"`
	APIKey        string        `yaml:"apiKey" toml:"api_key"`
	BaseURL       string        `yaml:"baseURL" toml:"base_url"`
	TriageModel   string        `yaml:"triageModel" toml:"triage_model"`
	StandardModel string        `yaml:"standardModel" toml:"standard_model"`
	AnswerModel   string        `yaml:"answerModel" toml:"answer_model"`
	Temperature   float32       `yaml:"temperature" toml:"temperature"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
}

type EmbeddingSettings struct {
	Provider  string        `yaml:"provider" toml:"provider"`
	Model     string        `yaml:"model" toml:"model"`
	Dimension int32         `yaml:"dimension" toml:"dimension"`
	APIKey    string        `yaml:"apiKey" toml:"api_key"`
	BaseURL   string        `yaml:"baseURL" toml:"base_url"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
}

type VectorStoreSettings struct {
	Backend string          `yaml:"backend" toml:"backend"`
	Timeout time.Duration   `yaml:"timeout" toml:"timeout"`
	Qdrant  QdrantSettings  `yaml:"qdrant" toml:"qdrant"`
	Pg      PgSettings      `yaml:"pgvector" toml:"pgvector"`
	Chromem ChromemSettings `yaml:"chromem" toml:"chromem"`
}

type QdrantSettings struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	APIKey   string `yaml:"apiKey" toml:"api_key"`
	UseTLS   bool   `yaml:"useTLS" toml:"use_tls"`
	PoolSize int    `yaml:"poolSize" toml:"pool_size"`
}

type PgSettings struct {
	DSN   string `yaml:"dsn" toml:"dsn"`
	Debug bool   `yaml:"debug" toml:"debug"`
}

type ChromemSettings struct {
	Path     string `yaml:"path" toml:"path"`
	Compress bool   `yaml:"compress" toml:"compress"`
}

type RedisSettings struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
}

type RabbitMQSettings struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	URL     string `yaml:"url" toml:"url"`
	Queue   string `yaml:"queue" toml:"queue"`
}

// Load builds Settings from defaults, an optional .env file, an optional config file
// (yaml or toml, picked by extension) and finally environment variables.
func Load(path string) (*Settings, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	s := Defaults()

	if path == "" {
		path = getEnv("DOCQA_CONFIG", DefaultConfigFile)
	}
	if _, err := os.Stat(path); err == nil {
		if err := decodeFile(path, s); err != nil {
			return nil, err
		}
	}

	overrideByEnv(s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func Defaults() *Settings {
	return &Settings{
		Server: ServerSettings{
			ListenAddr:     ServerListenAddr,
			RateLimit:      RATE_LIMIT_PER_SECOND,
			RateLimitBurst: BURST_RATE_LIMIT_PER_SECOND,
			UploadDir:      "temporary_data",
		},
		Log: LogSettings{Level: "debug", JSON: IS_PROD},
		RAG: RAGSettings{
			SubjectDescription:  SubjectDescription,
			Collection:          DefaultCollection,
			SimilarityThreshold: SimilarityThreshold,
			TopK:                TopK,
			ChunkSize:           ChunkSize,
			ChunkOverlap:        ChunkOverlap,
			EmbedConcurrency:    EmbedConcurrency,
			HistoryWindow:       HistoryWindow,
			SynthesisFallback:   SynthesisFallback,
			CannotAnswer:        CannotAnswer,
			TriageApology:       TriageApology,
		},
		LLM: LLMSettings{
			Provider:      ProviderGemini,
			TriageModel:   GeminiModelName,
			StandardModel: GeminiModelName,
			AnswerModel:   GeminiModelName,
			Temperature:   ModelTemperature,
			Timeout:       LLMCallTimeout,
		},
		Embedding: EmbeddingSettings{
			Provider:  ProviderGemini,
			Model:     GoogleEmbeddingModel,
			Dimension: EmbeddingDimension,
			Timeout:   EmbeddingTimeout,
		},
		VectorStore: VectorStoreSettings{
			Backend: VectorBackendQdrant,
			Timeout: VectorStoreCallTimeout,
			Qdrant: QdrantSettings{
				Host:     QdrantHost,
				Port:     QdrantGrpcPort,
				UseTLS:   QdrantUseTLS,
				PoolSize: QdrantPoolSize,
			},
			Pg: PgSettings{DSN: PgvectorDSN},
		},
		Redis:    RedisSettings{Enabled: true, Addr: RedisAddr},
		RabbitMQ: RabbitMQSettings{URL: RabbitMQURL, Queue: RabbitMQTurnQueue},
	}
}

// StandardFallbackText is the configured decline text, or the default built from the subject.
func (s *Settings) StandardFallbackText() string {
	if s.RAG.StandardFallback != "" {
		return s.RAG.StandardFallback
	}
	return fmt.Sprintf(StandardFallback, s.RAG.SubjectDescription)
}

func (s *Settings) Validate() error {
	var errs []error
	if s.RAG.ChunkSize <= 0 || s.RAG.ChunkOverlap < 0 || s.RAG.ChunkOverlap >= s.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag: chunk overlap %d must be in [0, chunk size %d)", s.RAG.ChunkOverlap, s.RAG.ChunkSize))
	}
	if s.RAG.SimilarityThreshold < 0 || s.RAG.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("rag: similarity threshold %v outside [0,1]", s.RAG.SimilarityThreshold))
	}
	if s.RAG.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag: topK must be positive, got %d", s.RAG.TopK))
	}
	if s.RAG.Collection == "" {
		errs = append(errs, errors.New("rag: collection is required"))
	}
	if !oneOf(s.LLM.Provider, ProviderGemini, ProviderOpenAI, ProviderOllama) {
		errs = append(errs, fmt.Errorf("llm: unknown provider %q", s.LLM.Provider))
	}
	if !oneOf(s.Embedding.Provider, ProviderGemini, ProviderOpenAI, ProviderOllama) {
		errs = append(errs, fmt.Errorf("embedding: unknown provider %q", s.Embedding.Provider))
	}
	if !oneOf(s.VectorStore.Backend, VectorBackendQdrant, VectorBackendPgvector, VectorBackendChromem) {
		errs = append(errs, fmt.Errorf("vectorStore: unknown backend %q", s.VectorStore.Backend))
	}
	return errors.Join(errs...)
}

func decodeFile(path string, s *Settings) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, s); err != nil {
			return fmt.Errorf("decode config file failed: %w", err)
		}
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file failed: %w", err)
		}
		if err := yaml.Unmarshal(raw, s); err != nil {
			return fmt.Errorf("decode config file failed: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file %q", path)
	}
	return nil
}

func overrideByEnv(s *Settings) {
	s.Server.ListenAddr = getEnv("LISTEN_ADDR", s.Server.ListenAddr)
	s.Server.AuthToken = getEnv("AUTH_TOKEN", s.Server.AuthToken)
	s.Server.NoAuthBypass = getEnvAsBool("NO_AUTH_BYPASS", s.Server.NoAuthBypass)
	s.Server.RateLimit = getEnvAsFloat("RATE_LIMIT", s.Server.RateLimit)
	s.Server.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", s.Server.RateLimitBurst)
	s.Server.UploadDir = getEnv("UPLOAD_DIR", s.Server.UploadDir)

	s.Log.Level = getEnv("LOG_LEVEL", s.Log.Level)
	s.Log.JSON = getEnvAsBool("LOG_JSON", s.Log.JSON)

	s.RAG.SubjectDescription = getEnv("RAG_SUBJECT", s.RAG.SubjectDescription)
	s.RAG.Collection = getEnv("RAG_COLLECTION", s.RAG.Collection)
	s.RAG.SimilarityThreshold = float32(getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", float64(s.RAG.SimilarityThreshold)))
	s.RAG.TopK = getEnvAsInt("RAG_TOP_K", s.RAG.TopK)
	s.RAG.ChunkSize = getEnvAsInt("RAG_CHUNK_SIZE", s.RAG.ChunkSize)
	s.RAG.ChunkOverlap = getEnvAsInt("RAG_CHUNK_OVERLAP", s.RAG.ChunkOverlap)
	s.RAG.EmbedConcurrency = getEnvAsInt("RAG_EMBED_CONCURRENCY", s.RAG.EmbedConcurrency)
	s.RAG.HistoryWindow = getEnvAsInt("RAG_HISTORY_WINDOW", s.RAG.HistoryWindow)

	s.LLM.Provider = getEnv("LLM_PROVIDER", s.LLM.Provider)
	s.LLM.APIKey = getEnv("LLM_API_KEY", s.LLM.APIKey)
	s.LLM.BaseURL = getEnv("LLM_BASE_URL", s.LLM.BaseURL)
	s.LLM.TriageModel = getEnv("LLM_TRIAGE_MODEL", s.LLM.TriageModel)
	s.LLM.StandardModel = getEnv("LLM_STANDARD_MODEL", s.LLM.StandardModel)
	s.LLM.AnswerModel = getEnv("LLM_ANSWER_MODEL", s.LLM.AnswerModel)
	s.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", s.LLM.Timeout)

	s.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", s.Embedding.Provider)
	s.Embedding.Model = getEnv("EMBEDDING_MODEL", s.Embedding.Model)
	s.Embedding.Dimension = int32(getEnvAsInt("EMBEDDING_DIMENSION", int(s.Embedding.Dimension)))
	s.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", s.Embedding.APIKey)
	s.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", s.Embedding.BaseURL)
	s.Embedding.Timeout = getEnvAsDuration("EMBEDDING_TIMEOUT", s.Embedding.Timeout)

	// the google key is shared by llm and embeddings unless set separately
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if s.LLM.APIKey == "" {
			s.LLM.APIKey = key
		}
		if s.Embedding.APIKey == "" {
			s.Embedding.APIKey = key
		}
	}

	s.VectorStore.Backend = getEnv("VECTOR_BACKEND", s.VectorStore.Backend)
	s.VectorStore.Qdrant.Host = getEnv("QDRANT_HOST", s.VectorStore.Qdrant.Host)
	s.VectorStore.Qdrant.Port = getEnvAsInt("QDRANT_PORT", s.VectorStore.Qdrant.Port)
	s.VectorStore.Qdrant.APIKey = getEnv("QDRANT_API_KEY", s.VectorStore.Qdrant.APIKey)
	s.VectorStore.Qdrant.UseTLS = getEnvAsBool("QDRANT_USE_TLS", s.VectorStore.Qdrant.UseTLS)
	s.VectorStore.Pg.DSN = getEnv("PGVECTOR_DSN", s.VectorStore.Pg.DSN)
	s.VectorStore.Pg.Debug = getEnvAsBool("PGVECTOR_DEBUG", s.VectorStore.Pg.Debug)
	s.VectorStore.Chromem.Path = getEnv("CHROMEM_PATH", s.VectorStore.Chromem.Path)

	s.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", s.Redis.Enabled)
	s.Redis.Addr = getEnv("REDIS_ADDR", s.Redis.Addr)
	s.Redis.Password = getEnv("REDIS_PASSWORD", s.Redis.Password)

	s.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", s.RabbitMQ.Enabled)
	s.RabbitMQ.URL = getEnv("RABBITMQ_URL", s.RabbitMQ.URL)
	s.RabbitMQ.Queue = getEnv("RABBITMQ_TURN_QUEUE", s.RabbitMQ.Queue)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
