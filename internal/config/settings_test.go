package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.RAG.SimilarityThreshold != SimilarityThreshold || s.RAG.TopK != TopK {
		t.Errorf("retrieval defaults not applied: %+v", s.RAG)
	}
	if s.RAG.ChunkSize != 1000 || s.RAG.ChunkOverlap != 100 {
		t.Errorf("chunk defaults = %d/%d, want 1000/100", s.RAG.ChunkSize, s.RAG.ChunkOverlap)
	}
	if got := s.StandardFallbackText(); got != "I can only assist with questions about the Constitution of Mauritius." {
		t.Errorf("StandardFallbackText = %q", got)
	}
}

func TestLoad_Files(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "yaml",
			file: "config.yaml",
			body: `
rag:
  subjectDescription: the Road Traffic Act
  collection: traffic
  topK: 3
llm:
  provider: openai
  timeout: 12s
vectorStore:
  backend: chromem
`,
		},
		{
			name: "toml",
			file: "config.toml",
			body: `
[rag]
subject_description = "the Road Traffic Act"
collection = "traffic"
top_k = 3

[llm]
provider = "openai"
timeout = "12s"

[vector_store]
backend = "chromem"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(writeFile(t, tt.file, tt.body))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if s.RAG.SubjectDescription != "the Road Traffic Act" || s.RAG.Collection != "traffic" || s.RAG.TopK != 3 {
				t.Errorf("rag section not decoded: %+v", s.RAG)
			}
			if s.LLM.Provider != ProviderOpenAI || s.LLM.Timeout != 12*time.Second {
				t.Errorf("llm section not decoded: %+v", s.LLM)
			}
			if s.VectorStore.Backend != VectorBackendChromem {
				t.Errorf("backend = %q", s.VectorStore.Backend)
			}
			// untouched fields keep their defaults
			if s.RAG.ChunkSize != ChunkSize {
				t.Errorf("chunk size = %d, want default", s.RAG.ChunkSize)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "rag:\n  topK: 3\n")
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("RAG_SIMILARITY_THRESHOLD", "0.6")
	t.Setenv("GEMINI_API_KEY", "shared-key")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.RAG.TopK != 8 {
		t.Errorf("TopK = %d, want 8", s.RAG.TopK)
	}
	if s.RAG.SimilarityThreshold != 0.6 {
		t.Errorf("threshold = %v, want 0.6", s.RAG.SimilarityThreshold)
	}
	if s.LLM.APIKey != "shared-key" || s.Embedding.APIKey != "shared-key" {
		t.Errorf("shared key not applied: llm=%q embedding=%q", s.LLM.APIKey, s.Embedding.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(s *Settings) {}},
		{name: "overlap equal to size", mutate: func(s *Settings) { s.RAG.ChunkOverlap = s.RAG.ChunkSize }, wantErr: "chunk overlap"},
		{name: "negative overlap", mutate: func(s *Settings) { s.RAG.ChunkOverlap = -1 }, wantErr: "chunk overlap"},
		{name: "threshold above one", mutate: func(s *Settings) { s.RAG.SimilarityThreshold = 1.5 }, wantErr: "similarity threshold"},
		{name: "unknown backend", mutate: func(s *Settings) { s.VectorStore.Backend = "faiss" }, wantErr: "unknown backend"},
		{name: "unknown provider", mutate: func(s *Settings) { s.LLM.Provider = "bard" }, wantErr: "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
