package rag_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/jobModel"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag"
)

const (
	standardFallback  = "I can only assist with questions about the Constitution of Mauritius."
	synthesisFallback = "I could not generate a response."
	triageApology     = "Sorry, something went wrong while processing your question."
)

type mocks struct {
	classifier  *MockClassifier
	responder   *MockResponder
	retriever   *MockRetriever
	synthesizer *MockSynthesizer
	indexer     *MockIndexer
	publisher   *MockPublisher
}

func newMocks() *mocks {
	return &mocks{
		classifier:  &MockClassifier{},
		responder:   &MockResponder{},
		retriever:   &MockRetriever{},
		synthesizer: &MockSynthesizer{},
		indexer:     &MockIndexer{},
		publisher:   &MockPublisher{},
	}
}

func (m *mocks) service(t *testing.T) rag.Service {
	t.Helper()
	s, err := rag.NewService(rag.ServiceConfig{
		Classifier:          m.classifier,
		Responder:           m.responder,
		Retriever:           m.retriever,
		Synthesizer:         m.synthesizer,
		Indexer:             m.indexer,
		Publisher:           m.publisher,
		Collection:          "constitution",
		SimilarityThreshold: 0.75,
		TopK:                5,
		StandardFallback:    standardFallback,
		SynthesisFallback:   synthesisFallback,
		TriageApology:       triageApology,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return s
}

// classifyByKeyword stands in for the model: greetings decline, everything else searches.
func classifyByKeyword(ctx context.Context, question string) (commonModels.TriageDecision, error) {
	if strings.HasPrefix(strings.ToLower(question), "hello") {
		return commonModels.GreetOrDecline, nil
	}
	return commonModels.SearchDocument, nil
}

func testContext() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func TestAnswer_TriageBranching(t *testing.T) {
	tests := []struct {
		name          string
		question      string
		wantRetrieves int
		wantAnswer    string
	}{
		{name: "greeting skips retrieval", question: "Hello!", wantRetrieves: 0, wantAnswer: "Hello! Ask me about the Constitution."},
		{name: "document question retrieves", question: "What does the Constitution say about voting rights?", wantRetrieves: 1, wantAnswer: "mocked answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.classifier.OnClassify = classifyByKeyword
			s := m.service(t)

			got, err := s.Answer(testContext(), tt.question, nil)
			if err != nil {
				t.Fatalf("Answer failed: %v", err)
			}
			if got != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", got, tt.wantAnswer)
			}
			if m.retriever.Calls != tt.wantRetrieves {
				t.Errorf("Retrieve called %d times, want %d", m.retriever.Calls, tt.wantRetrieves)
			}
		})
	}
}

func TestAnswer_FailSoft(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		setupMocks func(m *mocks)
		want       string
	}{
		{
			name:     "synthesis error",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.synthesizer.OnSynthesize = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) (string, error) {
					return "", errors.New("provider down")
				}
			},
			want: synthesisFallback,
		},
		{
			name:     "synthesis empty output",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.synthesizer.OnSynthesize = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) (string, error) {
					return "", nil
				}
			},
			want: synthesisFallback,
		},
		{
			name:     "standard response error",
			question: "Hello!",
			setupMocks: func(m *mocks) {
				m.responder.OnRespond = func(ctx context.Context, q string) (string, error) {
					return "", errors.New("timeout")
				}
			},
			want: standardFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.classifier.OnClassify = classifyByKeyword
			tt.setupMocks(m)

			got, err := m.service(t).Answer(testContext(), tt.question, nil)
			if err != nil {
				t.Fatalf("fail-soft path returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("answer = %q, want %q", got, tt.want)
			}
			if len(m.publisher.Turns) != 1 || !m.publisher.Turns[0].Fallback {
				t.Errorf("expected one published turn flagged as fallback, got %+v", m.publisher.Turns)
			}
		})
	}
}

func TestAnswer_ErrorsPropagate(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(m *mocks)
		wantErr    error
	}{
		{
			name: "triage",
			setupMocks: func(m *mocks) {
				m.classifier.OnClassify = func(ctx context.Context, q string) (commonModels.TriageDecision, error) {
					return "", ragErrors.New(ragErrors.ErrTriageFailed, "test", errors.New("503"))
				}
			},
			wantErr: ragErrors.ErrTriageFailed,
		},
		{
			name: "retrieval",
			setupMocks: func(m *mocks) {
				m.retriever.OnRetrieve = func(ctx context.Context, q, c string, th float32, l int) ([]string, error) {
					return nil, ragErrors.New(ragErrors.ErrRetrievalFailed, "test", errors.New("quota"))
				}
			},
			wantErr: ragErrors.ErrRetrievalFailed,
		},
		{
			name: "store",
			setupMocks: func(m *mocks) {
				m.retriever.OnRetrieve = func(ctx context.Context, q, c string, th float32, l int) ([]string, error) {
					return nil, ragErrors.New(ragErrors.ErrStoreQuery, "test", errors.New("timeout"))
				}
			},
			wantErr: ragErrors.ErrStoreQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			tt.setupMocks(m)

			_, err := m.service(t).Answer(testContext(), "Who can vote?", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(m.publisher.Turns) != 0 {
				t.Error("failed turns must not be published")
			}
		})
	}
}

func TestAnswer_EmptyContextStillSynthesizes(t *testing.T) {
	m := newMocks()
	m.retriever.OnRetrieve = func(ctx context.Context, q, c string, th float32, l int) ([]string, error) {
		return []string{}, nil
	}
	synthesized := false
	m.synthesizer.OnSynthesize = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) (string, error) {
		synthesized = true
		if len(c) != 0 {
			t.Errorf("contexts = %v, want empty", c)
		}
		return "I cannot answer based on the provided information.", nil
	}

	got, err := m.service(t).Answer(testContext(), "What is the capital of France?", nil)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !synthesized {
		t.Error("synthesizer not called for an empty context")
	}
	if got != "I cannot answer based on the provided information." {
		t.Errorf("answer = %q", got)
	}
}

func TestAnswer_QueryOptions(t *testing.T) {
	m := newMocks()
	var gotCollection string
	var gotThreshold float32
	var gotLimit int
	m.retriever.OnRetrieve = func(ctx context.Context, q, c string, th float32, l int) ([]string, error) {
		gotCollection, gotThreshold, gotLimit = c, th, l
		return nil, nil
	}
	s := m.service(t)

	if _, err := s.Answer(testContext(), "Who can vote?", nil); err != nil {
		t.Fatal(err)
	}
	if gotCollection != "constitution" || gotThreshold != 0.75 || gotLimit != 5 {
		t.Errorf("defaults = %q/%v/%d", gotCollection, gotThreshold, gotLimit)
	}

	if _, err := s.Answer(testContext(), "Who can vote?", nil, rag.WithThreshold(0.5), rag.WithTopK(2), rag.WithCollection("traffic")); err != nil {
		t.Fatal(err)
	}
	if gotCollection != "traffic" || gotThreshold != 0.5 || gotLimit != 2 {
		t.Errorf("overrides = %q/%v/%d", gotCollection, gotThreshold, gotLimit)
	}
}

func collect(t *testing.T, seq iter.Seq2[string, error]) ([]string, error) {
	t.Helper()
	var out []string
	for fragment, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, fragment)
	}
	return out, nil
}

func TestAnswerStream(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		setupMocks func(m *mocks)
		want       []string
		wantErr    error
	}{
		{
			name:     "synthesis fragments",
			question: "Who can vote?",
			want:     []string{"mocked ", "answer"},
		},
		{
			name:     "standard fragments",
			question: "Hello!",
			want:     []string{"Hello! ", "Ask me about the Constitution."},
		},
		{
			name:     "error before output uses fallback",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.synthesizer.OnSynthesizeStream = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) iter.Seq2[string, error] {
					return func(yield func(string, error) bool) { yield("", errors.New("stream reset")) }
				}
			},
			want: []string{synthesisFallback},
		},
		{
			name:     "error after output ends quietly",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.synthesizer.OnSynthesizeStream = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) iter.Seq2[string, error] {
					return func(yield func(string, error) bool) {
						if !yield("Every citizen", nil) {
							return
						}
						yield("", errors.New("stream reset"))
					}
				}
			},
			want: []string{"Every citizen"},
		},
		{
			name:     "empty standard stream uses fallback",
			question: "Hello!",
			setupMocks: func(m *mocks) {
				m.responder.OnRespondStream = func(ctx context.Context, q string) iter.Seq2[string, error] {
					return fragments()
				}
			},
			want: []string{standardFallback},
		},
		{
			name:     "whitespace only stream uses fallback",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.synthesizer.OnSynthesizeStream = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) iter.Seq2[string, error] {
					return fragments(" ", "\n", "\t")
				}
			},
			want: []string{synthesisFallback},
		},
		{
			name:     "leading blank fragments join the first real one",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.synthesizer.OnSynthesizeStream = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) iter.Seq2[string, error] {
					return fragments("\n", "Every", " ", "citizen")
				}
			},
			want: []string{"\nEvery", " ", "citizen"},
		},
		{
			name:     "triage error",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.classifier.OnClassify = func(ctx context.Context, q string) (commonModels.TriageDecision, error) {
					return "", ragErrors.New(ragErrors.ErrTriageFailed, "test", nil)
				}
			},
			wantErr: ragErrors.ErrTriageFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.classifier.OnClassify = classifyByKeyword
			if tt.setupMocks != nil {
				tt.setupMocks(m)
			}

			got, err := collect(t, m.service(t).AnswerStream(testContext(), tt.question, nil))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("fragments = %q, want %q", got, tt.want)
			}
			if len(m.publisher.Turns) != 1 || !m.publisher.Turns[0].Streamed {
				t.Errorf("expected one streamed turn, got %+v", m.publisher.Turns)
			}
		})
	}
}

func TestAnswerStream_ConsumerStops(t *testing.T) {
	m := newMocks()
	produced := 0
	m.synthesizer.OnSynthesizeStream = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for i := 0; i < 100; i++ {
				produced++
				if !yield("tok ", nil) {
					return
				}
			}
		}
	}

	seen := 0
	for _, err := range m.service(t).AnswerStream(testContext(), "Who can vote?", nil) {
		if err != nil {
			t.Fatal(err)
		}
		seen++
		if seen == 3 {
			break
		}
	}
	if produced != 3 {
		t.Errorf("provider produced %d fragments after the consumer stopped at 3", produced)
	}
}

func TestProcessRequest_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		question       string
		setupMocks     func(m *mocks)
		expectedStep   jobModel.InternalStatus
		expectedStatus jobModel.JobStatus
		expectedAnswer string
		expectedErrMsg string
		expectedSource int
	}{
		{
			name:           "Success_Document_Question",
			question:       "Who can vote?",
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "mocked answer",
			expectedSource: 1,
		},
		{
			name:           "Success_Greeting",
			question:       "Hello!",
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "Hello! Ask me about the Constitution.",
		},
		{
			name:     "Failure_Triage",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.classifier.OnClassify = func(ctx context.Context, q string) (commonModels.TriageDecision, error) {
					return "", ragErrors.New(ragErrors.ErrTriageFailed, "test", nil)
				}
			},
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedErrMsg: triageApology,
		},
		{
			name:     "Failure_Retrieval",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.retriever.OnRetrieve = func(ctx context.Context, q, c string, th float32, l int) ([]string, error) {
					return nil, ragErrors.New(ragErrors.ErrStoreQuery, "test", errors.New("db timeout"))
				}
			},
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedErrMsg: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.classifier.OnClassify = classifyByKeyword
			if tt.setupMocks != nil {
				tt.setupMocks(m)
			}

			job := jobModel.Job{
				Id:         "test-job",
				Status:     jobModel.JobStatusQueued,
				JobPayload: jobModel.JobPayload{Question: tt.question},
			}
			result := m.service(t).ProcessRequest(testContext(), job, nil)

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if result.CurrentStep != tt.expectedStep {
				t.Errorf("Step got %v, want %v", result.CurrentStep, tt.expectedStep)
			}
			if tt.expectedAnswer != "" && result.JobPayload.Answer != tt.expectedAnswer {
				t.Errorf("Answer got %s, want %s", result.JobPayload.Answer, tt.expectedAnswer)
			}
			if len(result.JobPayload.Sources) != tt.expectedSource {
				t.Errorf("Sources got %d, want %d", len(result.JobPayload.Sources), tt.expectedSource)
			}
			if tt.expectedErrMsg != "" {
				if result.Error.Code != http.StatusInternalServerError || result.Error.Message != tt.expectedErrMsg {
					t.Errorf("Error got %+v, want message %q", result.Error, tt.expectedErrMsg)
				}
			}
		})
	}
}

func TestIngestDocument(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "constitution.txt")
		if err := os.WriteFile(path, []byte("Section 1. The State."), 0o600); err != nil {
			t.Fatal(err)
		}

		m := newMocks()
		var gotText, gotCollection string
		m.indexer.OnReindex = func(ctx context.Context, text, collection string) (commonModels.ReindexResult, error) {
			gotText, gotCollection = text, collection
			return commonModels.ReindexResult{Inserted: 3, Skipped: 1}, nil
		}

		job := jobModel.Job{Id: "ingest-job", JobType: jobModel.JobTypeIngest, JobPayload: jobModel.JobPayload{IngestURL: path}}
		result := m.service(t).IngestDocument(testContext(), job)

		if result.Status == jobModel.JobStatusError {
			t.Fatalf("ingest failed: %+v", result.Error)
		}
		if gotText != "Section 1. The State." || gotCollection != "constitution" {
			t.Errorf("indexer got %q into %q", gotText, gotCollection)
		}
		if result.JobPayload.Inserted != 3 || result.JobPayload.Skipped != 1 {
			t.Errorf("payload = %+v", result.JobPayload)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("uploaded file should be removed")
		}
	})

	t.Run("nothing embeddable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "constitution.txt")
		if err := os.WriteFile(path, []byte("text"), 0o600); err != nil {
			t.Fatal(err)
		}
		m := newMocks()
		m.indexer.OnReindex = func(ctx context.Context, text, collection string) (commonModels.ReindexResult, error) {
			return commonModels.ReindexResult{Skipped: 1}, ragErrors.New(ragErrors.ErrNoEmbeddableContent, "test", nil)
		}

		result := m.service(t).IngestDocument(testContext(), jobModel.Job{JobPayload: jobModel.JobPayload{IngestURL: path}})
		if result.Status != jobModel.JobStatusError || result.Error.Retry {
			t.Errorf("got %+v, want a non-retryable error", result.Error)
		}
	})

	t.Run("unsupported file", func(t *testing.T) {
		m := newMocks()
		result := m.service(t).IngestDocument(testContext(), jobModel.Job{JobPayload: jobModel.JobPayload{IngestURL: "scan.png"}})
		if result.Status != jobModel.JobStatusError {
			t.Error("expected an error status")
		}
	})
}

func TestAnswer_BlankOutputUsesFallback(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		setupMocks func(m *mocks)
		want       string
	}{
		{
			name:     "blank synthesis",
			question: "Who can vote?",
			setupMocks: func(m *mocks) {
				m.synthesizer.OnSynthesize = func(ctx context.Context, q string, h []commonModels.ConversationMessage, c []string) (string, error) {
					return " \n\t ", nil
				}
			},
			want: synthesisFallback,
		},
		{
			name:     "blank standard response",
			question: "Hello!",
			setupMocks: func(m *mocks) {
				m.responder.OnRespond = func(ctx context.Context, q string) (string, error) {
					return "   ", nil
				}
			},
			want: standardFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.classifier.OnClassify = classifyByKeyword
			tt.setupMocks(m)

			got, err := m.service(t).Answer(testContext(), tt.question, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("answer = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewService_DefaultStandardFallback(t *testing.T) {
	m := newMocks()
	m.classifier.OnClassify = classifyByKeyword
	m.responder.OnRespond = func(ctx context.Context, q string) (string, error) {
		return "", errors.New("model unavailable")
	}

	s, err := rag.NewService(rag.ServiceConfig{
		Classifier:  m.classifier,
		Responder:   m.responder,
		Retriever:   m.retriever,
		Synthesizer: m.synthesizer,
		Indexer:     m.indexer,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	got, err := s.Answer(testContext(), "Hello!", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := fmt.Sprintf(config.StandardFallback, config.SubjectDescription)
	if got != want {
		t.Errorf("answer = %q, want %q", got, want)
	}
}
