package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	// conversation states
	UserQueryInit      InternalStatus = "Init"
	Triaging           InternalStatus = "Triaging"
	Retrieving         InternalStatus = "Retrieving"
	Synthesizing       InternalStatus = "Synthesizing"
	StandardResponding InternalStatus = "StandardResponding"
	HistoryCall        InternalStatus = "History"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	Question string                      `json:"question,omitempty"`
	Answer   string                      `json:"answer,omitempty"`
	Sources  []string                    `json:"sources,omitempty"`
	Decision commonModels.TriageDecision `json:"decision,omitempty"`

	IngestFileName string `json:"ingest_file_name,omitempty"`
	IngestURL      string `json:"ingest_url,omitempty"`
	Collection     string `json:"collection,omitempty"`
	Inserted       int    `json:"inserted,omitempty"`
	Skipped        int    `json:"skipped,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

type MessageStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	InitNewChat(ctx context.Context, id string) error
	// AppendTurn stores the question and answer of a finished turn, oldest first.
	AppendTurn(ctx context.Context, id string, question string, answer string) error
	GetMessageHistory(ctx context.Context, chatId string, window int) ([]commonModels.ConversationMessage, error)
}
