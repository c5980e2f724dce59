package api

import (
	"time"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id" example:"chat_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Decision string   `json:"decision,omitempty" example:"search_document"`
	Sources  []string `json:"sources"`
}

type IngestResponse struct {
	DocumentName string `json:"document_name"`
	Collection   string `json:"collection"`
	Inserted     int    `json:"inserted"`
	Skipped      int    `json:"skipped"`
}

type Result struct {
	Status              string          `json:"status"`
	CurrentStep         string          `json:"current_step,omitempty" example:"Retrieving"`
	RAGExternalResponse *RAGResponse    `json:"rag_response,omitempty"`
	IngestResponse      *IngestResponse `json:"ingest_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	ChatId    string `json:"chat_id,omitempty"`
	StatusURL string `json:"status_url"`
}

type AskResponse struct {
	Answer string `json:"answer" example:"Every citizen aged 18 or over may be registered as an elector."`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required" `
	ChatID  string `json:"chatID,omitempty" `
}

type AskRequest struct {
	Question string                             `json:"question" validate:"required" example:"What does the Constitution say about voting rights?"`
	History  []commonModels.ConversationMessage `json:"history,omitempty"`
	// optional per-query retrieval overrides
	Threshold  *float32 `json:"threshold,omitempty" example:"0.75"`
	TopK       int      `json:"top_k,omitempty" example:"5"`
	Collection string   `json:"collection,omitempty"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}

type IngestDocumentRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
	Collection   string `json:"collection,omitempty"`
}
