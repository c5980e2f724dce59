package commonModels

import "time"

// DocumentChunk is a window of the source text. Start and End are rune offsets.
type DocumentChunk struct {
	Index      int    `json:"index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

type EmbeddedChunk struct {
	DocumentChunk
	Embedding []float32 `json:"embedding"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type ConversationMessage struct {
	Role    string `json:"role" example:"user"`
	Content string `json:"content" example:"What does section 1 say?"`
}

type TriageDecision string

const (
	SearchDocument TriageDecision = "search_document"
	GreetOrDecline TriageDecision = "greet_or_decline"
)

type ReindexResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// TurnRecord is what gets published once a question has been answered.
type TurnRecord struct {
	TraceId      string         `json:"trace_id"`
	ChatId       string         `json:"chat_id,omitempty"`
	Question     string         `json:"question"`
	Decision     TriageDecision `json:"decision"`
	ContextCount int            `json:"context_count"`
	Answer       string         `json:"answer"`
	Fallback     bool           `json:"fallback"`
	Streamed     bool           `json:"streamed"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var ERR DocType = "ERROR"
