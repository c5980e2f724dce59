package adapter

import (
	"testing"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/jobModel"
)

func TestToAPIResponse(t *testing.T) {
	tests := []struct {
		name       string
		job        jobModel.Job
		wantRAG    bool
		wantIngest bool
		wantError  bool
	}{
		{
			name: "answered query",
			job: jobModel.Job{
				Id: "j1", JobType: jobModel.JobTypeQuery, Status: jobModel.JobStatusComplete,
				JobPayload: jobModel.JobPayload{Question: "Who can vote?", Answer: "Citizens.", Decision: commonModels.SearchDocument},
			},
			wantRAG: true,
		},
		{
			name:    "queued query",
			job:     jobModel.Job{Id: "j2", JobType: jobModel.JobTypeQuery, Status: jobModel.JobStatusQueued},
			wantRAG: false,
		},
		{
			name: "finished ingest",
			job: jobModel.Job{
				Id: "j3", JobType: jobModel.JobTypeIngest, Status: jobModel.JobStatusComplete,
				JobPayload: jobModel.JobPayload{IngestFileName: "constitution.pdf", Inserted: 40, Skipped: 2},
			},
			wantIngest: true,
		},
		{
			name: "failed job",
			job: jobModel.Job{
				Id: "j4", JobType: jobModel.JobTypeQuery, Status: jobModel.JobStatusError,
				Error: jobModel.JobError{Code: 500, Message: "Internal Server Error", Retry: true},
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIResponse(tt.job)
			if (got.Result.RAGExternalResponse != nil) != tt.wantRAG {
				t.Errorf("rag response present = %v, want %v", got.Result.RAGExternalResponse != nil, tt.wantRAG)
			}
			if (got.Result.IngestResponse != nil) != tt.wantIngest {
				t.Errorf("ingest response present = %v, want %v", got.Result.IngestResponse != nil, tt.wantIngest)
			}
			if (got.Error != nil) != tt.wantError {
				t.Errorf("error present = %v, want %v", got.Error != nil, tt.wantError)
			}
			if got.Result.Status != string(tt.job.Status) {
				t.Errorf("status = %q", got.Result.Status)
			}
		})
	}
}

func TestToRAGExternalStatus_CarriesDecision(t *testing.T) {
	got := ToRAGExternalStatus(jobModel.JobPayload{Answer: "Hello!", Decision: commonModels.GreetOrDecline})
	if got == nil || got.Decision != "greet_or_decline" {
		t.Errorf("got %+v", got)
	}
}
