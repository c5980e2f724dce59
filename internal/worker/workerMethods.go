package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	jobmodel "github.com/akolanti/DocQA/internal/domain/jobModel"
	"github.com/akolanti/DocQA/internal/metrics"
	"github.com/akolanti/DocQA/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	if job.ChatId != "" {
		ctxTrace = context.WithValue(ctxTrace, config.CHAT_ID_KEY, job.ChatId)
	}
	ctx, cancel := context.WithTimeout(ctxTrace, config.JobTimeout)
	defer cancel()
	log := logger.With("traceId", job.TraceId, "jobId", job.Id)
	log.Debug("Processing job", "type", job.JobType)

	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	if job.JobType == jobmodel.JobTypeIngest {
		job.CurrentStep = jobmodel.IngestProcessing
		job = ingestDocument(ctx, job)
	} else {
		job = processQuery(ctx, job, log)
		if job.Status != jobmodel.JobStatusError && job.ChatId != "" {
			if err := _jobService.MessageStore.AppendTurn(ctx, job.ChatId, job.JobPayload.Question, job.JobPayload.Answer); err != nil {
				log.Error("Failed to save chat history", "err", err)
			}
		}
	}

	job.EndTime = time.Now()
	if job.Status != jobmodel.JobStatusError {
		job.Status = jobmodel.JobStatusComplete
	}
	// the final state is saved even when the job ran out of time
	saveJobState(context.WithoutCancel(ctx), job, job.Status)
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()
}

func ingestDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	return _ragService.IngestDocument(ctx, job)
}

func processQuery(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = jobmodel.HistoryCall
	history, err := _jobService.MessageStore.GetMessageHistory(ctx, job.ChatId, _jobService.HistoryWindow)
	if err != nil {
		// a turn without history is still worth answering
		log.Error("Failed to get message history", "err", err)
	}
	return _ragService.ProcessRequest(ctx, job, history)
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job state", "jobId", job.Id, "err", err)
	}
}
