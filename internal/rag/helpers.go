package rag

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/domain/jobModel"
	"github.com/akolanti/DocQA/internal/metrics"
)

type turnResult struct {
	decision commonModels.TriageDecision
	contexts []string
	answer   string
	fallback bool
}

// runTurn walks Triaging -> (Retrieving -> Synthesizing | StandardResponding).
// onStep, when set, is told about every state change.
func (s *service) runTurn(ctx context.Context, question string, history []commonModels.ConversationMessage, q query, onStep func(jobModel.InternalStatus)) (turnResult, error) {
	if onStep == nil {
		onStep = func(jobModel.InternalStatus) {}
	}
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()

	var res turnResult

	onStep(jobModel.Triaging)
	decision, err := s.executeTriageStep(ctx, question)
	if err != nil {
		return res, err
	}
	res.decision = decision

	if decision == commonModels.GreetOrDecline {
		onStep(jobModel.StandardResponding)
		res.answer, res.fallback = s.executeStandardStep(ctx, question)
	} else {
		onStep(jobModel.Retrieving)
		res.contexts, err = s.executeRetrievalStep(ctx, question, q)
		if err != nil {
			return res, err
		}
		onStep(jobModel.Synthesizing)
		res.answer, res.fallback = s.executeSynthesisStep(ctx, question, history, res.contexts)
	}

	s.publish(ctx, commonModels.TurnRecord{
		Question:     question,
		Decision:     res.decision,
		ContextCount: len(res.contexts),
		Answer:       res.answer,
		Fallback:     res.fallback,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	})
	return res, nil
}

func (s *service) executeTriageStep(ctx context.Context, question string) (commonModels.TriageDecision, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("triage", time.Since(start)) }()

	decision, err := s.cfg.Classifier.Classify(ctx, question)
	if err != nil {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Triage failed", "error", err)
		return "", err
	}
	metrics.CaptureTriageDecision(string(decision))
	return decision, nil
}

func (s *service) executeRetrievalStep(ctx context.Context, question string, q query) ([]string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("retrieval", time.Since(start)) }()

	contexts, err := s.cfg.Retriever.Retrieve(ctx, question, q.collection, q.threshold, q.limit)
	if err != nil {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Retrieval failed", "error", err)
		return nil, err
	}
	metrics.CaptureContextCount(len(contexts))
	return contexts, nil
}

// executeStandardStep never fails: errors and empty output become the standard fallback.
func (s *service) executeStandardStep(ctx context.Context, question string) (string, bool) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("standard_response", time.Since(start)) }()

	out, err := s.cfg.Responder.RespondStandard(ctx, question)
	if err != nil || strings.TrimSpace(out) == "" {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Warn("Standard response failed, using fallback", "error", err)
		metrics.CaptureFallback("standard")
		return s.cfg.StandardFallback, true
	}
	return out, false
}

func (s *service) executeSynthesisStep(ctx context.Context, question string, history []commonModels.ConversationMessage, contexts []string) (string, bool) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("synthesis", time.Since(start)) }()

	out, err := s.cfg.Synthesizer.Synthesize(ctx, question, history, contexts)
	if err != nil || strings.TrimSpace(out) == "" {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Warn("Synthesis failed, using fallback", "error", err)
		metrics.CaptureFallback("synthesis")
		return s.cfg.SynthesisFallback, true
	}
	return out, false
}

// publish is best effort; a broken audit sink never fails a turn.
func (s *service) publish(ctx context.Context, turn commonModels.TurnRecord) {
	if s.cfg.Publisher == nil {
		return
	}
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		turn.TraceId = trace
	}
	if chat, ok := ctx.Value(config.CHAT_ID_KEY).(string); ok {
		turn.ChatId = chat
	}
	if err := s.cfg.Publisher.Publish(context.WithoutCancel(ctx), turn); err != nil {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Warn("Failed to publish turn", "error", err)
	}
}

func (s *service) jobError(job jobModel.Job, err error, message string, canRetry bool) jobModel.Job {
	s.logger.Error(message, "error", err, "JobId", job.Id)

	job.Error = jobModel.JobError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Retry:   canRetry,
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}
