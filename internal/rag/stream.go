package rag

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/metrics"
)

// AnswerStream yields the answer in fragments. Triage and retrieval errors are yielded once and
// end the sequence. Generation failures before any output yield the fallback text instead; after
// output has started the sequence just ends. Breaking out of the loop stops the upstream stream.
func (s *service) AnswerStream(ctx context.Context, question string, history []commonModels.ConversationMessage, opts ...QueryOption) iter.Seq2[string, error] {
	q := s.newQuery(opts)

	return func(yield func(string, error) bool) {
		started := time.Now()
		ctx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()

		decision, err := s.executeTriageStep(ctx, question)
		if err != nil {
			yield("", err)
			return
		}

		var (
			contexts []string
			upstream iter.Seq2[string, error]
			fallback string
			path     string
		)
		if decision == commonModels.GreetOrDecline {
			upstream = s.cfg.Responder.RespondStandardStream(ctx, question)
			fallback, path = s.cfg.StandardFallback, "standard"
		} else {
			contexts, err = s.executeRetrievalStep(ctx, question, q)
			if err != nil {
				yield("", err)
				return
			}
			upstream = s.cfg.Synthesizer.SynthesizeStream(ctx, question, history, contexts)
			fallback, path = s.cfg.SynthesisFallback, "synthesis"
		}

		var answer strings.Builder
		usedFallback := false
		for fragment, info := range s.streamWithFallback(ctx, upstream, fallback, path) {
			if info.fallback {
				usedFallback = true
			}
			answer.WriteString(fragment)
			if !yield(fragment, nil) {
				break
			}
		}

		s.publish(ctx, commonModels.TurnRecord{
			Question:     question,
			Decision:     decision,
			ContextCount: len(contexts),
			Answer:       answer.String(),
			Fallback:     usedFallback,
			Streamed:     true,
			StartedAt:    started,
			FinishedAt:   time.Now(),
		})
	}
}

type fragmentInfo struct {
	fallback bool
}

func (s *service) streamWithFallback(ctx context.Context, upstream iter.Seq2[string, error], fallback string, path string) iter.Seq2[string, fragmentInfo] {
	return func(yield func(string, fragmentInfo) bool) {
		start := time.Now()
		defer func() { metrics.CaptureExecutionMetrics(path+"_stream", time.Since(start)) }()

		log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY)
		produced := false
		// blank fragments are held back until real text follows them
		var pending strings.Builder
		for fragment, err := range upstream {
			if err != nil {
				if produced {
					log.Warn("Stream failed after partial output", "path", path, "error", err)
					metrics.CaptureFallback(path + "_partial")
					return
				}
				log.Warn("Stream failed, using fallback", "path", path, "error", err)
				break
			}
			if !produced && strings.TrimSpace(fragment) == "" {
				pending.WriteString(fragment)
				continue
			}
			if !produced {
				fragment = pending.String() + fragment
			}
			if fragment == "" {
				continue
			}
			produced = true
			if !yield(fragment, fragmentInfo{}) {
				return
			}
		}
		if !produced {
			metrics.CaptureFallback(path)
			yield(fallback, fragmentInfo{fallback: true})
		}
	}
}
