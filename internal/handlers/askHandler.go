package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/DocQA/internal/api"
	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag"
	"github.com/akolanti/DocQA/pkg/logger_i"
)

var (
	askInstance *askHandler
	logAH       = logger_i.NewLogger("AskHandler")
)

type askHandler struct {
	rag           rag.Service
	triageApology string
}

// InitAskHandler wires the synchronous and streaming question endpoints.
func InitAskHandler(ragService rag.Service, triageApology string) {
	if triageApology == "" {
		triageApology = config.TriageApology
	}
	askInstance = &askHandler{rag: ragService, triageApology: triageApology}
}

// AskHandler godoc
// @Summary      Ask a question
// @Description  Answers a question about the indexed document in the same request. No job is created and no chat history is stored.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Param        request  body      api.AskRequest   true  "Question with optional history and retrieval overrides"
// @Success      200      {object}  api.AskResponse
// @Failure      400      {object}  api.JobResponse
// @Failure      502      {object}  api.JobResponse  "Question could not be classified"
// @Failure      503      {object}  api.JobResponse  "Document search unavailable"
// @Router       /ask [post]
func AskHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	req, opts, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}
	log := logAH.WithTrace(r.Context(), config.TRACE_ID_KEY)

	// a whole turn may take longer than the server write timeout
	if err := extendWriteDeadline(w, config.TurnTimeout+config.AnswerWriteSlack); err != nil {
		log.Warn("Could not extend write deadline", "error", err)
	}

	answer, err := askInstance.rag.Answer(r.Context(), req.Question, req.History, opts...)
	if err != nil {
		code, msg := askInstance.errorStatus(err)
		log.Error("Ask failed", "error", err, "code", code)
		WriteErrorResponse(w, code, "", msg)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.AskResponse{Answer: answer})
}

// AskStreamHandler godoc
// @Summary      Ask a question, streaming the answer
// @Description  Same as /ask but the answer is sent as server-sent events. Each fragment is a data event, failures an error event, and the end of the answer a done event.
// @Tags         Messaging
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      api.AskRequest   true  "Question with optional history and retrieval overrides"
// @Success      200      {string}  string  "event stream"
// @Failure      400      {object}  api.JobResponse
// @Router       /ask/stream [post]
func AskStreamHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	req, opts, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}
	log := logAH.WithTrace(r.Context(), config.TRACE_ID_KEY)

	rc := http.NewResponseController(w)
	// answers can outlive the server write timeout
	if err := extendWriteDeadline(w, 0); err != nil {
		log.Warn("Could not lift write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fragments := 0
	for fragment, err := range askInstance.rag.AnswerStream(r.Context(), req.Question, req.History, opts...) {
		if err != nil {
			_, msg := askInstance.errorStatus(err)
			log.Error("Ask stream failed", "error", err, "fragments", fragments)
			writeEvent(w, "error", msg)
			_ = rc.Flush()
			return
		}
		if werr := writeEvent(w, "", fragment); werr != nil {
			log.Warn("Client went away", "error", werr, "fragments", fragments)
			return
		}
		_ = rc.Flush()
		fragments++
	}
	writeEvent(w, "done", "[DONE]")
	_ = rc.Flush()
	log.Debug("Ask stream finished", "fragments", fragments)
}

func decodeAskRequest(w http.ResponseWriter, r *http.Request) (api.AskRequest, []rag.QueryOption, bool) {
	defer closeBody(r.Body)

	var req api.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return req, nil, false
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "question is required")
		return req, nil, false
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		WriteErrorResponse(w, http.StatusBadRequest, "", "threshold must be between 0 and 1")
		return req, nil, false
	}
	if req.TopK < 0 {
		WriteErrorResponse(w, http.StatusBadRequest, "", "top_k must be positive")
		return req, nil, false
	}
	if askInstance == nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "", "Service not ready")
		return req, nil, false
	}

	opts := []rag.QueryOption{rag.WithTopK(req.TopK), rag.WithCollection(req.Collection)}
	if req.Threshold != nil {
		opts = append(opts, rag.WithThreshold(*req.Threshold))
	}
	return req, opts, true
}

func (h *askHandler) errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ragErrors.ErrTriageFailed):
		return http.StatusBadGateway, h.triageApology
	case errors.Is(err, ragErrors.ErrRetrievalFailed),
		errors.Is(err, ragErrors.ErrStoreQuery),
		errors.Is(err, ragErrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Document search is unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timed out"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// writeEvent writes one server-sent event. Multi-line data is split into data lines.
func writeEvent(w http.ResponseWriter, event string, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := w.Write([]byte(b.String()))
	return err
}
