package handlers

import (
	"context"
	"encoding/json"
	"io"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/akolanti/DocQA/internal/adapter"
	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/jobModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are gone, nothing left to do but log
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func validateContext(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		logRH.WithTrace(ctx, config.TRACE_ID_KEY).Warn("context error", "error", err)
		return false
	}
	return true
}

func traceIdFrom(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close request body", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func getTargetDirectory() (string, string) {
	targetDir := "temporary_data"
	if handlerInstance != nil {
		targetDir = handlerInstance.uploadDir
	}
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}

// extendWriteDeadline moves the connection write deadline d from now, or removes it when d <= 0.
// Writers that cannot change deadlines, such as test recorders, are left alone.
func extendWriteDeadline(w http.ResponseWriter, d time.Duration) error {
	deadline := time.Time{}
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	err := http.NewResponseController(w).SetWriteDeadline(deadline)
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// WithoutWriteDeadline is for long lived handlers, like the MCP endpoint, whose streams
// are bounded by their own contexts rather than the server write timeout.
func WithoutWriteDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := extendWriteDeadline(w, 0); err != nil {
			logRH.WithTrace(r.Context(), config.TRACE_ID_KEY).Warn("Could not lift write deadline", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}
