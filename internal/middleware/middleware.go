package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/handlers"
	"github.com/akolanti/DocQA/internal/metrics"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

type guard struct {
	authToken    string
	noAuthBypass bool
	limiter      *IPRateLimiter
}

var current = guard{
	limiter: NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND),
}

// InitMiddleware applies the server settings. Call it before the server starts.
func InitMiddleware(settings config.ServerSettings) {
	limit := settings.RateLimit
	if limit <= 0 {
		limit = config.RATE_LIMIT_PER_SECOND
	}
	burst := settings.RateLimitBurst
	if burst <= 0 {
		burst = config.BURST_RATE_LIMIT_PER_SECOND
	}
	current = guard{
		authToken:    settings.AuthToken,
		noAuthBypass: settings.NoAuthBypass,
		limiter:      NewIPRateLimiter(rate.Limit(limit), burst),
	}
}

var GetHandler = Wrap(handlers.GetHandler)

var ChatHandler = Wrap(handlers.ChatHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var PostIngestHandler = Wrap(handlers.PostIngestHandler)
var AskHandler = Wrap(handlers.AskHandler)
var AskStreamHandler = Wrap(handlers.AskStreamHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})
		if !handleBadRequest(re) {
			countRequest(r, rec.Status)
			return
		}
		next(rec, re.req)
		countRequest(r, rec.Status)
	}
}

// WrapHandler puts a plain http.Handler, such as the MCP endpoint, behind the same checks.
func WrapHandler(next http.Handler) http.Handler {
	return Wrap(next.ServeHTTP)
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Info("New request received", "path", re.req.URL.Path)
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re //stop if auth fails
	}
	return rateLimiter(re)
}

// status ids would explode the label set, so the route pattern is used when chi has one
func countRequest(r *http.Request, status int) {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	metrics.HttpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc() //metrics
}
