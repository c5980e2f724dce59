package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var chunksIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docqa_chunks_indexed_total",
	Help: "Chunks handled by reindexing, labelled by outcome",
}, []string{"outcome"})

var triageDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docqa_triage_decisions_total",
	Help: "Triage decisions by label",
}, []string{"decision"})

var fallbackResponses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docqa_fallback_responses_total",
	Help: "Fixed fallback texts returned instead of model output",
}, []string{"path"})

var contextsRetrieved = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "docqa_contexts_retrieved",
	Help:    "Number of context passages handed to synthesis",
	Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
})

// HttpStatusRecorder remembers the status written by the wrapped handler.
type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *HttpStatusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *HttpStatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CaptureChunks(inserted int, skipped int) {
	chunksIndexed.WithLabelValues("inserted").Add(float64(inserted))
	chunksIndexed.WithLabelValues("skipped").Add(float64(skipped))
}

func CaptureTriageDecision(decision string) {
	triageDecisions.WithLabelValues(decision).Inc()
}

func CaptureFallback(path string) {
	fallbackResponses.WithLabelValues(path).Inc()
}

func CaptureContextCount(n int) {
	contextsRetrieved.Observe(float64(n))
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent in ProcessRequest.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
