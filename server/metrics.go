package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paperdesk",
		Name:      "http_requests_total",
		Help:      "HTTP requests by pattern, method and status code.",
	}, []string{"pattern", "method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paperdesk",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pattern"})

	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paperdesk",
		Name:      "generations_total",
		Help:      "Section generation calls by action and outcome.",
	}, []string{"action", "outcome"})
)

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics instruments a mux so every request is counted and timed
// under its matched pattern.
func withMetrics(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		_, pattern := next.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		requestsTotal.WithLabelValues(pattern, r.Method, strconv.Itoa(rec.code)).Inc()
		requestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}
