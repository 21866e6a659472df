// Package metrics carries per-request ingestion accounting (request ID,
// timing, byte counts) through context.Context, and exposes the
// process-wide Prometheus collectors the HTTP server registers at /metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omalloc/reqbody/internal/constants"
)

type requestMetricKey struct{}

// RequestMetric tracks one request's ingestion lifecycle: when it started,
// how many body bytes have been received and spilled, and when the terminal
// response was written (FirstResponseTime).
type RequestMetric struct {
	StartAt           time.Time
	RequestID         string
	RecvBytes         uint64
	SpillBytes        uint64
	RemoteAddr        string
	FirstResponseTime time.Time
}

// WithRequestMetric attaches a fresh RequestMetric to req's context and
// returns both, so a handler can read req.Context() later via FromContext.
func WithRequestMetric(req *http.Request) (*http.Request, *RequestMetric) {
	metric := &RequestMetric{
		StartAt:    time.Now(),
		RequestID:  MustParseRequestID(req.Header),
		RemoteAddr: req.RemoteAddr,
	}
	return req.WithContext(newContext(req.Context(), metric)), metric
}

// FromContext returns the RequestMetric attached to ctx, or a zero value if
// none was attached.
func FromContext(ctx context.Context) *RequestMetric {
	if v, ok := ctx.Value(requestMetricKey{}).(*RequestMetric); ok {
		return v
	}
	return &RequestMetric{}
}

func newContext(ctx context.Context, metric *RequestMetric) context.Context {
	return context.WithValue(ctx, requestMetricKey{}, metric)
}

// MustParseRequestID returns the caller-supplied request ID header, or
// generates a new UUID if absent.
func MustParseRequestID(h http.Header) string {
	if id := h.Get(constants.ProtocolRequestIDKey); id != "" {
		return id
	}
	return uuid.NewString()
}

var (
	// IngestedBytesTotal counts body bytes that reached the filter
	// pipeline, labeled by disposition (memory vs spilled-to-file).
	IngestedBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reqbody",
		Name:      "ingested_bytes_total",
		Help:      "Total request body bytes accepted by the ingestion engine.",
	}, []string{"disposition"})

	// IngestionsTotal counts completed ingestions by terminal status.
	IngestionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reqbody",
		Name:      "ingestions_total",
		Help:      "Total completed body ingestions by terminal status.",
	}, []string{"status"})

	// IngestionDuration observes wall-clock time from ingestion start to
	// the completion callback.
	IngestionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reqbody",
		Name:      "ingestion_duration_seconds",
		Help:      "Time from ReadClientRequestBody to the completion callback.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(IngestedBytesTotal, IngestionsTotal, IngestionDuration)
}

// RecvRate is a rolling one-minute counter of bytes received across all
// in-flight ingestions. It is incremented per received chunk; no endpoint
// of this module reads or exports it.
var RecvRate = ratecounter.NewRateCounter(time.Minute)
