package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudflare/tableflip"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omalloc/reqbody/audit"
	"github.com/omalloc/reqbody/body"
	"github.com/omalloc/reqbody/conf"
	"github.com/omalloc/reqbody/contrib/log"
	"github.com/omalloc/reqbody/contrib/transport"
	"github.com/omalloc/reqbody/metrics"
	xhttp "github.com/omalloc/reqbody/pkg/x/http"
	"github.com/omalloc/reqbody/pkg/x/runtime"
)

// HTTPServer exposes the body-ingestion engine over net/http: one internal
// mux for probes/metrics/version, and a business handler that drives
// body.ReadClientRequestBody over every request with a declared or absent
// body.
type HTTPServer struct {
	*http.Server

	flip     *tableflip.Upgrader
	config   *conf.Bootstrap
	policy   *body.Policy
	audit    *audit.Store
	listener net.Listener
}

// NewServer wires an HTTPServer from decoded configuration. audit may be
// nil, in which case completed ingestions are only recorded in the
// Prometheus counters.
func NewServer(flip *tableflip.Upgrader, config *conf.Bootstrap, auditStore *audit.Store) transport.Server {
	servConfig := config.Server

	s := &HTTPServer{
		Server: &http.Server{
			Addr:              servConfig.Addr,
			ReadTimeout:       servConfig.ReadTimeout,
			WriteTimeout:      servConfig.WriteTimeout,
			IdleTimeout:       servConfig.IdleTimeout,
			ReadHeaderTimeout: servConfig.ReadHeaderTimeout,
			MaxHeaderBytes:    servConfig.MaxHeaderBytes,
		},
		flip:   flip,
		config: config,
		policy: config.Body.Policy(),
		audit:  auditStore,
	}

	mux := s.newServeMux()
	mux.HandleFunc("/", s.ingestHandler)
	s.Handler = mux

	return s
}

func (s *HTTPServer) Start(ctx context.Context) error {
	s.BaseContext = func(ln net.Listener) context.Context {
		return ctx
	}

	if err := s.listen(); err != nil {
		return err
	}

	log.Infof("body ingestion server listening on %s", s.config.Server.Addr)

	if err := s.Serve(s.listener); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.Shutdown(ctx)
}

func (s *HTTPServer) listen() error {
	if s.flip == nil {
		ln, err := net.Listen("tcp", s.Addr)
		if err != nil {
			return err
		}
		s.listener = ln
		return nil
	}

	ln, err := s.flip.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

func (s *HTTPServer) newServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/favicon.ico", http.NotFoundHandler())

	mux.Handle("/version", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(runtime.BuildInfo)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))

	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.Handle("/healthz/startup-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := []byte("ok")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))
	mux.Handle("/healthz/liveness-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.Handle("/healthz/readiness-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	mux.HandleFunc("/debug/spill/", s.spillDebugHandler)

	return mux
}

// spillDebugHandler reads a previously ingested, spilled body back out by
// request ID, honoring a Range header the way the audit trail makes
// possible for persistent spill files.
func (s *HTTPServer) spillDebugHandler(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit trail disabled", http.StatusNotFound)
		return
	}

	requestID := strings.TrimPrefix(r.URL.Path, "/debug/spill/")
	if requestID == "" {
		http.Error(w, "missing request id", http.StatusBadRequest)
		return
	}

	entry, err := s.audit.Lookup(requestID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entry == nil || entry.SpillPath == "" {
		http.Error(w, "no spilled body recorded for this request", http.StatusNotFound)
		return
	}

	start, end := int64(0), entry.Bytes
	if rng := r.Header.Get("Range"); rng != "" {
		if parsedStart, parsedEnd, ok := parseByteRange(rng, entry.Bytes); ok {
			start, end = parsedStart, parsedEnd
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, entry.Bytes))
			w.WriteHeader(http.StatusPartialContent)
		}
	}

	reader, err := body.OpenFileRange(entry.SpillPath, start, end, entry.Bytes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Accept-Ranges", "bytes")
	_, _ = io.Copy(w, reader)
}

// parseByteRange parses a single "bytes=start-end" Range header value
// against a known total size. It reports ok=false for anything it does
// not recognize, leaving the caller to fall back to the full body.
func parseByteRange(header string, size int64) (start, end int64, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}
	parts := strings.SplitN(strings.TrimPrefix(header, prefix), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if parts[0] == "" {
		return 0, 0, false
	}
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	if parts[1] == "" {
		return s, size, true
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || e < s {
		return 0, 0, false
	}
	if e+1 > size {
		e = size - 1
	}
	return s, e + 1, true
}

// ingestHandler is the business endpoint: it drives the full ingestion
// lifecycle over the request body and reports what happened to it.
func (s *HTTPServer) ingestHandler(w http.ResponseWriter, r *http.Request) {
	if xhttp.IsChunked(r.Header) {
		http.Error(w, "chunked transfer-encoding is not accepted; resolve to a declared content length upstream", http.StatusLengthRequired)
		return
	}

	req, metric := metrics.WithRequestMetric(r)
	clog := log.Context(req.Context())

	rc := newHTTPRequestContext(w, req, s.policy, countingFilter, metric)
	rc.onFinalize = func(status body.Status) {
		s.finishRequest(w, rc, status)
	}

	status := body.ReadClientRequestBody(rc, func(ctx body.RequestContext) {
		s.finishRequest(w, rc, body.StatusOK)
	})

	switch status {
	case body.StatusAgain:
		// never produced by httpConn's blocking Recv; Finalize already owns
		// the response in the hypothetical async case.
		return
	case body.StatusOK:
		// the post callback above already wrote the response.
		return
	default:
		clog.Warnf("ingestion failed for %s %s: %s", req.Method, req.URL.Path, status)
		s.finishRequest(w, rc, status)
	}
}

// countingFilter is the FilterPipeline head wired for the demo endpoint: it
// does not inspect or transform the bytes, only observes them flowing
// through in order.
func countingFilter(ctx body.RequestContext, view []byte) body.Status {
	return body.StatusOK
}

// finishRequest writes the terminal response exactly once per request and
// records the completed ingestion into the audit trail and Prometheus
// metrics. Both the synchronous failure path and Finalize (the
// asynchronous path) route through here.
func (s *HTTPServer) finishRequest(w http.ResponseWriter, rc *httpRequestContext, status body.Status) {
	metric := rc.metric
	metric.FirstResponseTime = time.Now()
	elapsed := metric.FirstResponseTime.Sub(metric.StartAt)

	disposition := "memory"
	var spillPath string
	if rb := rc.RequestBody(); rb != nil && rb.Spill != nil {
		disposition = "file"
		spillPath = rb.Spill.Path()
		// stops the spill file's async writer goroutine; a persistent file
		// stays on disk under spillPath for the debug/audit endpoints even
		// after this call.
		if err := rb.Spill.Close(); err != nil {
			log.Warnf("spillfile: close failed for %s: %v", spillPath, err)
		}
	}

	metrics.IngestionsTotal.WithLabelValues(status.String()).Inc()
	metrics.IngestionDuration.Observe(elapsed.Seconds())
	metrics.IngestedBytesTotal.WithLabelValues(disposition).Add(float64(metric.RecvBytes))

	if s.audit != nil {
		if err := s.audit.Record(&audit.Entry{
			RequestID:  metric.RequestID,
			Status:     int(status),
			Bytes:      int64(metric.RecvBytes),
			SpillPath:  spillPath,
			StartedAt:  metric.StartAt,
			FinishedAt: metric.FirstResponseTime,
		}); err != nil {
			log.Warnf("audit: failed to record %s: %v", metric.RequestID, err)
		}
	}

	w.Header().Set("X-Request-ID", metric.RequestID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(int(status))
	_, _ = fmt.Fprintf(w, "status=%s bytes=%d disposition=%s\n", status, metric.RecvBytes, disposition)
}
