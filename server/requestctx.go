package server

import (
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/omalloc/reqbody/body"
	"github.com/omalloc/reqbody/contrib/log"
	"github.com/omalloc/reqbody/metrics"
)

// httpConn adapts one (*http.Request).Body / http.ResponseWriter pair to
// body.Conn. net/http's Body.Read blocks the goroutine instead of
// signalling not-ready, so Recv here never returns body.ErrAgain; per
// Conn's own doc comment that "degrades the outer/inner read loops to a
// plain blocking drain without changing their correctness" — which also
// means RegisterReadable and the callback ArmReadTimer installs are dead
// code on this adapter. The timeout is instead enforced directly against
// the connection's read deadline on every Recv.
type httpConn struct {
	rc      *http.ResponseController
	w       http.ResponseWriter
	body    io.ReadCloser
	timeout time.Duration
}

func newHTTPConn(w http.ResponseWriter, body io.ReadCloser, timeout time.Duration) *httpConn {
	return &httpConn{
		rc:      http.NewResponseController(w),
		w:       w,
		body:    body,
		timeout: timeout,
	}
}

func (c *httpConn) Recv(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.rc.SetReadDeadline(time.Now().Add(c.timeout))
	}
	n, err := c.body.Read(p)
	if n > 0 {
		return n, nil
	}
	if err == nil || err == io.EOF {
		return 0, nil
	}
	return 0, err
}

func (c *httpConn) Send(p []byte) (int, error) {
	// the only payload ExpectNegotiator ever sends is the literal
	// "100 Continue" status line; net/http exposes that as an
	// informational WriteHeader call rather than a raw byte write.
	c.w.WriteHeader(http.StatusContinue)
	return len(p), nil
}

func (c *httpConn) RegisterReadable(h func()) {
	h()
}

func (c *httpConn) ArmReadTimer(d time.Duration, h func()) {
	c.timeout = d
	_ = c.rc.SetReadDeadline(time.Now().Add(d))
}

func (c *httpConn) CancelReadTimer() {
	_ = c.rc.SetReadDeadline(time.Time{})
}

func (c *httpConn) BlockReading() {}

// httpRequestContext implements body.RequestContext over one inbound
// *http.Request. There is no socket-level preread buffer in net/http's
// model — the whole body arrives through Recv — so HeaderBuffer always
// reports zero preread bytes.
type httpRequestContext struct {
	conn   *httpConn
	policy *body.Policy
	filter body.FilterFunc
	metric *metrics.RequestMetric
	logger *log.Helper

	contentLength int64
	isHTTP11      bool
	expectHeader  string

	refs         int32
	expectTested bool
	discard      bool
	rb           *body.RequestBody
	reqLength    int64

	// onFinalize runs exactly once, from Finalize, for a status discovered
	// asynchronously. The synchronous caller of ReadClientRequestBody /
	// DiscardRequestBody handles its own return value instead.
	onFinalize func(status body.Status)
}

func newHTTPRequestContext(w http.ResponseWriter, r *http.Request, policy *body.Policy, filter body.FilterFunc, metric *metrics.RequestMetric) *httpRequestContext {
	logger := log.NewHelper(log.With(log.GetLogger(), "request_id", metric.RequestID))
	return &httpRequestContext{
		conn:          newHTTPConn(w, r.Body, policy.ClientBodyTimeout),
		policy:        policy,
		filter:        filter,
		metric:        metric,
		logger:        logger,
		contentLength: r.ContentLength,
		isHTTP11:      r.ProtoMajor == 1 && r.ProtoMinor == 1,
		expectHeader:  r.Header.Get("Expect"),
	}
}

func (c *httpRequestContext) HeaderBuffer() *body.HeaderBuffer { return &body.HeaderBuffer{} }

func (c *httpRequestContext) ContentLength() int64      { return c.contentLength }
func (c *httpRequestContext) SetContentLength(n int64)   { c.contentLength = n }
func (c *httpRequestContext) Conn() body.Conn            { return c.conn }
func (c *httpRequestContext) Policy() *body.Policy        { return c.policy }
func (c *httpRequestContext) FilterHead() body.FilterFunc { return c.filter }

func (c *httpRequestContext) Logger() *log.Helper                { return c.logger }
func (c *httpRequestContext) Metrics() *metrics.RequestMetric     { return c.metric }

func (c *httpRequestContext) RefIncr() { atomic.AddInt32(&c.refs, 1) }
func (c *httpRequestContext) RefDecr() { atomic.AddInt32(&c.refs, -1) }

func (c *httpRequestContext) IsHTTP11() bool        { return c.isHTTP11 }
func (c *httpRequestContext) ExpectHeader() string  { return c.expectHeader }
func (c *httpRequestContext) ExpectTested() bool    { return c.expectTested }
func (c *httpRequestContext) SetExpectTested()      { c.expectTested = true }

func (c *httpRequestContext) DiscardMode() bool      { return c.discard }
func (c *httpRequestContext) SetDiscardBody(v bool)  { c.discard = v }
func (c *httpRequestContext) IsSubrequest() bool     { return false }

func (c *httpRequestContext) RequestBody() *body.RequestBody     { return c.rb }
func (c *httpRequestContext) SetRequestBody(rb *body.RequestBody) { c.rb = rb }

func (c *httpRequestContext) RequestLengthAdd(n int64) {
	atomic.AddInt64(&c.reqLength, n)
	atomic.AddUint64(&c.metric.RecvBytes, uint64(n))
	metrics.RecvRate.Incr(n)
}

func (c *httpRequestContext) Finalize(status body.Status) {
	if c.onFinalize != nil {
		c.onFinalize(status)
	}
}
