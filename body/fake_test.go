package body

import (
	"bytes"
	"sync"
	"time"

	"github.com/omalloc/reqbody/contrib/log"
	"github.com/omalloc/reqbody/metrics"
)

// fakeConn is a minimal, single-goroutine-at-a-time stand-in for a
// non-blocking connection, used across this package's tests in place of a
// real socket.
type fakeConn struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	closed   bool
	sendErr  error
	sent     [][]byte
	readable func()
	timerFn  func()
	timerDur time.Duration

	blockReadingCalls int
	cancelCalls       int
}

func (c *fakeConn) feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(p)
}

func (c *fakeConn) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Recv(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 {
		if c.closed {
			return 0, nil
		}
		return 0, ErrAgain
	}
	return c.buf.Read(p)
}

func (c *fakeConn) Send(p []byte) (int, error) {
	if c.sendErr != nil {
		return 0, c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), p...)
	c.sent = append(c.sent, cp)
	return len(p), nil
}

func (c *fakeConn) RegisterReadable(h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readable = h
}

func (c *fakeConn) ArmReadTimer(d time.Duration, h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timerDur = d
	c.timerFn = h
}

func (c *fakeConn) CancelReadTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timerFn = nil
	c.cancelCalls++
}

func (c *fakeConn) BlockReading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockReadingCalls++
}

func (c *fakeConn) fireReadable() {
	c.mu.Lock()
	h := c.readable
	c.readable = nil
	c.mu.Unlock()
	if h != nil {
		h()
	}
}

func (c *fakeConn) fireTimer() {
	c.mu.Lock()
	h := c.timerFn
	c.timerFn = nil
	c.mu.Unlock()
	if h != nil {
		h()
	}
}

// fakeCtx is a test double for RequestContext.
type fakeCtx struct {
	hb            *HeaderBuffer
	contentLength int64
	conn          *fakeConn
	policy        *Policy
	filter        FilterFunc

	ref          int
	http11       bool
	expectHeader string
	expectTested bool
	discardBody  bool
	subrequest   bool

	rb            *RequestBody
	requestLength int64

	finalizeCalled int
	finalizeStatus Status

	logger *log.Helper
	metric *metrics.RequestMetric
}

func newFakeCtx(policy *Policy) *fakeCtx {
	return &fakeCtx{
		hb:     &HeaderBuffer{},
		conn:   &fakeConn{},
		policy: policy,
		http11: true,
		logger: log.NewHelper(log.GetLogger()),
		metric: &metrics.RequestMetric{},
	}
}

func (f *fakeCtx) HeaderBuffer() *HeaderBuffer  { return f.hb }
func (f *fakeCtx) ContentLength() int64         { return f.contentLength }
func (f *fakeCtx) SetContentLength(n int64)     { f.contentLength = n }
func (f *fakeCtx) Conn() Conn                   { return f.conn }
func (f *fakeCtx) Policy() *Policy              { return f.policy }
func (f *fakeCtx) FilterHead() FilterFunc       { return f.filter }
func (f *fakeCtx) Logger() *log.Helper          { return f.logger }
func (f *fakeCtx) Metrics() *metrics.RequestMetric { return f.metric }
func (f *fakeCtx) RefIncr()                     { f.ref++ }
func (f *fakeCtx) RefDecr()                     { f.ref-- }
func (f *fakeCtx) IsHTTP11() bool               { return f.http11 }
func (f *fakeCtx) ExpectHeader() string         { return f.expectHeader }
func (f *fakeCtx) ExpectTested() bool           { return f.expectTested }
func (f *fakeCtx) SetExpectTested()             { f.expectTested = true }
func (f *fakeCtx) DiscardMode() bool            { return f.discardBody }
func (f *fakeCtx) SetDiscardBody(v bool)        { f.discardBody = v }
func (f *fakeCtx) IsSubrequest() bool           { return f.subrequest }
func (f *fakeCtx) RequestBody() *RequestBody    { return f.rb }
func (f *fakeCtx) SetRequestBody(rb *RequestBody) { f.rb = rb }
func (f *fakeCtx) RequestLengthAdd(n int64)     { f.requestLength += n }

func (f *fakeCtx) Finalize(status Status) {
	f.finalizeCalled++
	f.finalizeStatus = status
}

// recordingFilter appends a copy of every view it observes to *sink and
// always reports OK.
func recordingFilter(sink *[][]byte) FilterFunc {
	return func(ctx RequestContext, view []byte) Status {
		cp := append([]byte(nil), view...)
		*sink = append(*sink, cp)
		return StatusOK
	}
}

func smallPolicy() *Policy {
	p := DefaultPolicy()
	p.ClientBodyBufferSize = 8
	p.ClientBodyTempPath = "" // overwritten per-test with t.TempDir()
	return p
}
