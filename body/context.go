package body

import (
	"github.com/omalloc/reqbody/contrib/log"
	"github.com/omalloc/reqbody/metrics"
)

// HeaderBuffer is the caller-owned buffer holding already-read bytes
// [Pos, Last) within capacity [Start, End). Ingestion advances Pos but
// never writes into the buffer; the header/request-line parser retains
// ownership.
type HeaderBuffer struct {
	Buf                     []byte
	Start, Pos, Last, End   int
}

// Preread returns the number of body bytes already sitting in the header
// buffer before ingestion starts.
func (h *HeaderBuffer) Preread() int {
	return h.Last - h.Pos
}

// FilterFunc is the FilterPipeline contract (spec §6): invoked with each
// freshly acquired slice in strict byte order. Implementations return OK,
// Again, or a status >= 400; any other numeric status is demoted to
// StatusInternalError by the engine before it is observed by a caller.
type FilterFunc func(ctx RequestContext, view []byte) Status

// PostHandler is the completion callback invoked at most once per request,
// after Rest reaches zero and (if applicable) the final SpillFile flush.
type PostHandler func(ctx RequestContext)

// RequestContext is the downward contract a caller must implement (spec
// §3, §6). It stands in for "the rest of the server" — socket accept loop,
// header parser, configuration, logging, event multiplexer — which this
// package treats as an external collaborator.
type RequestContext interface {
	// HeaderBuffer returns the buffer holding post-header preread bytes.
	HeaderBuffer() *HeaderBuffer
	// ContentLength returns the declared length: negative means absent,
	// zero is empty, positive is the expected byte count.
	ContentLength() int64
	SetContentLength(int64)

	Conn() Conn
	Policy() *Policy
	FilterHead() FilterFunc

	// Logger and Metrics give the engine a request-scoped logger and metric
	// recorder without reaching for a package-global singleton, matching
	// this module's explicit context-carried-logger convention.
	Logger() *log.Helper
	Metrics() *metrics.RequestMetric

	// RefIncr/RefDecr implement the reference-counted lifecycle of spec
	// §5: incremented on ingestion start, decremented on any exit path
	// (error or normal).
	RefIncr()
	RefDecr()

	// IsHTTP11 and ExpectHeader feed ExpectNegotiator.
	IsHTTP11() bool
	ExpectHeader() string
	ExpectTested() bool
	SetExpectTested()

	// DiscardMode reports whether the handler already declared no
	// interest in the body (BodyIngress then short-circuits). IsSubrequest
	// reports whether this is a subrequest, which DiscardEngine
	// short-circuits to success.
	DiscardMode() bool
	SetDiscardBody(bool)
	IsSubrequest() bool

	// RequestBody is nil until BodyIngress allocates it; a second
	// BodyIngress call observes it non-nil and short-circuits.
	RequestBody() *RequestBody
	SetRequestBody(*RequestBody)

	// RequestLengthAdd credits bytes consumed from the wire toward
	// request-level accounting (logging/metrics), mirroring the source's
	// request_length field.
	RequestLengthAdd(n int64)

	// Finalize is the request-finalize primitive: it is invoked exactly
	// once, either by the synchronous caller of ReadClientRequestBody /
	// DiscardRequestBody on a terminal status, or asynchronously from a
	// read/timer event. It must not be called a second time for the same
	// request.
	Finalize(status Status)
}

// RequestBody is owned by the request context; created at most once per
// request (spec §3).
type RequestBody struct {
	Chain    *Chain
	Active   *Segment // the Segment currently being filled by ReadEngine
	Rest     int64
	ToWrite  int // index into Chain.Nodes not yet committed to SpillFile
	Spill    *SpillFile
	Post     PostHandler
	Lingering bool
}
