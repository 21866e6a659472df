package body

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// S1: an empty body under the default (non file-only) policy produces no
// chain and no SpillFile at all.
func TestEmptyBodyNoFileOnly(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.SetContentLength(0)

	var postCalls int
	status := ReadClientRequestBody(ctx, func(RequestContext) { postCalls++ })

	require.Equal(t, StatusOK, status)
	require.Equal(t, 1, postCalls)
	require.NotNil(t, ctx.RequestBody())
	require.Empty(t, ctx.RequestBody().Chain.Nodes)
	require.Nil(t, ctx.RequestBody().Spill)
}

// S2: an empty body under in_file_only still produces exactly one
// File-backed segment (invariant 4).
func TestEmptyBodyFileOnly(t *testing.T) {
	policy := DefaultPolicy()
	policy.InFileOnly = true
	policy.ClientBodyTempPath = t.TempDir()

	ctx := newFakeCtx(policy)
	ctx.SetContentLength(0)

	var postCalls int
	status := ReadClientRequestBody(ctx, func(RequestContext) { postCalls++ })

	require.Equal(t, StatusOK, status)
	require.Equal(t, 1, postCalls)
	rb := ctx.RequestBody()
	require.Len(t, rb.Chain.Nodes, 1)
	require.Equal(t, SegmentFile, rb.Chain.Nodes[0].Kind)
	require.EqualValues(t, 0, rb.Chain.Nodes[0].Len())
}

// S3: the whole body already sits in the header buffer (preread >=
// content_length); ingestion completes synchronously with no read engine
// involvement and the excess pipelined bytes, if any, stay addressable.
func TestPrereadExactMatch(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	body := []byte("hello")
	buf := append(append([]byte{}, body...), []byte("PIPELINED")...)
	ctx.hb = &HeaderBuffer{Buf: buf, Start: 0, Pos: 0, Last: len(body), End: len(buf)}
	ctx.SetContentLength(int64(len(body)))

	var seen [][]byte
	ctx.filter = recordingFilter(&seen)

	var postCalls int
	status := ReadClientRequestBody(ctx, func(RequestContext) { postCalls++ })

	require.Equal(t, StatusOK, status)
	require.Equal(t, 1, postCalls)
	require.Len(t, seen, 1)
	require.Equal(t, body, seen[0])
	require.Equal(t, len(body), ctx.hb.Pos, "pos advances by exactly content_length, not by the full preread")
	require.EqualValues(t, len(body), ctx.requestLength)

	rb := ctx.RequestBody()
	require.Len(t, rb.Chain.Nodes, 1)
	require.EqualValues(t, len(body), rb.Chain.Nodes[0].Len())
}

// S4: a body that arrives entirely via ReadEngine, partly preread, large
// enough to overflow the memory buffer into a SpillFile. Verifies byte
// conservation and that the aliased preread segment is never committed to
// the SpillFile.
func TestStreamedBodyWithSpill(t *testing.T) {
	policy := smallPolicy()
	policy.ClientBodyTempPath = t.TempDir()

	ctx := newFakeCtx(policy)

	preread := []byte("PRE")
	rest := bytes.Repeat([]byte("x"), 40)
	full := append(append([]byte{}, preread...), rest...)

	ctx.hb = &HeaderBuffer{Buf: append([]byte{}, preread...), Start: 0, Pos: 0, Last: len(preread), End: len(preread) + 32}
	ctx.SetContentLength(int64(len(full)))
	ctx.conn.feed(rest)

	var seen [][]byte
	ctx.filter = recordingFilter(&seen)

	var postCalls int
	status := ReadClientRequestBody(ctx, func(RequestContext) { postCalls++ })

	require.Equal(t, StatusOK, status)
	require.Equal(t, 1, postCalls)

	rb := ctx.RequestBody()
	require.NotNil(t, rb.Spill)
	require.Len(t, rb.Chain.Nodes, 2, "preread alias and spilled tail stay as two segments without in_single_buf")
	require.Equal(t, SegmentMemory, rb.Chain.Nodes[0].Kind)
	require.Equal(t, SegmentFile, rb.Chain.Nodes[1].Kind)

	var total int64
	for _, n := range rb.Chain.Nodes {
		total += n.Len()
	}
	require.EqualValues(t, len(full), total, "byte conservation across the final chain")

	var filtered int
	for _, v := range seen {
		filtered += len(v)
	}
	require.Equal(t, len(full), filtered, "every live byte passes through the filter pipeline exactly once")
}

// S5: the client closes the connection before the declared body arrives;
// BadRequest is returned synchronously and never routed through Finalize.
func TestClientClosesEarly(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.SetContentLength(50)
	ctx.conn.feed(bytes.Repeat([]byte("a"), 10))
	ctx.conn.closeConn()

	status := ReadClientRequestBody(ctx, func(RequestContext) {})

	require.Equal(t, StatusBadRequest, status)
	require.Equal(t, 0, ctx.finalizeCalled, "a synchronous failure must not be routed through Finalize")
}

// S6: Expect: 100-continue triggers exactly one wire write of the literal
// interim response, and is idempotent on re-entry.
func TestExpectContinueNegotiation(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.http11 = true
	ctx.expectHeader = "100-continue"

	status := NegotiateExpect(ctx)
	require.Equal(t, StatusOK, status)
	require.Len(t, ctx.conn.sent, 1)
	require.Equal(t, "HTTP/1.1 100 Continue\r\n\r\n", string(ctx.conn.sent[0]))
	require.True(t, ctx.expectTested)

	status = NegotiateExpect(ctx)
	require.Equal(t, StatusOK, status)
	require.Len(t, ctx.conn.sent, 1, "a second negotiation on the same request is a no-op")
}

// Re-entry: a second ReadClientRequestBody call on a request that already
// has a RequestBody short-circuits straight to the completion callback.
func TestReEntrySafety(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.SetContentLength(0)

	var calls int
	ReadClientRequestBody(ctx, func(RequestContext) { calls++ })
	status := ReadClientRequestBody(ctx, func(RequestContext) { calls++ })

	require.Equal(t, StatusOK, status)
	require.Equal(t, 2, calls)
}

// Negative content_length mirrors the source's silent success: no chain is
// built, the body is simply never consumed.
func TestNegativeContentLengthSucceedsSilently(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.SetContentLength(-1)

	var postCalls int
	status := ReadClientRequestBody(ctx, func(RequestContext) { postCalls++ })

	require.Equal(t, StatusOK, status)
	require.Equal(t, 1, postCalls)
	require.Empty(t, ctx.RequestBody().Chain.Nodes)
}

func TestFilterStatusTranslation(t *testing.T) {
	require.Equal(t, StatusAgain, translateFilterStatus(StatusAgain))
	require.Equal(t, StatusOK, translateFilterStatus(StatusOK))
	require.Equal(t, StatusInternalError, translateFilterStatus(Status(101)))
	require.Equal(t, StatusInternalError, translateFilterStatus(Status(204)))
	require.Equal(t, StatusBadRequest, translateFilterStatus(StatusBadRequest))
	require.Equal(t, Status(502), translateFilterStatus(Status(502)))
}

func TestDiscardEmptyBody(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.SetContentLength(0)

	status := DiscardRequestBody(ctx)

	require.Equal(t, StatusOK, status)
	require.True(t, ctx.discardBody)
}

func TestDiscardDrainsImmediatelyAvailableData(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.SetContentLength(20)
	ctx.conn.feed(bytes.Repeat([]byte("z"), 20))

	status := DiscardRequestBody(ctx)

	require.Equal(t, StatusOK, status)
	require.True(t, ctx.discardBody)
}

func TestDiscardSubrequestShortCircuits(t *testing.T) {
	ctx := newFakeCtx(DefaultPolicy())
	ctx.subrequest = true
	ctx.http11 = true
	ctx.expectHeader = "100-continue"
	ctx.SetContentLength(20)
	ctx.conn.feed(bytes.Repeat([]byte("z"), 20))

	status := DiscardRequestBody(ctx)

	require.Equal(t, StatusOK, status)
	require.False(t, ctx.discardBody, "a subrequest never marks discard mode, it just short-circuits")
	require.False(t, ctx.expectTested, "a subrequest must never negotiate Expect")
	require.Empty(t, ctx.conn.sent, "a subrequest must never write to the connection")
	require.Equal(t, 20, ctx.conn.buf.Len(), "a subrequest must never drain the connection")
}

func TestDiscardGivesUpQuietlyWhenLingeringBudgetExhausted(t *testing.T) {
	policy := DefaultPolicy()
	policy.LingeringTime = 0
	ctx := newFakeCtx(policy)
	ctx.SetContentLength(20)
	// no data fed: conn.Recv will report ErrAgain immediately

	status := DiscardRequestBody(ctx)

	require.Equal(t, StatusOK, status)
	require.Nil(t, ctx.conn.readable, "with no lingering budget left, no readability callback is armed")
}
