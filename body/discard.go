package body

import (
	"errors"
	"time"
)

// discardBufSize is the throwaway read buffer DiscardEngine reuses across
// recv calls; nothing retains it past a single Recv.
const discardBufSize = 4096

// DiscardRequestBody is DiscardEngine (spec §4.5): tells the connection to
// swallow any remaining body bytes without handing them to a chain or the
// filter pipeline. It never surfaces a client I/O error or an early close —
// the only failure it can report back is an Expect-continue send failure.
func DiscardRequestBody(ctx RequestContext) Status {
	if ctx.IsSubrequest() {
		return StatusOK
	}

	if ctx.DiscardMode() {
		return StatusOK
	}

	if status := NegotiateExpect(ctx); status.Failed() {
		return StatusInternalError
	}

	ctx.Conn().CancelReadTimer()

	contentLength := ctx.ContentLength()
	if contentLength <= 0 || ctx.RequestBody() != nil {
		ctx.SetDiscardBody(true)
		return StatusOK
	}

	hb := ctx.HeaderBuffer()
	consumed := hb.Preread()
	if int64(consumed) > contentLength {
		consumed = int(contentLength)
	}
	hb.Pos += consumed

	ctx.SetDiscardBody(true)

	rest := contentLength - int64(consumed)
	if rest == 0 {
		return StatusOK
	}

	return discardDrain(ctx, rest, time.Now().Add(ctx.Policy().LingeringTime))
}

// discardDrain is the inner discarder loop: it reads into a fixed,
// non-retained buffer until rest reaches zero, the lingering budget is
// exhausted, or the connection reports Again. Every I/O outcome other than
// Again is treated as done — an error or a clean close simply means there
// is nothing further to discard.
func discardDrain(ctx RequestContext, rest int64, deadline time.Time) Status {
	conn := ctx.Conn()
	policy := ctx.Policy()
	buf := make([]byte, discardBufSize)

	for rest > 0 {
		size := int64(len(buf))
		if size > rest {
			size = rest
		}

		n, err := conn.Recv(buf[:size])
		if errors.Is(err, ErrAgain) {
			wait := policy.LingeringTimeout
			if remaining := time.Until(deadline); remaining < wait {
				wait = remaining
			}
			if wait <= 0 {
				return StatusOK
			}

			ctx.RefIncr()
			conn.ArmReadTimer(wait, func() {
				ctx.RefDecr()
			})
			conn.RegisterReadable(func() {
				ctx.RefDecr()
				conn.CancelReadTimer()
				discardDrain(ctx, rest, deadline)
			})
			return StatusOK
		}
		if err != nil || n == 0 {
			return StatusOK
		}
		rest -= int64(n)
	}
	return StatusOK
}
