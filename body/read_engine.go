package body

import "errors"

// doRead is ReadEngine (spec §4.4). It drains the connection until either
// Rest reaches zero (finalization runs and StatusOK is returned), the
// connection reports Again (a timer and a readability callback are armed
// and StatusAgain is returned), or a terminal failure occurs. The nested
// outer/inner loop structure of the source collapses into one loop here:
// Go's Conn contract surfaces "not ready" only as a Recv result, so there is
// no separate readiness poll to drive a second loop around.
func doRead(ctx RequestContext, rb *RequestBody) Status {
	policy := ctx.Policy()
	conn := ctx.Conn()

	for {
		active := rb.Active

		if active.Full() {
			if rb.Spill == nil {
				rb.Spill = NewSpillFile(policy.ClientBodyTempPath, policy.GroupAccess, policy.Persistent, policy.Clean, policy.SpillBlockSize)
			}
			if err := rb.Spill.Write(rb.Chain, rb.ToWrite); err != nil {
				return StatusInternalError
			}
			rb.ToWrite = indexOfNode(rb.Chain, active)
			active.Last = active.Start
			active.committed = 0
		}

		size := active.End - active.Last
		if int64(size) > rb.Rest {
			size = int(rb.Rest)
		}

		n, err := conn.Recv(active.Buf[active.Last : active.Last+size])
		if errors.Is(err, ErrAgain) {
			conn.ArmReadTimer(policy.ClientBodyTimeout, func() {
				failAsync(ctx, StatusRequestTimeout)
			})
			conn.RegisterReadable(func() {
				resumeRead(ctx, rb)
			})
			return StatusAgain
		}
		if err != nil {
			return StatusBadRequest
		}
		if n == 0 {
			return StatusBadRequest
		}

		from := active.Last
		active.Last += n
		rb.Rest -= int64(n)
		ctx.RequestLengthAdd(int64(n))

		if status := invokeFilter(ctx, active.View(from)); status != StatusOK {
			return status
		}

		if rb.Rest == 0 {
			return finalizeRead(ctx, rb)
		}
	}
}

// resumeRead re-enters ReadEngine from a readability callback after a
// previous Again; it owns the async completion path since no synchronous
// caller is left waiting.
func resumeRead(ctx RequestContext, rb *RequestBody) {
	ctx.Conn().CancelReadTimer()
	status := doRead(ctx, rb)
	switch status {
	case StatusAgain:
		return
	case StatusOK:
		complete(ctx, rb.Post)
	default:
		failAsync(ctx, status)
	}
}

// indexOfNode returns the index of s within chain, or len(chain.Nodes) if
// not present (which only happens if the caller already mutated the
// chain's tail in a way that dropped s — not expected in normal operation).
func indexOfNode(chain *Chain, s *Segment) int {
	for i, n := range chain.Nodes {
		if n == s {
			return i
		}
	}
	return len(chain.Nodes)
}

// finalizeRead implements ReadEngine's finalization (spec §4.4): cancel the
// read timer, flush any remaining live bytes to the SpillFile (creating it
// first under in_file_only), collapse a multi-node chain to its last node
// under in_file_only/in_single_buf, and reinstall the connection's idle read
// handler.
func finalizeRead(ctx RequestContext, rb *RequestBody) Status {
	conn := ctx.Conn()
	conn.CancelReadTimer()

	policy := ctx.Policy()

	if rb.Spill == nil && policy.InFileOnly {
		rb.Spill = NewSpillFile(policy.ClientBodyTempPath, policy.GroupAccess, policy.Persistent, policy.Clean, policy.SpillBlockSize)
	}

	if rb.Spill != nil {
		if err := rb.Spill.Write(rb.Chain, rb.ToWrite); err != nil {
			return StatusInternalError
		}
		if err := rb.Spill.Drain(); err != nil {
			return StatusInternalError
		}
		fileSeg := &Segment{Kind: SegmentFile, Spill: rb.Spill, FileStart: 0, FileLast: rb.Spill.Offset()}
		if len(rb.Chain.Nodes) >= 2 {
			rb.Chain.ReplaceFrom(1, fileSeg)
		} else {
			rb.Chain.ReplaceFrom(0, fileSeg)
		}
		if metric := ctx.Metrics(); metric != nil {
			metric.SpillBytes = uint64(rb.Spill.Offset())
		}
	}

	if (policy.InFileOnly || policy.InSingleBuf) && len(rb.Chain.Nodes) > 1 {
		rb.Chain.DropHead(len(rb.Chain.Nodes) - 1)
	}

	conn.BlockReading()
	return StatusOK
}
