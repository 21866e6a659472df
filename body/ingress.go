package body

// ReadClientRequestBody is BodyIngress (spec §4.2): the upward entry point a
// handler calls to start consuming the request body. post is invoked at
// most once, either before this call returns (the body was already
// available, e.g. empty or fully preread) or later from a read/timer event.
func ReadClientRequestBody(ctx RequestContext, post PostHandler) Status {
	ctx.RefIncr()

	if ctx.RequestBody() != nil || ctx.DiscardMode() {
		return complete(ctx, post)
	}

	if status := NegotiateExpect(ctx); status.Failed() {
		return fail(ctx, status)
	}

	rb := &RequestBody{Chain: NewChain(), Post: post}
	policy := ctx.Policy()

	contentLength := ctx.ContentLength()
	if contentLength < 0 {
		// No declared length: mirror the source's silent success, the body
		// is never consumed (spec §9 Open Question — preserved as-is).
		ctx.SetRequestBody(rb)
		return complete(ctx, post)
	}

	if contentLength == 0 {
		if policy.InFileOnly {
			rb.Spill = NewSpillFile(policy.ClientBodyTempPath, policy.GroupAccess, policy.Persistent, policy.Clean, policy.SpillBlockSize)
			if err := rb.Spill.Write(rb.Chain, 0); err != nil {
				return fail(ctx, StatusInternalError)
			}
			if err := rb.Spill.Drain(); err != nil {
				return fail(ctx, StatusInternalError)
			}
			rb.Chain.Append(&Segment{Kind: SegmentFile, Spill: rb.Spill})
		}
		ctx.SetRequestBody(rb)
		return complete(ctx, post)
	}

	hb := ctx.HeaderBuffer()
	preread := hb.Preread()

	var b *Segment
	if preread > 0 {
		b = AliasSegment(hb.Buf, hb.Pos, hb.Pos, hb.Last, hb.End)
		rb.Chain.Append(b)
		rb.Active = b

		clampedLast := hb.Pos + int(contentLength)
		if clampedLast > hb.Last {
			clampedLast = hb.Last
		}
		status := invokeFilter(ctx, hb.Buf[hb.Pos:clampedLast])
		if status == StatusAgain {
			return StatusAgain
		}
		if status.Failed() {
			return fail(ctx, status)
		}

		if int64(preread) >= contentLength {
			hb.Pos += int(contentLength)
			b.Last = hb.Pos
			ctx.RequestLengthAdd(contentLength)

			if policy.InFileOnly {
				if err := collapseToFile(ctx, rb); err != nil {
					return fail(ctx, StatusInternalError)
				}
			}
			ctx.SetRequestBody(rb)
			return complete(ctx, post)
		}

		hb.Pos = hb.Last
		ctx.RequestLengthAdd(int64(preread))
		rb.Rest = contentLength - int64(preread)

		if rb.Rest <= int64(b.End-b.Last) {
			rb.ToWrite = 0
			ctx.SetRequestBody(rb)
			return enterReadEngine(ctx, rb)
		}
	} else {
		rb.Rest = contentLength
	}

	nominal := policy.NominalBufferSize()
	var size int
	if rb.Rest < int64(nominal) {
		size = int(rb.Rest)
		if policy.InSingleBuf {
			size += preread
		}
	} else {
		size = policy.ClientBodyBufferSize
	}

	nb := NewMemorySegment(make([]byte, size))
	rb.Chain.Append(nb)
	rb.Active = nb

	if b != nil && policy.InSingleBuf {
		n := copy(nb.Buf[:preread], b.Buf[b.Start:b.Last])
		nb.Last = n
		rb.Chain.Nodes = []*Segment{nb}
	}

	if policy.InFileOnly || policy.InSingleBuf {
		rb.ToWrite = 0
	} else {
		rb.ToWrite = len(rb.Chain.Nodes) - 1
	}

	ctx.SetRequestBody(rb)
	return enterReadEngine(ctx, rb)
}

// collapseToFile flushes rb's chain to its SpillFile and replaces the
// exposed chain with the single File segment in_file_only requires, even
// when the body never reached ReadEngine (e.g. it was fully preread).
func collapseToFile(ctx RequestContext, rb *RequestBody) error {
	if rb.Spill == nil {
		rb.Spill = NewSpillFile(ctx.Policy().ClientBodyTempPath, ctx.Policy().GroupAccess, ctx.Policy().Persistent, ctx.Policy().Clean, ctx.Policy().SpillBlockSize)
	}
	if err := rb.Spill.Write(rb.Chain, 0); err != nil {
		return err
	}
	if err := rb.Spill.Drain(); err != nil {
		return err
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
	return nil
}

// enterReadEngine drives ReadEngine for the first, synchronous call. A
// failure discovered here is returned to the caller directly rather than
// routed through Finalize (spec §7's synchronous error channel).
func enterReadEngine(ctx RequestContext, rb *RequestBody) Status {
	status := doRead(ctx, rb)
	switch status {
	case StatusAgain:
		return StatusAgain
	case StatusOK:
		return complete(ctx, rb.Post)
	default:
		return fail(ctx, status)
	}
}
