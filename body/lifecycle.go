package body

// complete performs the single synchronous-or-asynchronous success path:
// decrement the reference count incremented at ingestion start and invoke
// the completion callback exactly once (spec §5: "the completion callback
// is invoked at most once per request").
func complete(ctx RequestContext, post PostHandler) Status {
	ctx.RefDecr()
	if post != nil {
		post(ctx)
	}
	return StatusOK
}

// fail is used for failures discovered synchronously within the call that
// originated the operation; the status is returned to that caller and
// never routed through Finalize (spec §7).
func fail(ctx RequestContext, status Status) Status {
	ctx.RefDecr()
	if logger := ctx.Logger(); logger != nil {
		logger.Warnf("body ingestion failed synchronously: %s", status)
	}
	return status
}

// failAsync is used for failures discovered from a read or timer event,
// after the originating synchronous call has already returned Again; there
// is no return channel left, so the status is hand off to the
// request-finalize primitive instead (spec §7).
func failAsync(ctx RequestContext, status Status) Status {
	ctx.RefDecr()
	if logger := ctx.Logger(); logger != nil {
		logger.Warnf("body ingestion failed asynchronously: %s", status)
	}
	ctx.Finalize(status)
	return status
}
