package body

// invokeFilter calls the filter pipeline head with view and applies the
// return-code translation rule from spec §7.
func invokeFilter(ctx RequestContext, view []byte) Status {
	filter := ctx.FilterHead()
	if filter == nil {
		return StatusOK
	}
	return translateFilterStatus(filter(ctx, view))
}
