package body

import "strings"

// expectContinueResponse is the single wire artifact this package emits
// (spec §6).
const expectContinueResponse = "HTTP/1.1 100 Continue\r\n\r\n"

// NegotiateExpect implements ExpectNegotiator (spec §4.1). It is invoked
// once per request at the start of BodyIngress and DiscardEngine.
func NegotiateExpect(ctx RequestContext) Status {
	if ctx.ExpectTested() {
		return StatusOK
	}
	ctx.SetExpectTested()

	if !ctx.IsHTTP11() {
		return StatusOK
	}

	value := ctx.ExpectHeader()
	if len(value) != len("100-continue") || !strings.EqualFold(value, "100-continue") {
		return StatusOK
	}

	n, err := ctx.Conn().Send([]byte(expectContinueResponse))
	if err != nil || n != len(expectContinueResponse) {
		// a would-block on this tiny fixed write is assumed not to happen
		// and is therefore treated the same as any other failure.
		return StatusInternalError
	}
	return StatusOK
}
