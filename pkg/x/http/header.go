package http

import (
	"net/http"
	"strings"
)

// IsChunked reports whether h declares a chunked Transfer-Encoding. Chunked
// bodies must already be resolved into a content length before reaching
// this module's ingestion core (spec Non-goal: chunked transfer-encoding
// decoding); the HTTP front end calls this to reject them ahead of
// ingestion instead of letting them fall through as an absent content
// length.
//
// see https://www.rfc-editor.org/rfc/rfc9112.html#name-chunked-transfer-coding
func IsChunked(h http.Header) bool {
	for _, v := range strings.Split(h.Get("Transfer-Encoding"), ",") {
		if strings.EqualFold(strings.TrimSpace(v), "chunked") {
			return true
		}
	}
	return false
}
