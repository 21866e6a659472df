// Package body implements client request-body ingestion for a single-
// threaded, cooperatively-scheduled HTTP worker: buffering bytes in memory
// up to a configurable threshold, spilling the remainder to a temp file,
// driving an externally-supplied filter pipeline over each newly-acquired
// byte range, and negotiating Expect: 100-continue.
//
// Nothing in this package blocks. Conn.Recv/Send report ErrAgain instead of
// blocking. ReadClientRequestBody then returns StatusAgain to mean "call me
// back later" rather than suspending a goroutine; DiscardRequestBody arms its
// readability callback and returns StatusOK. A caller wired to a real
// blocking connection can ignore this and treat ErrAgain as impossible.
package body
