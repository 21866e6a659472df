package body

import (
	"errors"
	"time"
)

// ErrAgain is returned by Conn.Recv and Conn.Send when the operation would
// block. It is the non-blocking-I/O counterpart of body's StatusAgain and
// is never wrapped or translated on its way out of the engine — callers
// test for it with errors.Is.
var ErrAgain = errors.New("body: operation would block")

// Conn is the downward, non-blocking connection contract a request context
// must provide (spec §6). The engine never calls a blocking read or write;
// an implementation backed by a real blocking net.Conn is free to simply
// never return ErrAgain, which degrades the outer/inner read loops to a
// plain blocking drain without changing their correctness.
type Conn interface {
	// Recv reads into p without blocking. It returns (0, ErrAgain) if no
	// data is currently available, (0, nil) on a clean close by the peer,
	// and (n, nil) for n > 0 bytes read.
	Recv(p []byte) (int, error)
	// Send writes p without blocking, returning the number of bytes
	// actually transmitted. A short write is not retried by the caller.
	Send(p []byte) (int, error)
	// RegisterReadable arranges for h to be invoked the next time the
	// connection becomes readable, exactly once.
	RegisterReadable(h func())
	// ArmReadTimer (re-)arms a deadline that invokes h if it fires before
	// being cancelled by CancelReadTimer.
	ArmReadTimer(d time.Duration, h func())
	// CancelReadTimer disarms a previously armed read timer. It is a
	// no-op if none is armed.
	CancelReadTimer()
	// BlockReading reinstalls the connection's idle read handler, the
	// state a connection sits in between requests.
	BlockReading()
}
