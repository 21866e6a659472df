package body

import "time"

// Policy holds the per-location configuration switches that drive body
// ingestion. Field names track the CLI/config surface named in spec §6.
type Policy struct {
	// InFileOnly forces every body, even an empty one, to be spilled; the
	// final chain exposed to the completion callback is always a single
	// File segment.
	InFileOnly bool
	// InSingleBuf forces the final chain to be a single segment; any preread
	// is copied into the fresh buffer rather than aliased. When the body fits
	// that buffer the segment is one contiguous Memory segment; a body that
	// overflows it is spilled and the single segment is a File segment.
	InSingleBuf bool
	// GroupAccess requests 0660 permissions on the SpillFile instead of
	// the default 0600.
	GroupAccess bool
	// Persistent keeps the SpillFile on disk after the request completes.
	Persistent bool
	// Clean unlinks the SpillFile immediately after it is opened, so it
	// exists only through the held file descriptor.
	Clean bool
	// ClientBodyBufferSize is the capacity of a fresh memory buffer. A body
	// remainder smaller than size + size/4 gets a buffer of exactly that
	// remainder instead.
	ClientBodyBufferSize int
	// ClientBodyTimeout bounds a single read-readiness wait.
	ClientBodyTimeout time.Duration
	// ClientBodyTempPath is the directory new SpillFiles are created
	// under.
	ClientBodyTempPath string
	// LingeringTime bounds the total wall-clock budget DiscardEngine will
	// spend draining a body past what the handler consumed.
	LingeringTime time.Duration
	// LingeringTimeout bounds a single DiscardEngine read-readiness wait.
	LingeringTimeout time.Duration
	// SpillBlockSize is the block size SpillFile's flushed-block bitmap is
	// indexed by; it has no effect on how writes are queued or on the
	// on-disk format, which remains a flat, unframed byte stream.
	SpillBlockSize int
}

// NominalBufferSize returns size + size/4, the threshold BodyIngress sizes a
// fresh memory buffer by: a remainder below it gets a buffer of exactly the
// remainder, anything else gets ClientBodyBufferSize.
func (p *Policy) NominalBufferSize() int {
	return p.ClientBodyBufferSize + p.ClientBodyBufferSize/4
}

// DefaultPolicy returns sane defaults matching the magnitudes used
// throughout spec.md's scenarios.
func DefaultPolicy() *Policy {
	return &Policy{
		ClientBodyBufferSize: 16 * 1024,
		ClientBodyTimeout:    60 * time.Second,
		ClientBodyTempPath:   "/tmp",
		LingeringTime:        30 * time.Second,
		LingeringTimeout:     5 * time.Second,
		SpillBlockSize:       1 << 15,
	}
}
