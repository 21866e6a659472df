package body

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kelindar/bitmap"

	bodyerrors "github.com/omalloc/reqbody/pkg/errors"
	"github.com/omalloc/reqbody/pkg/iobuf"
)

// writeJob is one batch of live bytes destined for the SpillFile, queued so
// the read path never blocks on disk latency. A job with a non-nil done
// channel is a drain barrier: the writer goroutine closes it once every
// job queued ahead of it has been applied.
type writeJob struct {
	buf    []byte
	offset int64
	done   chan struct{}
}

// SpillFile is the lazily-created temporary file that accumulates body
// bytes once memory buffers overflow or file-only policy demands it (spec
// §4.3). Writes are batched through an async writer goroutine grounded on
// the same decoupling idiom as a savepart-style reader, and flushed blocks
// are tracked in a bitmap purely for diagnostics — the on-disk format
// remains the flat, unframed byte stream spec §6 requires.
type SpillFile struct {
	dir         string
	path        string
	persistent  bool
	clean       bool
	groupAccess bool
	blockSize   int64

	mu      sync.Mutex
	f       *os.File
	offset  int64
	flushed bitmap.Bitmap

	writeCh  chan writeJob
	writeWg  sync.WaitGroup
	writeMu  sync.Mutex
	writeErr error
	closed   bool
}

// NewSpillFile constructs a SpillFile record without creating the
// underlying file; creation happens lazily on the first Write (spec
// §4.3's "on first write").
func NewSpillFile(dir string, groupAccess, persistent, clean bool, blockSize int) *SpillFile {
	if blockSize <= 0 {
		blockSize = 1 << 15
	}
	s := &SpillFile{
		dir:         dir,
		groupAccess: groupAccess,
		persistent:  persistent,
		clean:       clean,
		blockSize:   int64(blockSize),
		writeCh:     make(chan writeJob, 16),
	}
	s.writeWg.Add(1)
	go s.runWriter()
	return s
}

func (s *SpillFile) runWriter() {
	defer s.writeWg.Done()
	for job := range s.writeCh {
		if job.done != nil {
			close(job.done)
			continue
		}
		if err := s.writeAt(job); err != nil {
			s.writeMu.Lock()
			if s.writeErr == nil {
				s.writeErr = err
			}
			s.writeMu.Unlock()
		}
	}
}

func (s *SpillFile) writeAt(job writeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	n, err := s.f.WriteAt(job.buf, job.offset)
	if err != nil {
		return err
	}
	if n != len(job.buf) {
		return fmt.Errorf("spillfile: short write at offset %d: wrote %d of %d", job.offset, n, len(job.buf))
	}
	s.flushed.Set(uint32(job.offset / s.blockSize))
	return nil
}

func (s *SpillFile) ensureOpenLocked() error {
	if s.f != nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	mode := os.FileMode(0o600)
	if s.groupAccess {
		mode = 0o660
	}
	s.path = filepath.Join(s.dir, randomSuffix("reqbody-spill"))
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	s.f = f
	if s.clean {
		// unlink immediately so the file exists only through the open fd.
		_ = os.Remove(s.path)
	}
	return nil
}

func randomSuffix(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return prefix + "-" + hex.EncodeToString(buf)
}

// Write appends chain's uncommitted live byte ranges to the file (spec
// §4.3). If chain is empty this only ensures the file has been created,
// covering the empty-body/file-only preallocation case (S2).
func (s *SpillFile) Write(chain *Chain, fromIdx int) error {
	s.writeMu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.writeMu.Unlock()
		return bodyerrors.New(int(StatusInternalError), nil).WithCause(err)
	}
	s.writeMu.Unlock()

	if fromIdx >= len(chain.Nodes) {
		s.mu.Lock()
		err := s.ensureOpenLocked()
		s.mu.Unlock()
		if err != nil {
			return bodyerrors.New(int(StatusInternalError), nil).WithCause(err)
		}
		return nil
	}

	for _, node := range chain.Nodes[fromIdx:] {
		if node.Kind != SegmentMemory {
			continue
		}
		live := node.uncommitted()
		if len(live) == 0 {
			continue
		}
		buf := make([]byte, len(live))
		copy(buf, live)

		offset := s.offset
		s.offset += int64(len(buf))
		node.markCommitted()

		select {
		case s.writeCh <- writeJob{buf: buf, offset: offset}:
		default:
			s.writeCh <- writeJob{buf: buf, offset: offset}
		}
	}
	return nil
}

// Drain blocks until every queued write has completed and reports the
// first write error encountered, if any. It must be called before the
// SpillFile's size (Offset) is trusted, e.g. before finalizing the chain.
func (s *SpillFile) Drain() error {
	s.writeMu.Lock()
	err := s.writeErr
	s.writeMu.Unlock()
	if err != nil {
		return bodyerrors.New(int(StatusInternalError), nil).WithCause(err)
	}

	// A barrier job rides the same FIFO channel as real writes; once the
	// writer goroutine closes it, everything enqueued ahead of it has been
	// applied.
	done := make(chan struct{})
	s.writeCh <- writeJob{done: done}
	<-done

	s.writeMu.Lock()
	err = s.writeErr
	s.writeMu.Unlock()
	if err != nil {
		return bodyerrors.New(int(StatusInternalError), nil).WithCause(err)
	}
	return nil
}

// Offset reports the number of bytes queued for the file so far; after a
// successful Drain all of them are on disk.
func (s *SpillFile) Offset() int64 {
	return s.offset
}

// FlushedBlocks exposes the bitmap of committed block indices for
// diagnostics. Each applied write sets the bit of the block its first byte
// falls in.
func (s *SpillFile) FlushedBlocks() bitmap.Bitmap {
	return s.flushed
}

// Path returns the synthesized temp-file path, valid once the file has
// been created.
func (s *SpillFile) Path() string {
	return s.path
}

// OpenRange opens the spilled file for reading back bytes [start, end) of
// the body it holds, for a caller that wants to serve a previously
// ingested body back out (e.g. an audit/debug endpoint). Drain must have
// completed first, or bytes still sitting in the write queue won't be on
// disk yet.
func (s *SpillFile) OpenRange(start, end int64) (io.ReadCloser, error) {
	s.mu.Lock()
	path := s.path
	total := s.offset
	s.mu.Unlock()

	if path == "" {
		return nil, fmt.Errorf("spillfile: not yet created")
	}
	return OpenFileRange(path, start, end, total)
}

// OpenFileRange opens path and returns a reader over bytes [start, end),
// clamped to size. It only needs a path and a known size, not a live
// SpillFile, so an audit/debug endpoint can serve a persistent spill file
// back out long after the originating SpillFile has been closed.
func OpenFileRange(path string, start, end, size int64) (io.ReadCloser, error) {
	if end > size {
		end = size
	}
	if start < 0 || start > end {
		return nil, fmt.Errorf("spillfile: invalid range [%d, %d) of %d", start, end, size)
	}
	if start == end {
		return io.NopCloser(new(bytes.Reader)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	seeked := iobuf.SeekReadCloser(f, start)
	return iobuf.LimitReadCloser(seeked, end-start), nil
}

// Close stops the async writer and applies the persistent/clean
// disposition (spec §4.3): non-persistent files are unlinked at teardown;
// clean files were already unlinked at open.
func (s *SpillFile) Close() error {
	s.mu.Lock()
	closed := s.closed
	s.closed = true
	s.mu.Unlock()
	if closed {
		return nil
	}

	close(s.writeCh)
	s.writeWg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	if !s.persistent && !s.clean && s.path != "" {
		_ = os.Remove(s.path)
	}
	return err
}
