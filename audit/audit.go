// Package audit persists a durable record of every completed ingestion —
// request id, terminal status, byte count, and spill-file disposition — in
// a pebble-backed key/value store, following a shared-KV counter-store
// pattern. It exists alongside the in-memory Prometheus counters in
// package metrics: those answer "how is ingestion doing right now", this
// answers "what happened to request X".
package audit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cockroachdb/pebble/v2"
	"github.com/fxamacker/cbor/v2"
)

// compressThreshold is the encoded-entry size above which Record applies
// brotli before writing; small entries aren't worth the CPU.
const compressThreshold = 256

const (
	flagRaw    byte = 0x00
	flagBrotli byte = 0x01
)

// Entry is one completed ingestion's audit record.
type Entry struct {
	RequestID  string    `cbor:"id"`
	Status     int       `cbor:"status"`
	Bytes      int64     `cbor:"bytes"`
	SpillPath  string    `cbor:"spill_path,omitempty"`
	StartedAt  time.Time `cbor:"started_at"`
	FinishedAt time.Time `cbor:"finished_at"`
}

// Store is a pebble-backed append-mostly ledger of Entries, keyed by
// RequestID, plus one running counter (requests_total) maintained with
// serialized read-modify-write batches.
type Store struct {
	db *pebble.DB

	counterMu sync.Mutex
}

// Open creates or reopens a Store rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func entryKey(requestID string) []byte {
	return append([]byte("entry:"), requestID...)
}

// Record writes e, compressing the encoded payload with brotli once it
// crosses compressThreshold.
func (s *Store) Record(e *Entry) error {
	data, err := cbor.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode entry %s: %w", e.RequestID, err)
	}

	flag := flagRaw
	if len(data) > compressThreshold {
		if compressed := brotliCompress(data); len(compressed) < len(data) {
			data = compressed
			flag = flagBrotli
		}
	}

	payload := make([]byte, 1+len(data))
	payload[0] = flag
	copy(payload[1:], data)

	if err := s.db.Set(entryKey(e.RequestID), payload, pebble.NoSync); err != nil {
		return fmt.Errorf("audit: write entry %s: %w", e.RequestID, err)
	}
	return s.incrCounter(counterKey("requests_total"), 1)
}

func brotliCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

// Lookup returns the Entry recorded for requestID, or (nil, nil) if none
// exists.
func (s *Store) Lookup(requestID string) (*Entry, error) {
	data, closer, err := s.db.Get(entryKey(requestID))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: read entry %s: %w", requestID, err)
	}
	cp := append([]byte(nil), data...)
	_ = closer.Close()

	if len(cp) == 0 {
		return nil, nil
	}
	flag, payload := cp[0], cp[1:]
	if flag == flagBrotli {
		decoded, err := brotliDecompress(payload)
		if err != nil {
			return nil, fmt.Errorf("audit: decompress entry %s: %w", requestID, err)
		}
		payload = decoded
	}

	var e Entry
	if err := cbor.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("audit: decode entry %s: %w", requestID, err)
	}
	return &e, nil
}

func brotliDecompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func counterKey(name string) []byte {
	return append([]byte("counter:"), name...)
}

// incrCounter atomically adds delta to the uint64 counter stored at key,
// grounded on the shared-KV store's indexed-batch increment pattern.
func (s *Store) incrCounter(key []byte, delta int64) error {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	batch := s.db.NewIndexedBatch()
	defer func() { _ = batch.Close() }()

	var current uint64
	if data, closer, err := batch.Get(key); err == nil {
		if len(data) == 8 {
			current = binary.BigEndian.Uint64(data)
		}
		_ = closer.Close()
	} else if err != pebble.ErrNotFound {
		return err
	}

	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, uint64(int64(current)+delta))
	if err := batch.Set(key, next, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.NoSync)
}

// RequestsTotal returns the running count of recorded entries.
func (s *Store) RequestsTotal() (uint64, error) {
	data, closer, err := s.db.Get(counterKey("requests_total"))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	defer func() { _ = closer.Close() }()
	if len(data) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(data), nil
}

// Close releases the underlying pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}
