package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndLookupRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	e := &Entry{
		RequestID:  "req-1",
		Status:     200,
		Bytes:      1024,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	require.NoError(t, store.Record(e))

	got, err := store.Lookup("req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, e.RequestID, got.RequestID)
	require.Equal(t, e.Status, got.Status)
	require.Equal(t, e.Bytes, got.Bytes)

	total, err := store.RequestsTotal()
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestLookupMissingReturnsNil(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Lookup("nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRecordCompressesLargeSpillPath(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	e := &Entry{
		RequestID: "req-big",
		Status:    200,
		Bytes:     1 << 20,
		SpillPath: string(make([]byte, 1024)),
	}
	require.NoError(t, store.Record(e))

	got, err := store.Lookup("req-big")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, e.Bytes, got.Bytes)
}
