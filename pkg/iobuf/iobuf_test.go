package iobuf_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/omalloc/reqbody/pkg/iobuf"
	"github.com/stretchr/testify/require"
)

func TestSeekReadCloserStartsAtOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := iobuf.SeekReadCloser(f, 4)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "456789", string(got))
}

func TestSeekReadCloserWriteTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("abcdefgh"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := iobuf.SeekReadCloser(f, 3)
	var buf bytes.Buffer
	n, err := r.(io.WriterTo).WriteTo(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
	require.Equal(t, "defgh", buf.String())
}

func TestLimitReadCloserCapsBytes(t *testing.T) {
	r := iobuf.LimitReadCloser(io.NopCloser(bytes.NewReader([]byte("0123456789"))), 4)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "0123", string(got))
}

func TestLimitReadCloserWriteTo(t *testing.T) {
	r := iobuf.LimitReadCloser(io.NopCloser(bytes.NewReader([]byte("0123456789"))), 3)
	var buf bytes.Buffer
	n, err := r.(io.WriterTo).WriteTo(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.Equal(t, "012", buf.String())
}
