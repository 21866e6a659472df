package body

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpillFileOpenRangeReadsBackSubset(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, true, false, 1<<12)

	chain := NewChain()
	seg := NewMemorySegment([]byte("hello, spilled world"))
	seg.Last = len(seg.Buf)
	chain.Append(seg)

	require.NoError(t, s.Write(chain, 0))
	require.NoError(t, s.Drain())

	r, err := s.OpenRange(7, 15)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "spilled ", string(got))
}

func TestSpillFileOpenRangeEmptyRange(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, true, false, 1<<12)

	chain := NewChain()
	seg := NewMemorySegment([]byte("abc"))
	seg.Last = len(seg.Buf)
	chain.Append(seg)

	require.NoError(t, s.Write(chain, 0))
	require.NoError(t, s.Drain())

	r, err := s.OpenRange(2, 2)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSpillFileOpenRangeClampsPastEOF(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, true, false, 1<<12)

	chain := NewChain()
	seg := NewMemorySegment([]byte("abcdef"))
	seg.Last = len(seg.Buf)
	chain.Append(seg)

	require.NoError(t, s.Write(chain, 0))
	require.NoError(t, s.Drain())

	r, err := s.OpenRange(3, 1000)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "def", string(got))
}
