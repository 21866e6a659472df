package body

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpillFileWriteDrainReadsBack(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, false, false, 16)
	defer s.Close()

	chain := NewChain()
	seg := NewMemorySegment([]byte("hello world"))
	seg.Last = len(seg.Buf)
	chain.Append(seg)

	require.NoError(t, s.Write(chain, 0))
	require.NoError(t, s.Drain())
	require.EqualValues(t, len("hello world"), s.Offset())

	got, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestSpillFileWriteIsIdempotentPerSegment(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, false, false, 16)
	defer s.Close()

	chain := NewChain()
	seg := NewMemorySegment([]byte("abc"))
	seg.Last = len(seg.Buf)
	chain.Append(seg)

	require.NoError(t, s.Write(chain, 0))
	require.NoError(t, s.Write(chain, 0)) // nothing new since markCommitted
	require.NoError(t, s.Drain())
	require.EqualValues(t, 3, s.Offset())
}

func TestSpillFileCleanRemovesFileOnOpen(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, false, true, 16)
	defer s.Close()

	chain := NewChain()
	seg := NewMemorySegment([]byte("xyz"))
	seg.Last = len(seg.Buf)
	chain.Append(seg)

	require.NoError(t, s.Write(chain, 0))
	require.NoError(t, s.Drain())

	_, err := os.Stat(s.Path())
	require.True(t, os.IsNotExist(err), "clean unlinks the path immediately after open")
}

func TestSpillFilePersistentSurvivesClose(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, true, false, 16)

	chain := NewChain()
	seg := NewMemorySegment([]byte("keep me"))
	seg.Last = len(seg.Buf)
	chain.Append(seg)

	require.NoError(t, s.Write(chain, 0))
	require.NoError(t, s.Drain())
	path := s.Path()
	require.NoError(t, s.Close())

	_, err := os.Stat(path)
	require.NoError(t, err, "persistent spill files outlive Close")
	_ = os.Remove(filepath.Join(dir, filepath.Base(path)))
}

func TestSpillFileEmptyWriteStillCreatesFile(t *testing.T) {
	dir := t.TempDir()
	s := NewSpillFile(dir, false, false, false, 16)
	defer s.Close()

	require.NoError(t, s.Write(NewChain(), 0))
	require.NoError(t, s.Drain())
	_, err := os.Stat(s.Path())
	require.NoError(t, err)
}
