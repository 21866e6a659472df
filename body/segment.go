package body

// SegmentKind tags which variant of Segment is populated.
type SegmentKind int

const (
	SegmentMemory SegmentKind = iota
	SegmentFile
)

// Segment is one node of the body representation, backed by either a
// memory range or a file range (spec §3). The four-cursor layout on the
// Memory variant (start ≤ pos ≤ last ≤ end) is a design choice, not a
// language feature; Pos is kept separate from the ingestion cursor Last so a
// downstream reader can advance it independently.
type Segment struct {
	Kind SegmentKind

	// Memory fields.
	Buf                     []byte
	Start, Pos, Last, End   int
	committed               int // bytes of [Start,Last) already handed to SpillFile

	// File fields.
	Spill                 *SpillFile
	FileStart, FileLast   int64
}

// NewMemorySegment allocates a Memory segment over buf with cursors at
// start, uninitialized contents, sized by len(buf).
func NewMemorySegment(buf []byte) *Segment {
	return &Segment{
		Kind: SegmentMemory,
		Buf:  buf,
		End:  len(buf),
	}
}

// AliasSegment returns a Memory segment that borrows buf[pos:last] without
// copying, used to expose the preread region of the header buffer.
func AliasSegment(buf []byte, start, pos, last, end int) *Segment {
	return &Segment{
		Kind:  SegmentMemory,
		Buf:   buf,
		Start: start,
		Pos:   pos,
		Last:  last,
		End:   end,
	}
}

// Len reports the number of live bytes in the segment.
func (s *Segment) Len() int64 {
	if s.Kind == SegmentFile {
		return s.FileLast - s.FileStart
	}
	return int64(s.Last - s.Start)
}

// Full reports whether a Memory segment has no remaining capacity.
func (s *Segment) Full() bool {
	return s.Kind == SegmentMemory && s.Last == s.End
}

// View returns the bytes appended since the last call that advanced Last,
// i.e. the slice a caller just wrote into before advancing Last itself.
// It is used to build the transient per-recv Segment view handed to the
// filter pipeline.
func (s *Segment) View(from int) []byte {
	return s.Buf[from:s.Last]
}

// uncommitted returns the live bytes of a Memory segment that have not yet
// been handed to SpillFile.
func (s *Segment) uncommitted() []byte {
	from := s.Start + s.committed
	if from >= s.Last {
		return nil
	}
	return s.Buf[from:s.Last]
}

func (s *Segment) markCommitted() {
	s.committed = s.Last - s.Start
}

// Chain is the ordered sequence of Segments exposed to downstream code.
type Chain struct {
	Nodes []*Segment
}

func NewChain() *Chain {
	return &Chain{Nodes: make([]*Segment, 0, 2)}
}

func (c *Chain) Append(s *Segment) {
	c.Nodes = append(c.Nodes, s)
}

// ReplaceFrom replaces c.Nodes[idx:] with a single segment, used by
// ReadEngine finalization to splice in the collapsed File segment.
func (c *Chain) ReplaceFrom(idx int, s *Segment) {
	if idx >= len(c.Nodes) {
		c.Append(s)
		return
	}
	c.Nodes = append(c.Nodes[:idx], s)
}

// DropHead advances the chain head past n leading nodes, used to collapse
// a multi-node chain down to the single canonical segment in_file_only and
// in_single_buf demand.
func (c *Chain) DropHead(n int) {
	c.Nodes = c.Nodes[n:]
}

// TotalLen sums Len() across every node.
func (c *Chain) TotalLen() int64 {
	var n int64
	for _, s := range c.Nodes {
		n += s.Len()
	}
	return n
}
