package fetcher

// ReceivedSegmentBuffer maps segment number to the raw content bytes of a
// validated-but-not-yet-delivered segment (spec.md §3). Ordered delivery
// erases entries as they drain; whole-object mode retains every entry
// until finalization so it can concatenate in order.
type ReceivedSegmentBuffer struct {
	bySegment map[uint64][]byte
}

func newReceivedSegmentBuffer() *ReceivedSegmentBuffer {
	return &ReceivedSegmentBuffer{bySegment: make(map[uint64][]byte)}
}

// Put stores content for segment n.
func (b *ReceivedSegmentBuffer) Put(n uint64, content []byte) {
	b.bySegment[n] = content
}

// Get returns the content stored for segment n, if any.
func (b *ReceivedSegmentBuffer) Get(n uint64) ([]byte, bool) {
	v, ok := b.bySegment[n]
	return v, ok
}

// Delete erases segment n's entry.
func (b *ReceivedSegmentBuffer) Delete(n uint64) {
	delete(b.bySegment, n)
}

// Len reports how many segments are currently buffered.
func (b *ReceivedSegmentBuffer) Len() int {
	return len(b.bySegment)
}

// Concatenate returns the byte-for-byte join of every segment 0..n-1, used
// by whole-object finalization. A missing segment contributes no bytes,
// so callers must only invoke this once every segment has arrived.
func (b *ReceivedSegmentBuffer) Concatenate(n uint64) []byte {
	var total int
	for i := uint64(0); i < n; i++ {
		total += len(b.bySegment[i])
	}
	out := make([]byte, 0, total)
	for i := uint64(0); i < n; i++ {
		out = append(out, b.bySegment[i]...)
	}
	return out
}
