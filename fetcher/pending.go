package fetcher

import (
	"time"

	"github.com/ndnchain/hcfetch/face"
)

// PendingState is a PendingSegment's position in the request lifecycle
// (spec.md §3's PendingSegment).
type PendingState int

const (
	// FirstInterest is the state of a segment whose first (and so far
	// only) interest is outstanding; its RTT sample, if any, is eligible
	// for the RTT estimator (Karn's rule).
	FirstInterest PendingState = iota
	// InRetxQueue is the state of a segment that has timed out and is
	// waiting its turn in the retransmission FIFO.
	InRetxQueue
	// Retransmitted is the state of a segment whose interest has been
	// re-sent at least once; its eventual RTT sample is excluded from the
	// estimator.
	Retransmitted
)

// PendingSegment tracks one not-yet-received segment's request state
// (spec.md §3).
type PendingSegment struct {
	SegmentNumber uint64
	State         PendingState
	SendTime      time.Time
	Handle        face.PendingInterestID
	Timeout       time.Duration
}

// pendingTable is the keyed-by-segment-number map of outstanding requests,
// plus the FIFO of segments waiting for retransmission.
type pendingTable struct {
	bySegment map[uint64]*PendingSegment
	retxFIFO  []uint64
}

func newPendingTable() *pendingTable {
	return &pendingTable{bySegment: make(map[uint64]*PendingSegment)}
}

func (t *pendingTable) add(p *PendingSegment) {
	t.bySegment[p.SegmentNumber] = p
}

func (t *pendingTable) get(seg uint64) (*PendingSegment, bool) {
	p, ok := t.bySegment[seg]
	return p, ok
}

func (t *pendingTable) remove(seg uint64) {
	delete(t.bySegment, seg)
}

func (t *pendingTable) len() int {
	return len(t.bySegment)
}

// earliest returns the PendingSegment with the lowest segment number,
// used to match the discovery response (spec.md §4.2 step 2: "if first
// response of the transfer... match the earliest entry").
func (t *pendingTable) earliest() (*PendingSegment, bool) {
	var best *PendingSegment
	for _, p := range t.bySegment {
		if best == nil || p.SegmentNumber < best.SegmentNumber {
			best = p
		}
	}
	return best, best != nil
}

func (t *pendingTable) enqueueRetx(seg uint64) {
	t.retxFIFO = append(t.retxFIFO, seg)
}

func (t *pendingTable) dequeueRetx() (uint64, bool) {
	for len(t.retxFIFO) > 0 {
		seg := t.retxFIFO[0]
		t.retxFIFO = t.retxFIFO[1:]
		if _, ok := t.bySegment[seg]; ok {
			return seg, true
		}
		// segment was removed (e.g. trimmed after finalBlockId shrank the
		// object) between being queued and being drained; skip it.
	}
	return 0, false
}

// removeAtOrAbove cancels and drops every pending segment numbered >= n,
// per spec.md §4.2 post-validation step 4: "cancel any pending requests
// with segment-number ≥ nSegments".
func (t *pendingTable) removeAtOrAbove(n uint64) []*PendingSegment {
	var removed []*PendingSegment
	for seg, p := range t.bySegment {
		if seg >= n {
			removed = append(removed, p)
			delete(t.bySegment, seg)
		}
	}
	return removed
}
