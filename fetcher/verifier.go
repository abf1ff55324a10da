package fetcher

import (
	"bytes"

	"github.com/ndnchain/hcfetch/ndn"
)

// chainVerifier implements spec.md §4.3's hash-chain verifier, layered on
// top of per-segment validation: it checks that segment N's own signature
// bytes equal segment N-1's NextHash field, tolerating out-of-order
// arrivals by skipping (not rejecting) segments that don't immediately
// extend the chain, and guards against systematic linkage omission with
// the anchored-count-vs-finalBlockId heuristic.
//
// DESIGN.md Open Question 1: the spec.md §9 "strict per-segment fail"
// variant is also available, gated by StrictHashChain, for compatibility
// with peers that expect every non-contiguous segment to fail outright.
type chainVerifier struct {
	havePrev          bool
	prevSegmentNumber uint64
	expected          ndn.NextHash
	haveExpected      bool
	verifiedCount     uint64
	strict            bool
}

func newChainVerifier(strict bool) *chainVerifier {
	return &chainVerifier{strict: strict}
}

// verifyResult is returned by verify: ok is false iff the segment must be
// treated as a fatal HASHCHAIN_ERROR.
type verifyResult struct {
	ok      bool
	message string
}

// verify implements the per-segment linkage algorithm of spec.md §4.3.
// The end-of-chain anchored-count guard is deliberately not run inline
// here: spec.md's scenario S2 requires that a final segment arriving out
// of order (before its predecessors) not fail immediately just because
// verifiedCount is still low at that instant — the guard only makes sense
// once the transfer has actually collected every segment, so it is
// exposed separately as finalCheck and the fetcher calls it once, at
// completion time, instead.
func (v *chainVerifier) verify(d ndn.Data) verifyResult {
	if !d.SigInfo.Type.IsHashChain() {
		// Outside the chain contract: accept as-is, don't touch state.
		return verifyResult{ok: true}
	}
	segNo, _ := d.SegmentNumber()

	switch {
	case segNo == 0:
		v.verifiedCount++
	case v.havePrev && segNo == v.prevSegmentNumber+1:
		// Direct continuation: a mismatch here is always fatal, in both
		// modes — this is the "strict check" the spec.md §9 design note
		// says the anchored-count heuristic promotes to fatal.
		if !v.haveExpected || !bytes.Equal(trimTo32(d.SignatureValue), v.expected[:]) {
			return verifyResult{ok: false, message: "Failure hash key error"}
		}
		v.verifiedCount++
	default:
		// Out-of-order arrival. The default (anchored-count heuristic)
		// path accepts it tentatively and relies on the end-of-chain
		// guard below to catch systematic linkage omission. StrictHashChain
		// rejects it immediately instead, for compatibility with peers
		// that never tolerate reordering (DESIGN.md Open Question 1).
		if v.strict {
			return verifyResult{ok: false, message: "out-of-order segment in strict hash-chain mode"}
		}
	}

	v.prevSegmentNumber = segNo
	v.havePrev = true
	if d.SigInfo.NextHash != nil {
		v.expected = *d.SigInfo.NextHash
		v.haveExpected = true
	} else {
		v.haveExpected = false
	}

	return verifyResult{ok: true}
}

// finalCheck runs spec.md §4.3's anchored-count guard against the final
// segment: "When segment_no == finalBlockId and verifiedCount <
// finalBlockId/2 → HASHCHAIN_ERROR". Called once the fetcher has received
// every segment 0..finalBlockID, not at the moment the final-numbered
// packet happens to arrive (see verify's doc comment).
func (v *chainVerifier) finalCheck(finalBlockID uint64) verifyResult {
	if v.verifiedCount < finalBlockID/2 {
		return verifyResult{ok: false, message: "insufficient anchored segments"}
	}
	return verifyResult{ok: true}
}

func trimTo32(b []byte) []byte {
	if len(b) <= 32 {
		return b
	}
	return b[:32]
}
