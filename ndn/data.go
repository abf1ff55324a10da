package ndn

import (
	"encoding/binary"
	"time"
)

// Data is a named, signed content object (spec.md §3). FinalBlockId, when
// non-nil, names the segment component of the last segment belonging to
// the same object as Name — the fetcher uses it to learn the object's
// total length without having to probe past the end.
type Data struct {
	Name            Name
	Content         []byte
	FreshnessPeriod time.Duration
	FinalBlockID    Component
	SigInfo         SignatureInfo
	SignatureValue  []byte
	// CongestionMark is the three-bit field a Face may stamp on forwarding
	// to signal queue buildup (spec.md §4.2's congestion-mark handling).
	CongestionMark uint8
}

// SegmentNumber reports the segment number carried by Name's final
// component.
func (d Data) SegmentNumber() (uint64, bool) {
	return d.Name.LastSegmentNumber()
}

// IsFinalBlock reports whether Name's final component equals FinalBlockID,
// i.e. whether this is the last segment of the object.
func (d Data) IsFinalBlock() bool {
	if len(d.FinalBlockID) == 0 || len(d.Name) == 0 {
		return false
	}
	return d.Name[len(d.Name)-1].Equal(d.FinalBlockID)
}

// FinalSegmentNumber parses FinalBlockID as a segment number, per spec.md
// §4.2's "finalBlockId's component" reference.
func (d Data) FinalSegmentNumber() (uint64, bool) {
	return ParseSegmentNumber(d.FinalBlockID)
}

// SignedPortion returns the bytes the signer signs over and the verifier
// re-derives independently: name, content, freshness period, final block
// id and signature info (excluding the signature value itself). This
// mirrors the teacher's chunked-upload convention of hashing exactly the
// bytes that will be re-fetched, nothing more.
func (d Data) SignedPortion() []byte {
	buf := make([]byte, 0, len(d.Content)+64)
	buf = append(buf, d.Name.Wire()...)
	buf = append(buf, d.Content...)

	var freshBuf [8]byte
	binary.BigEndian.PutUint64(freshBuf[:], uint64(d.FreshnessPeriod))
	buf = append(buf, freshBuf[:]...)

	var fbLen [4]byte
	binary.BigEndian.PutUint32(fbLen[:], uint32(len(d.FinalBlockID)))
	buf = append(buf, fbLen[:]...)
	buf = append(buf, d.FinalBlockID...)

	buf = append(buf, d.SigInfo.Wire()...)
	return buf
}
