// Package ndn provides the minimal wire data model this module needs: names,
// interests, data packets and signature info carrying the hash-chain
// NextHash extension. It deliberately does not implement a full NDN TLV
// codec — the real packet/TLV codec is an external collaborator per the
// segmented-transfer spec this module implements; what lives here is just
// enough concrete representation for the fetcher and signer to operate on
// and for tests to drive deterministically.
package ndn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Component is a single opaque name component. Most components are plain
// UTF-8 text; segment-number components hold an unsigned big-endian integer
// with no leading zero bytes (the same "minimal width" convention the
// teacher's chunker backend uses for its own chunk-number suffix).
type Component []byte

// String renders a component for logging. Segment-number components are not
// specially detected here; use ParseSegmentNumber for that.
func (c Component) String() string {
	return string(c)
}

// Equal reports whether two components hold the same bytes.
func (c Component) Equal(o Component) bool {
	return bytes.Equal(c, o)
}

// Name is an ordered sequence of components.
type Name []Component

// NameFromString builds a Name from a "/"-separated string, e.g. "/a/b/c".
// Empty components (leading/trailing/duplicate slashes) are dropped.
func NameFromString(s string) Name {
	parts := strings.Split(s, "/")
	n := make(Name, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		n = append(n, Component(p))
	}
	return n
}

// String renders the name "/"-joined, matching NameFromString's input shape.
func (n Name) String() string {
	var b strings.Builder
	for _, c := range n {
		b.WriteByte('/')
		b.Write(c)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Append returns a new Name with components appended; the receiver is left
// untouched.
func (n Name) Append(c ...Component) Name {
	out := make(Name, len(n)+len(c))
	copy(out, n)
	copy(out[len(n):], c)
	return out
}

// Prefix returns the first k components of n. A negative k counts back from
// the end, matching spec.md's "dataName.prefix(-1)" convention for dropping
// the final (segment-number) component.
func (n Name) Prefix(k int) Name {
	if k < 0 {
		k = len(n) + k
	}
	if k < 0 {
		k = 0
	}
	if k > len(n) {
		k = len(n)
	}
	out := make(Name, k)
	copy(out, n[:k])
	return out
}

// Equal reports whether two names hold the same ordered components.
func (n Name) Equal(o Name) bool {
	if len(n) != len(o) {
		return false
	}
	for i := range n {
		if !n[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether n is a component-wise prefix of o.
func (n Name) IsPrefixOf(o Name) bool {
	if len(n) > len(o) {
		return false
	}
	for i := range n {
		if !n[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Wire returns a deterministic byte encoding of the name, used internally
// as part of a Data packet's signed portion. It is not a general NDN TLV
// name encoding, only a stable internal representation.
func (n Name) Wire() []byte {
	var buf bytes.Buffer
	for _, c := range n {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c)))
		buf.Write(lenBuf[:])
		buf.Write(c)
	}
	return buf.Bytes()
}

// segmentMarker is the conventional marker byte prefixed to the raw
// big-endian segment number so a segment-number component can't be
// misparsed as arbitrary text appearing to be a number.
const segmentMarker = 0x00

// SegmentComponent builds the name component carrying a segment number,
// encoded as a marker byte followed by the minimal-width big-endian
// representation of n (no leading zero bytes, matching the convention
// backend/chunker/chunker.go uses for its own chunk-number suffix, here
// generalized to raw bytes instead of base-36 text).
func SegmentComponent(n uint64) Component {
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], n)
	i := 0
	for i < 8 && full[i] == 0 {
		i++
	}
	out := make(Component, 1+len(full[i:]))
	out[0] = segmentMarker
	copy(out[1:], full[i:])
	return out
}

// ParseSegmentNumber extracts the segment number from a component built by
// SegmentComponent. ok is false if c is not a well-formed segment component.
func ParseSegmentNumber(c Component) (n uint64, ok bool) {
	if len(c) < 1 || len(c) > 9 || c[0] != segmentMarker {
		return 0, false
	}
	var full [8]byte
	copy(full[8-(len(c)-1):], c[1:])
	return binary.BigEndian.Uint64(full[:]), true
}

// IsSegmentComponent reports whether c was built by SegmentComponent.
func IsSegmentComponent(c Component) bool {
	_, ok := ParseSegmentNumber(c)
	return ok
}

// LastSegmentNumber reports the segment number carried by the name's final
// component, as spec.md's fetcher uses throughout (dataName's last
// component, finalBlockId's component).
func (n Name) LastSegmentNumber() (uint64, bool) {
	if len(n) == 0 {
		return 0, false
	}
	return ParseSegmentNumber(n[len(n)-1])
}

// GoString satisfies fmt.GoStringer for nicer test failure output.
func (n Name) GoString() string {
	return fmt.Sprintf("ndn.NameFromString(%q)", n.String())
}
