package ndn

import "encoding/binary"

// SignatureType identifies the signing scheme used on a Data packet's
// signature-value. The two HashChain* constants are this module's own
// extension (spec.md §4.1/§6); their numeric codepoints are chosen high
// enough to stay clear of the standard NDN registry's allocated range.
type SignatureType uint32

// Signature types. SignatureSha256WithEcdsa is the ordinary asymmetric
// signature used by the chain head's predecessor normalization
// (spec.md §9 resolves this ambiguity to SignatureHashChainEcdsa, kept here
// only as the type a non-chain Data packet would carry).
const (
	SignatureSha256WithEcdsa SignatureType = 3
	SignatureHashChainSha256 SignatureType = 100
	SignatureHashChainEcdsa  SignatureType = 101
)

// IsHashChain reports whether t is one of the two hash-chain signature
// types the verifier (package fetcher) treats as being inside the chain
// contract (spec.md §4.3).
func (t SignatureType) IsHashChain() bool {
	return t == SignatureHashChainSha256 || t == SignatureHashChainEcdsa
}

func (t SignatureType) String() string {
	switch t {
	case SignatureSha256WithEcdsa:
		return "Sha256WithEcdsa"
	case SignatureHashChainSha256:
		return "HashChainSha256"
	case SignatureHashChainEcdsa:
		return "HashChainEcdsa"
	default:
		return "Unknown"
	}
}

// NextHashSize is the fixed width of the NextHash field (spec.md §3: "32
// raw bytes").
const NextHashSize = 32

// NextHash carries the raw signature bytes of the next-numbered segment, or
// 32 zero bytes for the last segment in the object (spec.md §3/§4.1).
type NextHash [NextHashSize]byte

// ZeroNextHash is the well-known terminal value carried by the last segment
// of an object.
var ZeroNextHash NextHash

// IsZero reports whether h is the all-zero terminal marker.
func (h NextHash) IsZero() bool {
	return h == ZeroNextHash
}

// NextHashFromSignature truncates/pads a raw signature value into a
// NextHash. Hash-chain signatures (SHA-256, BLAKE2s, BLAKE3) all produce
// exactly 32 bytes, so this is a direct copy in the default configuration;
// it is defensive against any wider signature as chain-head predecessor
// per spec.md §4.1's "raw-signature-bytes(i)".
func NextHashFromSignature(sig []byte) NextHash {
	var h NextHash
	copy(h[:], sig)
	return h
}

// SignatureInfo is the signed metadata carried alongside a Data packet's
// signature value (spec.md §3). KeyLocator names the signing identity for
// asymmetric signature types; it is unused (nil) for hash-chain types.
type SignatureInfo struct {
	Type        SignatureType
	KeyLocator  []byte
	NextHash    *NextHash // present iff Type.IsHashChain()
	InContent   bool      // spec.md §6: NextHash carried in HashContent instead
}

// Wire returns a deterministic encoding of the signature info suitable for
// inclusion in a Data packet's signed portion. NextHash is only included
// here when it is not being carried out-of-band inside HashContent
// (spec.md §6's optional alternative placement, DESIGN.md Open Question 2).
func (si SignatureInfo) Wire() []byte {
	buf := make([]byte, 0, 4+len(si.KeyLocator)+1+NextHashSize)
	var typeBuf [4]byte
	binary.BigEndian.PutUint32(typeBuf[:], uint32(si.Type))
	buf = append(buf, typeBuf[:]...)
	buf = append(buf, si.KeyLocator...)
	if si.NextHash != nil && !si.InContent {
		buf = append(buf, 1)
		buf = append(buf, si.NextHash[:]...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// HashContentType/HashContentNextHashType are the experimental TLV
// codepoints spec.md §6 allocates for carrying NextHash inside application
// content rather than signature-info.
const (
	HashContentType         = 900
	HashContentNextHashType = 901
)

// HashContent is the optional experimental container of spec.md §6, used
// only when SignatureInfo.InContent is set. It wraps the real payload
// together with the NextHash value that would otherwise live in
// SignatureInfo.
type HashContent struct {
	NextHash NextHash
	Content  []byte
}

// Encode renders a HashContent using the same length-prefixed shape as
// Name.Wire, for internal consistency.
func (hc HashContent) Encode() []byte {
	buf := make([]byte, 0, NextHashSize+4+len(hc.Content))
	buf = append(buf, hc.NextHash[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hc.Content)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, hc.Content...)
	return buf
}

// DecodeHashContent reverses Encode.
func DecodeHashContent(b []byte) (HashContent, bool) {
	if len(b) < NextHashSize+4 {
		return HashContent{}, false
	}
	var hc HashContent
	copy(hc.NextHash[:], b[:NextHashSize])
	n := binary.BigEndian.Uint32(b[NextHashSize : NextHashSize+4])
	rest := b[NextHashSize+4:]
	if uint32(len(rest)) < n {
		return HashContent{}, false
	}
	hc.Content = append([]byte(nil), rest[:n]...)
	return hc, true
}
