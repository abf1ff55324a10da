// Package security implements the producer-side hash-chain signer
// (spec.md §4.1): a keyed ECDSA signature on the chain head and cheap,
// keyless hash "signatures" on every other segment, each one's
// SignatureInfo.NextHash carrying the raw signature bytes of the segment
// that follows it.
package security

import (
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2s"
	minsha256 "github.com/minio/sha256-simd"
	"lukechampine.com/blake3"
)

// DigestAlgorithm selects the keyless hash used for every non-head segment
// of a chain. spec.md §1 names SHA-256, BLAKE2s and BLAKE3 as the
// candidate primitives the signer may use; the chain-head signature itself
// is always ECDSA over SHA-256, independent of this choice.
type DigestAlgorithm int

const (
	// DigestSHA256 uses github.com/minio/sha256-simd, an AVX2/SHA-NI
	// accelerated drop-in replacement for crypto/sha256 also pulled in by
	// the teacher's b2 and s3 backends for upload content hashing.
	DigestSHA256 DigestAlgorithm = iota
	DigestBLAKE2s
	DigestBLAKE3
)

// ErrUnknownDigestAlgorithm is returned by ParseDigestAlgorithm for an
// unrecognized name.
var ErrUnknownDigestAlgorithm = fmt.Errorf("unknown digest algorithm")

// ParseDigestAlgorithm turns a config/flag string into a DigestAlgorithm.
func ParseDigestAlgorithm(s string) (DigestAlgorithm, error) {
	switch strings.ToLower(s) {
	case "sha256", "":
		return DigestSHA256, nil
	case "blake2s":
		return DigestBLAKE2s, nil
	case "blake3":
		return DigestBLAKE3, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDigestAlgorithm, s)
	}
}

func (a DigestAlgorithm) String() string {
	switch a {
	case DigestSHA256:
		return "sha256"
	case DigestBLAKE2s:
		return "blake2s"
	case DigestBLAKE3:
		return "blake3"
	default:
		return "unknown"
	}
}

// New returns a fresh hash.Hash for the algorithm. All three options
// produce 32-byte digests, matching ndn.NextHashSize exactly.
func (a DigestAlgorithm) New() hash.Hash {
	switch a {
	case DigestBLAKE2s:
		h, err := blake2s.New256(nil)
		if err != nil {
			// blake2s.New256 only errors on a too-long key; we pass nil.
			panic(err)
		}
		return h
	case DigestBLAKE3:
		return blake3.New(32, nil)
	default:
		return minsha256.New()
	}
}
