// Package validator implements the asymmetric-signature verification step
// used on a chain's head segment (spec.md §6's "Validator (consumed)"
// external interface); every other segment is checked by the hash-chain
// logic in package fetcher instead of here.
package validator

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/ndnchain/hcfetch/ndn"
)

// ErrSignatureInvalid is returned when a Data's signature does not verify
// against the resolved public key.
var ErrSignatureInvalid = errors.New("validator: signature verification failed")

// ErrUnsupportedSignatureType is returned when asked to validate a Data
// whose SignatureInfo.Type this Validator does not know how to check.
var ErrUnsupportedSignatureType = errors.New("validator: unsupported signature type")

// KeyResolver maps a Data's KeyLocator bytes to the public key that should
// have signed it, e.g. a lookup against a known-identities trust anchor
// set. Production deployments would resolve this over the network
// (fetching a certificate Data packet); spec.md's Non-goals exclude that
// entire certificate-fetch flow, so this module takes a resolver as a
// dependency instead of implementing one.
type KeyResolver interface {
	Resolve(keyLocator []byte) (*ecdsa.PublicKey, error)
}

// Validator checks a Data packet's SignatureValue against its SignedPortion.
type Validator interface {
	Validate(d ndn.Data) error
}

// ECDSAValidator validates ndn.SignatureHashChainEcdsa (and, for
// completeness, plain ndn.SignatureSha256WithEcdsa) signed Data packets.
type ECDSAValidator struct {
	Keys KeyResolver
}

// NewECDSAValidator constructs an ECDSAValidator backed by keys.
func NewECDSAValidator(keys KeyResolver) *ECDSAValidator {
	return &ECDSAValidator{Keys: keys}
}

// Validate implements Validator.
func (v *ECDSAValidator) Validate(d ndn.Data) error {
	switch d.SigInfo.Type {
	case ndn.SignatureHashChainEcdsa, ndn.SignatureSha256WithEcdsa:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSignatureType, d.SigInfo.Type)
	}
	pub, err := v.Keys.Resolve(d.SigInfo.KeyLocator)
	if err != nil {
		return fmt.Errorf("validator: resolving key locator: %w", err)
	}
	digest := sha256.Sum256(d.SignedPortion())
	if !ecdsa.VerifyASN1(pub, digest[:], d.SignatureValue) {
		return ErrSignatureInvalid
	}
	return nil
}

// StaticKeyResolver is a fixed name-to-key map, adequate for the reference
// CLIs and tests where the consumer already knows the producer's public
// key out of band.
type StaticKeyResolver map[string]*ecdsa.PublicKey

// Resolve implements KeyResolver.
func (m StaticKeyResolver) Resolve(keyLocator []byte) (*ecdsa.PublicKey, error) {
	pub, ok := m[string(keyLocator)]
	if !ok {
		return nil, fmt.Errorf("validator: no key for locator %q", keyLocator)
	}
	return pub, nil
}

// PublicKeyFromPKIX parses a DER-encoded SubjectPublicKeyInfo ECDSA key,
// the standard interchange form for handing a producer's public key to a
// consumer out of band.
func PublicKeyFromPKIX(der []byte) (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("validator: parsing public key: %w", err)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("validator: key is not ECDSA")
	}
	return ecdsaPub, nil
}
