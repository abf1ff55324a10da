package fetcher

import (
	"github.com/ndnchain/hcfetch/face"
	"github.com/ndnchain/hcfetch/ndn"
	"github.com/ndnchain/hcfetch/validator"
)

// Validator is the fetcher's asynchronous validation contract (spec.md
// §6): validate runs in the background (here: synchronously, then its
// result is posted back) and resolves via exactly one of onSuccess or
// onFailure, delivered on the reactor.
type Validator interface {
	Validate(d ndn.Data, onSuccess func(ndn.Data), onFailure func(ndn.Data, error))
}

// SyncValidatorAdapter adapts a synchronous validator.Validator into the
// fetcher's asynchronous Validator contract by posting the result back
// through the Face's reactor, so callers always observe validation
// outcomes on the single fetcher thread of control even though the
// underlying check ran inline.
//
// Only the chain head (ndn.SignatureHashChainEcdsa) or a plain
// non-hash-chain signature is handed to the wrapped validator.Validator —
// spec.md §4.1 gives every other segment a keyless digest that no
// KeyResolver can check; its authenticity instead comes from the
// hash-chain linkage the fetcher's chainVerifier checks separately in
// onValidated. Treating those as a validator.ErrUnsupportedSignatureType
// failure here would reject every non-head segment of every transfer.
type SyncValidatorAdapter struct {
	Validator validator.Validator
	Reactor   face.Reactor
}

// NewSyncValidatorAdapter wraps v so it can serve as a fetcher Validator.
func NewSyncValidatorAdapter(v validator.Validator, r face.Reactor) *SyncValidatorAdapter {
	return &SyncValidatorAdapter{Validator: v, Reactor: r}
}

// Validate implements Validator.
func (a *SyncValidatorAdapter) Validate(d ndn.Data, onSuccess func(ndn.Data), onFailure func(ndn.Data, error)) {
	var err error
	if d.SigInfo.Type == ndn.SignatureHashChainSha256 {
		// Non-head chain segment: no asymmetric signature to check here.
	} else {
		err = a.Validator.Validate(d)
	}
	a.Reactor.Post(func() {
		if err != nil {
			onFailure(d, err)
			return
		}
		onSuccess(d)
	})
}
