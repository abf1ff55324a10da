package fetcher

import (
	"testing"

	"github.com/ndnchain/hcfetch/ndn"
	"github.com/ndnchain/hcfetch/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestChain(t *testing.T, content []byte, maxPayload int) []ndn.Data {
	t.Helper()
	dir := t.TempDir()
	signer := security.NewChainSigner(security.NewFileKeyStore(dir, "default"))
	packets, err := signer.Sign(ndn.NameFromString("/a/data"), content, security.SignOptions{MaxPayload: maxPayload})
	require.NoError(t, err)
	return packets
}

func TestChainVerifierAcceptsReorderedDeliveryS2(t *testing.T) {
	packets := signTestChain(t, []byte("AAAABBBBCCCC"), 4)
	require.Len(t, packets, 3)

	v := newChainVerifier(false)
	order := []int{2, 0, 1}
	var finalBlockID uint64 = 2
	for _, idx := range order {
		res := v.verify(packets[idx])
		assert.True(t, res.ok, "segment %d should not fail verification inline", idx)
	}
	res := v.finalCheck(finalBlockID)
	assert.True(t, res.ok, "chain should close successfully once all segments are in, regardless of arrival order")
}

func TestChainVerifierDetectsTamperedNextHashS3(t *testing.T) {
	packets := signTestChain(t, []byte("AAAABBBBCCCC"), 4)
	require.Len(t, packets, 3)

	packets[0].SigInfo.NextHash[0] ^= 0xFF

	v := newChainVerifier(false)
	res := v.verify(packets[0])
	require.True(t, res.ok)
	res = v.verify(packets[1])
	assert.False(t, res.ok, "bit-flipped NextHash must be caught as soon as the next segment in order arrives")
}

func TestChainVerifierNonChainSignatureTypeBypassesLinkage(t *testing.T) {
	v := newChainVerifier(false)
	d := ndn.Data{
		Name:    ndn.NameFromString("/a/data").Append(ndn.SegmentComponent(5)),
		SigInfo: ndn.SignatureInfo{Type: ndn.SignatureSha256WithEcdsa},
	}
	res := v.verify(d)
	assert.True(t, res.ok)
	assert.Equal(t, uint64(0), v.verifiedCount)
}

func TestChainVerifierStrictModeRejectsOutOfOrder(t *testing.T) {
	packets := signTestChain(t, []byte("AAAABBBBCCCC"), 4)
	require.Len(t, packets, 3)

	v := newChainVerifier(true)
	res := v.verify(packets[2]) // arrives first, out of order
	assert.False(t, res.ok)
}
