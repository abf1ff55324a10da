package fetcher

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndnchain/hcfetch/cwnd"
	"github.com/ndnchain/hcfetch/face"
	"github.com/ndnchain/hcfetch/facetest"
	"github.com/ndnchain/hcfetch/ndn"
	"github.com/ndnchain/hcfetch/rtt"
	"github.com/ndnchain/hcfetch/security"
	"github.com/ndnchain/hcfetch/validator"
)

// testHarness wires a Fetcher to a facetest.Face driven by a real
// face.GoReactor, matching how a production caller assembles these pieces.
type testHarness struct {
	t        *testing.T
	ctx      context.Context
	cancel   context.CancelFunc
	reactor  *face.GoReactor
	face     *facetest.Face
	keystore *security.FileKeyStore
	done     chan struct{}
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := face.NewGoReactor()
	h := &testHarness{
		t:        t,
		ctx:      ctx,
		cancel:   cancel,
		reactor:  r,
		face:     facetest.New(r),
		keystore: security.NewFileKeyStore(t.TempDir(), "default"),
		done:     make(chan struct{}),
	}
	go func() {
		r.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

// signChain signs content under name using the harness's keystore and
// returns the packets (for building facetest.Rules); newValidator resolves
// the same keystore's public key.
func (h *testHarness) signChain(t *testing.T, name ndn.Name, content []byte, maxPayload int) []ndn.Data {
	t.Helper()
	signer := security.NewChainSigner(h.keystore)
	packets, err := signer.Sign(name, content, security.SignOptions{MaxPayload: maxPayload, Freshness: time.Second})
	require.NoError(t, err)
	return packets
}

func (h *testHarness) newValidator(t *testing.T) Validator {
	t.Helper()
	id, err := h.keystore.Default()
	require.NoError(t, err)
	resolver := validator.StaticKeyResolver{string(id.Name): &id.PrivateKey.PublicKey}
	ecdsaV := validator.NewECDSAValidator(resolver)
	return NewSyncValidatorAdapter(ecdsaV, h.reactor)
}

// waitFor blocks until cond returns true or the timeout elapses, polling
// cheaply; used because callbacks fire on the reactor goroutine, not the
// test goroutine.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true within timeout")
}

// TestFetcherSingleSegmentCompletes covers spec.md §8 scenario S1: a
// single-segment object fetched end to end.
func TestFetcherSingleSegmentCompletes(t *testing.T) {
	h := newHarness(t)
	name := ndn.NameFromString("/example/object")
	content := []byte("hello, single-segment object")
	packets := h.signChain(t, name, content, 1<<20)
	require.Len(t, packets, 1)

	h.face.Rules = []facetest.Rule{
		{Match: facetest.MatchAny(), Outcome: facetest.OutcomeData, Data: packets[0]},
	}

	var gotContent []byte
	var gotErr *FetchError
	ft := Start(h.ctx, h.face, name, h.newValidator(t), rtt.NewJacobsonEstimator(), DefaultOptions())
	ft.OnComplete.Connect(func(b []byte) { gotContent = b })
	ft.OnError.Connect(func(e *FetchError) { gotErr = e })

	waitFor(t, time.Second, func() bool { return gotContent != nil || gotErr != nil })
	require.Nil(t, gotErr)
	assert.True(t, bytes.Equal(content, gotContent))
}

// TestFetcherEmptyContentStillCompletes covers spec.md §8 scenario S6: an
// empty-input object still produces exactly one segment and completes.
func TestFetcherEmptyContentStillCompletes(t *testing.T) {
	h := newHarness(t)
	name := ndn.NameFromString("/example/empty")
	packets := h.signChain(t, name, nil, 1<<20)
	require.Len(t, packets, 1)

	h.face.Rules = []facetest.Rule{
		{Match: facetest.MatchAny(), Outcome: facetest.OutcomeData, Data: packets[0]},
	}

	var gotContent []byte
	var completed bool
	ft := Start(h.ctx, h.face, name, h.newValidator(t), rtt.NewJacobsonEstimator(), DefaultOptions())
	ft.OnComplete.Connect(func(b []byte) { gotContent = b; completed = true })

	waitFor(t, time.Second, func() bool { return completed })
	assert.Empty(t, gotContent)
}

// TestFetcherRetransmitsAfterTimeout covers spec.md §8 scenario S4: the
// first interest for a segment times out, the fetcher retransmits, and the
// retransmitted sample is excluded from the RTT estimator (Karn's rule).
func TestFetcherRetransmitsAfterTimeout(t *testing.T) {
	h := newHarness(t)
	name := ndn.NameFromString("/example/retx")
	content := bytes.Repeat([]byte("x"), 10)
	packets := h.signChain(t, name, content, 3) // 4 segments

	h.face.Rules = []facetest.Rule{
		// The very first discovery interest never resolves; DeliverTimeout
		// below fires it manually once it's outstanding.
		{Match: facetest.MatchDiscovery(), Outcome: facetest.OutcomeTimeout, Uses: 1},
		{Match: facetest.MatchDiscovery(), Outcome: facetest.OutcomeData, Data: packets[0]},
		{Match: facetest.MatchSegment(1), Outcome: facetest.OutcomeData, Data: packets[1]},
		{Match: facetest.MatchSegment(2), Outcome: facetest.OutcomeData, Data: packets[2]},
		{Match: facetest.MatchSegment(3), Outcome: facetest.OutcomeData, Data: packets[3]},
	}

	opts := DefaultOptions()
	opts.MaxTimeout = 10 * time.Second
	var gotContent []byte
	var completed bool
	ft := Start(h.ctx, h.face, name, h.newValidator(t), rtt.NewJacobsonEstimator(), opts)
	ft.OnComplete.Connect(func(b []byte) { gotContent = b; completed = true })

	waitFor(t, time.Second, func() bool { return len(h.face.Outstanding()) > 0 })
	for _, id := range h.face.Outstanding() {
		h.face.DeliverTimeout(id)
	}

	waitFor(t, 2*time.Second, func() bool { return completed })
	assert.True(t, bytes.Equal(content, gotContent))
}

// TestFetcherWindowDecreasesOnCongestionMark covers spec.md §8 scenario S5:
// segments 20 and 40 of a longer transfer arrive congestion-marked, which
// must drive windowDecrease once highData has actually advanced past the
// recovery point — not on the very first (discovery) response, where
// highData == recoveryPoint == 0 and no decrease should fire yet.
func TestFetcherWindowDecreasesOnCongestionMark(t *testing.T) {
	h := newHarness(t)
	name := ndn.NameFromString("/example/congestion")
	content := bytes.Repeat([]byte("y"), 41)
	packets := h.signChain(t, name, content, 1) // 41 segments, one byte each

	packets[20].CongestionMark = 1
	packets[40].CongestionMark = 1

	h.face.Rules = []facetest.Rule{
		{Match: facetest.MatchDiscovery(), Outcome: facetest.OutcomeData, Data: packets[0]},
	}
	for i := 1; i < len(packets); i++ {
		h.face.Rules = append(h.face.Rules, facetest.Rule{
			Match: facetest.MatchSegment(uint64(i)), Outcome: facetest.OutcomeData, Data: packets[i],
		})
	}

	var completed bool
	ft := Start(h.ctx, h.face, name, h.newValidator(t), rtt.NewJacobsonEstimator(), DefaultOptions())
	ft.OnComplete.Connect(func(b []byte) { completed = true })

	waitFor(t, time.Second, func() bool { return completed })
	// By segment 20, highData has already advanced well past the initial
	// recoveryPoint of 0, so the mark must have driven windowDecrease
	// (ssthresh dropped from its +Inf default). Slow start has grown cwnd
	// to 21 by then (one step for each of segments 0-19), so ssthresh
	// becomes 21 × mdCoef 0.5 = 10.5. That decrease moves the recovery
	// point to highInterest, already 40, so the mark on segment 40 does not
	// fire a second one; nothing afterwards raises ssthresh back up, so
	// this is decisive regardless of how cwnd itself drifted over the rest
	// of the transfer.
	assert.Equal(t, 10.5, ft.window.Ssthresh())
	assert.Greater(t, ft.window.Ssthresh(), cwnd.MinSsthresh)
}

// TestFetcherHashChainTamperDetected covers spec.md §8 scenario S3: a
// bit-flipped NextHash must surface HashChainError, not a silent success.
func TestFetcherHashChainTamperDetected(t *testing.T) {
	h := newHarness(t)
	name := ndn.NameFromString("/example/tampered")
	content := bytes.Repeat([]byte("z"), 20)
	packets := h.signChain(t, name, content, 5) // 4 segments
	packets[0].SigInfo.NextHash[0] ^= 0xFF       // corrupt the link to segment 1

	h.face.Rules = []facetest.Rule{
		{Match: facetest.MatchDiscovery(), Outcome: facetest.OutcomeData, Data: packets[0]},
	}
	for i := 1; i < len(packets); i++ {
		h.face.Rules = append(h.face.Rules, facetest.Rule{
			Match: facetest.MatchSegment(uint64(i)), Outcome: facetest.OutcomeData, Data: packets[i],
		})
	}

	var gotErr *FetchError
	var completed bool
	ft := Start(h.ctx, h.face, name, h.newValidator(t), rtt.NewJacobsonEstimator(), DefaultOptions())
	ft.OnComplete.Connect(func(b []byte) { completed = true })
	ft.OnError.Connect(func(e *FetchError) { gotErr = e })

	waitFor(t, time.Second, func() bool { return gotErr != nil || completed })
	require.NotNil(t, gotErr)
	assert.Equal(t, HashChainError, gotErr.Code)
	assert.False(t, completed)
}

// TestFetcherStopIsIdempotent covers spec.md §8's termination properties:
// Stop may be called any number of times and only tears down state once.
func TestFetcherStopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	name := ndn.NameFromString("/example/stop")
	h.face.Rules = []facetest.Rule{
		{Match: facetest.MatchAny(), Outcome: facetest.OutcomeDrop},
	}
	ft := Start(h.ctx, h.face, name, h.newValidator(t), rtt.NewJacobsonEstimator(), DefaultOptions())
	assert.NotPanics(t, func() {
		ft.Stop()
		ft.Stop()
		ft.Stop()
	})
}
