// Package fetcher implements the consumer-side segment fetcher (spec.md
// §4.2) and the hash-chain verifier layered on top of it (§4.3): the
// congestion-controlled, retry-handling, ordering-aware engine that
// reliably retrieves every segment of a named object over a lossy
// request/response substrate.
package fetcher

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ndnchain/hcfetch/cwnd"
	"github.com/ndnchain/hcfetch/face"
	"github.com/ndnchain/hcfetch/ndn"
	"github.com/ndnchain/hcfetch/rtt"
	"github.com/ndnchain/hcfetch/signal"
)

// Callbacks are the fetcher's typed observable channels (spec.md §4.2's
// "start(...) → Fetcher" public contract). Connect a handler on any of
// these before the fetch completes; event delivery order follows §5's
// ordering guarantees.
type Callbacks struct {
	OnComplete            *signal.Signal[[]byte]
	OnInOrderData         *signal.Signal[[]byte]
	OnInOrderComplete     *signal.Signal[struct{}]
	AfterSegmentReceived  *signal.Signal[ndn.Data]
	AfterSegmentValidated *signal.Signal[ndn.Data]
	AfterSegmentNacked    *signal.Signal[ndn.Nack]
	AfterSegmentTimedOut  *signal.Signal[uint64]
	OnError               *signal.Signal[*FetchError]
}

func newCallbacks() Callbacks {
	return Callbacks{
		OnComplete:            signal.New[[]byte](),
		OnInOrderData:         signal.New[[]byte](),
		OnInOrderComplete:     signal.New[struct{}](),
		AfterSegmentReceived:  signal.New[ndn.Data](),
		AfterSegmentValidated: signal.New[ndn.Data](),
		AfterSegmentNacked:    signal.New[ndn.Nack](),
		AfterSegmentTimedOut:  signal.New[uint64](),
		OnError:               signal.New[*FetchError](),
	}
}

// Fetcher drives retrieval of every segment belonging to one versioned
// object. All of its state is touched only from callbacks delivered by
// its Face's reactor (spec.md §5) — it holds no lock. Construct one with
// Start.
type Fetcher struct {
	Callbacks

	ctx       context.Context
	face      face.Face
	validator Validator
	rttEst    rtt.Estimator
	opts      Options
	window    *cwnd.Window
	verifier  *chainVerifier
	pending   *pendingTable
	buf       *ReceivedSegmentBuffer
	log       *logrus.Entry

	basePrefix        ndn.Name
	discovered        bool
	versionedDataName ndn.Name

	nextSegmentNum   uint64
	receivedSet      map[uint64]bool
	haveHighInterest bool
	highInterest     uint64
	haveHighData     bool
	highData         uint64
	haveNSegments    bool
	nSegments        uint64
	nextInOrder      uint64
	lastReceivedTime time.Time

	haveRecoveryPoint bool
	recoveryPoint     uint64

	stopped atomic.Bool
}

// Start begins retrieval of the object named by baseInterest, expressing
// a discovery interest immediately (spec.md §4.2's entry step). opts
// should originate from DefaultOptions(), with fields overridden as
// needed — a zero-value Options pins the congestion window at zero.
func Start(ctx context.Context, f face.Face, baseInterest ndn.Name, v Validator, rttEst rtt.Estimator, opts Options) *Fetcher {
	ft := &Fetcher{
		Callbacks:        newCallbacks(),
		ctx:              ctx,
		face:             f,
		validator:        v,
		rttEst:           rttEst,
		opts:             opts,
		window:           newWindow(opts),
		verifier:         newChainVerifier(opts.StrictHashChain),
		pending:          newPendingTable(),
		buf:              newReceivedSegmentBuffer(),
		log:              logrus.WithField("component", "fetcher"),
		basePrefix:       baseInterest,
		receivedSet:      make(map[uint64]bool),
		lastReceivedTime: time.Now(),
	}
	ft.log.WithField("prefix", baseInterest.String()).Debug("starting fetch")
	ft.sendDiscoveryInterestWithTimeout(ft.requestTimeout())
	return ft
}

func newWindow(opts Options) *cwnd.Window {
	wopts := []cwnd.Option{
		cwnd.InitialCwnd(opts.InitCwnd),
		cwnd.AIStep(opts.AIStep),
		cwnd.MDCoef(opts.MDCoef),
	}
	if opts.InitSsthresh > 0 {
		wopts = append(wopts, cwnd.InitialSsthresh(opts.InitSsthresh))
	}
	if opts.UseConstantCwnd {
		wopts = append(wopts, cwnd.Constant(true))
	}
	if opts.ResetCwndToInit {
		wopts = append(wopts, cwnd.ResetToInitOnDecrease(true))
	}
	return cwnd.New(wopts...)
}

// Stop cancels every pending interest and ends the fetch without firing
// onComplete/onInOrderComplete/onError. It is idempotent (spec.md's
// property 6): the atomic.Bool gate is this module's idiomatic-Go
// substitute for the weak-self-reference cancellation spec.md §9
// describes — once flipped, every in-flight callback that later observes
// it simply returns without side effects.
func (ft *Fetcher) Stop() {
	if !ft.stopped.CompareAndSwap(false, true) {
		return
	}
	ft.cleanup()
}

// CwndSize reports the current congestion window size, for callers (e.g.
// the reference CLIs' metrics export) that want to observe it without
// reaching into the fetcher's internals.
func (ft *Fetcher) CwndSize() float64 {
	return ft.window.Size()
}

func (ft *Fetcher) cleanup() {
	for _, p := range ft.pending.bySegment {
		ft.face.RemovePendingInterest(p.Handle)
	}
	ft.pending = newPendingTable()
}

// nextNonce mints a fresh interest nonce from a random UUID, truncated to
// the 4 bytes the wire format carries — cheaper than tracking a counter
// across retransmissions and collision-free in practice at this scale.
func (ft *Fetcher) nextNonce() uint32 {
	id := uuid.New()
	return binary.BigEndian.Uint32(id[:4])
}

// requestTimeout picks the InterestLifetime carried on the next interest:
// either the fixed configured lifetime, or the RTT estimator's current RTO
// capped at that same lifetime so a single slow segment can't make the
// fetcher wait longer than its own configured ceiling before retrying.
func (ft *Fetcher) requestTimeout() time.Duration {
	if ft.opts.UseConstantInterestTimeout {
		return ft.opts.InterestLifetime
	}
	if rto := ft.rttEst.RTO(); rto < ft.opts.InterestLifetime {
		return rto
	}
	return ft.opts.InterestLifetime
}

func (ft *Fetcher) sendDiscoveryInterestWithTimeout(lifetime time.Duration) {
	interest := ndn.DiscoveryInterest(ft.basePrefix, lifetime, ft.nextNonce())
	p := &PendingSegment{SegmentNumber: 0, State: FirstInterest, SendTime: time.Now(), Timeout: lifetime}
	ft.pending.add(p)
	ft.expressTracked(interest, p)
}

func (ft *Fetcher) requestSegment(seg uint64) {
	lifetime := ft.requestTimeout()
	name := ft.versionedDataName.Append(ndn.SegmentComponent(seg))
	interest := ndn.NewInterest(name, lifetime, ft.nextNonce())
	p := &PendingSegment{SegmentNumber: seg, State: FirstInterest, SendTime: time.Now(), Timeout: lifetime}
	ft.pending.add(p)
	if !ft.haveHighInterest || seg > ft.highInterest {
		ft.highInterest = seg
		ft.haveHighInterest = true
	}
	ft.expressTracked(interest, p)
}

func (ft *Fetcher) retransmitSegment(seg uint64) {
	p, ok := ft.pending.get(seg)
	if !ok {
		return
	}
	name := ft.versionedDataName.Append(ndn.SegmentComponent(seg))
	interest := ndn.NewInterest(name, p.Timeout, ft.nextNonce())
	p.State = Retransmitted
	p.SendTime = time.Now()
	ft.expressTracked(interest, p)
}

func (ft *Fetcher) expressTracked(interest ndn.Interest, p *PendingSegment) {
	handle, err := ft.face.Express(ft.ctx, interest,
		func(i ndn.Interest, d ndn.Data) { ft.onData(i, d) },
		func(i ndn.Interest, n ndn.Nack) { ft.onNack(i, n) },
		func(i ndn.Interest) { ft.onTimeout(i, p) },
	)
	if err != nil {
		ft.signalError(InterestTimeout, "express failed: "+err.Error())
		return
	}
	p.Handle = handle
}

// onData implements spec.md §4.2's per-response handling, steps 1-4.
func (ft *Fetcher) onData(_ ndn.Interest, d ndn.Data) {
	if ft.stopped.Load() {
		return
	}
	segNo, ok := d.SegmentNumber()
	if !ok {
		ft.signalError(DataHasNoSegment, "data name's final component is not a segment number")
		return
	}

	var p *PendingSegment
	if !ft.discovered {
		p, ok = ft.pending.earliest()
	} else {
		p, ok = ft.pending.get(segNo)
	}
	if !ok {
		return // stale or duplicate response: drop silently
	}

	ft.face.RemovePendingInterest(p.Handle)
	ft.AfterSegmentReceived.Emit(d)

	ft.validator.Validate(d,
		func(d ndn.Data) { ft.onValidated(p, segNo, d) },
		func(_ ndn.Data, err error) { ft.signalError(SegmentValidationFail, err.Error()) },
	)
}

// onValidated implements spec.md §4.2's post-validation steps 1-9.
func (ft *Fetcher) onValidated(p *PendingSegment, segNo uint64, d ndn.Data) {
	if ft.stopped.Load() {
		return
	}

	now := time.Now()
	ft.lastReceivedTime = now
	if p.State == FirstInterest {
		ft.rttEst.AddMeasurement(now.Sub(p.SendTime), ft.pending.len())
	}

	ft.pending.remove(p.SegmentNumber)
	ft.buf.Put(segNo, segmentPayload(d))
	ft.receivedSet[segNo] = true
	if !ft.haveHighData || segNo > ft.highData {
		ft.highData = segNo
		ft.haveHighData = true
	}
	ft.AfterSegmentValidated.Emit(d)

	if len(d.FinalBlockID) > 0 {
		fb, ok := d.FinalSegmentNumber()
		if !ok {
			ft.signalError(FinalBlockIDNotSegment, "final block id is not a segment number")
			return
		}
		if !ft.haveNSegments {
			ft.nSegments = fb + 1
			ft.haveNSegments = true
		}
		for _, rp := range ft.pending.removeAtOrAbove(ft.nSegments) {
			ft.face.RemovePendingInterest(rp.Handle)
		}
	}

	if vr := ft.verifier.verify(d); !vr.ok {
		ft.signalError(HashChainError, vr.message)
		return
	}

	if ft.opts.InOrder {
		for {
			content, ok := ft.buf.Get(ft.nextInOrder)
			if !ok {
				break
			}
			ft.buf.Delete(ft.nextInOrder)
			ft.OnInOrderData.Emit(content)
			ft.nextInOrder++
		}
	}

	if !ft.discovered {
		ft.discovered = true
		ft.versionedDataName = d.Name.Prefix(-1)
		if segNo == 0 {
			ft.nextSegmentNum = 1
		}
	}

	if d.CongestionMark != 0 && !ft.opts.IgnoreCongMarks {
		ft.maybeWindowDecrease()
	} else {
		ft.window.Increase()
	}

	if ft.maybeFinalize() {
		return
	}
	ft.fetchSegmentsInWindow()
}

func segmentPayload(d ndn.Data) []byte {
	if d.SigInfo.InContent {
		if hc, ok := ndn.DecodeHashContent(d.Content); ok {
			return hc.Content
		}
	}
	return d.Content
}

// maybeFinalize implements spec.md §4.2's termination step: once every
// segment 0..nSegments-1 has been received, run the end-of-chain
// anchored-count guard (§4.3) and deliver exactly one of onError or
// onComplete/onInOrderComplete.
func (ft *Fetcher) maybeFinalize() bool {
	if !ft.haveNSegments {
		return false
	}
	for i := uint64(0); i < ft.nSegments; i++ {
		if !ft.receivedSet[i] {
			return false
		}
	}
	if !ft.stopped.CompareAndSwap(false, true) {
		return true
	}
	if vr := ft.verifier.finalCheck(ft.nSegments - 1); !vr.ok {
		ft.OnError.Emit(&FetchError{Code: HashChainError, Message: vr.message})
	} else if ft.opts.InOrder {
		ft.OnInOrderComplete.Emit(struct{}{})
	} else {
		ft.OnComplete.Emit(ft.buf.Concatenate(ft.nSegments))
	}
	ft.cleanup()
	return true
}

// fetchSegmentsInWindow implements spec.md §4.2's dispatch loop: drain the
// retransmission FIFO first, then emit new requests, until the window (or
// ordered-mode buffer slack) is exhausted.
func (ft *Fetcher) fetchSegmentsInWindow() {
	if !ft.discovered {
		return
	}
	for {
		slack := math.MaxInt
		if ft.opts.InOrder {
			slack = ft.opts.FlowControlWindow - ft.buf.Len()
		}
		avail := int(ft.window.Size())
		if slack < avail {
			avail = slack
		}
		avail -= ft.pending.len()
		if avail <= 0 {
			return
		}

		if seg, ok := ft.pending.dequeueRetx(); ok {
			ft.retransmitSegment(seg)
			continue
		}

		seg := ft.nextSegmentNum
		if ft.haveNSegments && seg >= ft.nSegments {
			return
		}
		if ft.receivedSet[seg] {
			ft.nextSegmentNum++
			continue
		}
		if _, exists := ft.pending.get(seg); exists {
			ft.nextSegmentNum++
			continue
		}
		ft.requestSegment(seg)
		ft.nextSegmentNum++
	}
}

// onNack implements spec.md §4.2's nack handling.
func (ft *Fetcher) onNack(interest ndn.Interest, n ndn.Nack) {
	if ft.stopped.Load() {
		return
	}
	var p *PendingSegment
	var ok bool
	if !ft.discovered {
		p, ok = ft.pending.earliest()
	} else if seg, hasSeg := interest.Name.LastSegmentNumber(); hasSeg {
		p, ok = ft.pending.get(seg)
	}
	if !ok {
		return
	}
	ft.AfterSegmentNacked.Emit(n)

	switch n.Reason {
	case ndn.NackDuplicate, ndn.NackCongestion:
		ft.treatAsLoss(p)
	default:
		ft.signalError(NackError, "nack: "+n.Reason.String())
	}
}

// onTimeout implements spec.md §4.2's timeout handling.
func (ft *Fetcher) onTimeout(_ ndn.Interest, p *PendingSegment) {
	if ft.stopped.Load() {
		return
	}
	if _, ok := ft.pending.get(p.SegmentNumber); !ok {
		return // already resolved (e.g. trimmed once nSegments became known)
	}
	ft.AfterSegmentTimedOut.Emit(p.SegmentNumber)
	ft.treatAsLoss(p)
}

// treatAsLoss is the shared tail of nack and timeout handling (spec.md
// §4.2): check whole-transfer inactivity first, then back off the
// segment's own RTO and either re-issue discovery (nothing ever received)
// or enqueue it for retransmission behind a window decrease.
func (ft *Fetcher) treatAsLoss(p *PendingSegment) {
	if time.Since(ft.lastReceivedTime) >= ft.opts.MaxTimeout {
		ft.signalError(InterestTimeout, "no data received within maxTimeout")
		return
	}
	p.Timeout = ft.rttEst.BackoffRTO(p.Timeout)
	p.State = InRetxQueue

	if len(ft.receivedSet) == 0 {
		ft.pending.remove(p.SegmentNumber)
		ft.sendDiscoveryInterestWithTimeout(p.Timeout)
		if np, ok := ft.pending.get(0); ok {
			np.State = Retransmitted
		}
		return
	}
	ft.maybeWindowDecrease()
	ft.pending.enqueueRetx(p.SegmentNumber)
	ft.fetchSegmentsInWindow()
}

// maybeWindowDecrease implements spec.md §4.2's windowDecrease guard:
// conservative window adaptation allows at most one decrease per round
// trip unless disabled.
func (ft *Fetcher) maybeWindowDecrease() {
	fire := ft.opts.DisableCwa || (ft.haveHighData && ft.highData > ft.recoveryPoint)
	if !fire {
		return
	}
	ft.recoveryPoint = ft.highInterest
	ft.haveRecoveryPoint = true
	ft.window.Decrease()
}

func (ft *Fetcher) signalError(code ErrorCode, msg string) {
	if !ft.stopped.CompareAndSwap(false, true) {
		return
	}
	ft.log.WithFields(logrus.Fields{"code": code, "message": msg}).Warn("fetch failed")
	ft.OnError.Emit(&FetchError{Code: code, Message: msg})
	ft.cleanup()
}
