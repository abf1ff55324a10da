// Package rtt implements the Karn/Jacobson round-trip-time and
// retransmission-timeout estimator the segment fetcher uses to schedule
// per-segment timeouts and back off on repeated loss (spec.md §4.2/§6).
package rtt

import "time"

// Estimator tracks smoothed RTT/RTTVAR and derives an RTO, and exposes the
// Karn's-algorithm exclusion of retransmitted samples plus exponential
// timeout backoff the fetcher needs on repeated timeout of the same
// segment.
type Estimator interface {
	// AddMeasurement folds a fresh (non-retransmitted) RTT sample into the
	// estimator. nOutstanding is the number of interests in flight at the
	// moment the sample was taken (spec.md §6's addMeasurement(rtt,
	// nOutstanding) contract); the classic Karn/Jacobson smoothing this
	// estimator implements doesn't weight by it, but callers still report
	// it for estimators that do.
	AddMeasurement(measured time.Duration, nOutstanding int)
	// RTO returns the current retransmission timeout.
	RTO() time.Duration
	// BackoffRTO doubles (bounded) the timeout used for a specific
	// outstanding interest after it times out, per spec.md §4.2's
	// exponential-backoff-on-timeout behavior, without perturbing the
	// estimator's underlying smoothed RTT/RTTVAR state.
	BackoffRTO(previous time.Duration) time.Duration
}

// Option configures a JacobsonEstimator, matching the teacher's
// backend/seafile pacer.Option functional-options shape.
type Option func(*JacobsonEstimator)

// MinRTO sets a floor under every RTO value returned, preventing
// pathologically aggressive retransmission on a very quiet, very fast link.
func MinRTO(d time.Duration) Option {
	return func(e *JacobsonEstimator) { e.minRTO = d }
}

// MaxRTO sets a ceiling on both RTO() and BackoffRTO(), so a string of
// losses can't grow the timeout without bound.
func MaxRTO(d time.Duration) Option {
	return func(e *JacobsonEstimator) { e.maxRTO = d }
}

// InitialRTO seeds RTO() before the first measurement arrives.
func InitialRTO(d time.Duration) Option {
	return func(e *JacobsonEstimator) { e.rto = d }
}

// Gain sets alpha, the smoothing gain applied to SRTT on each sample
// (Jacobson's original recommendation is 1/8).
func Gain(alpha float64) Option {
	return func(e *JacobsonEstimator) { e.alpha = alpha }
}

// VarGain sets beta, the smoothing gain applied to RTTVAR on each sample
// (Jacobson's original recommendation is 1/4).
func VarGain(beta float64) Option {
	return func(e *JacobsonEstimator) { e.beta = beta }
}

// KFactor sets k, the RTTVAR multiplier added to SRTT to form the RTO
// (Jacobson's original recommendation is 4).
func KFactor(k float64) Option {
	return func(e *JacobsonEstimator) { e.k = k }
}

const (
	defaultAlpha   = 1.0 / 8
	defaultBeta    = 1.0 / 4
	defaultK       = 4.0
	defaultMinRTO  = 200 * time.Millisecond
	defaultMaxRTO  = 60 * time.Second
	defaultInitRTO = 1 * time.Second
)

// JacobsonEstimator is the standard Karn/Jacobson SRTT/RTTVAR/RTO
// estimator (RFC 6298's algorithm, generalized here from TCP segments to
// NDN interest/data round trips).
type JacobsonEstimator struct {
	alpha, beta, k float64
	minRTO, maxRTO time.Duration
	rto            time.Duration

	measured bool
	srtt     time.Duration
	rttvar   time.Duration
}

// NewJacobsonEstimator constructs an estimator with RFC 6298 defaults,
// overridable via Option.
func NewJacobsonEstimator(opts ...Option) *JacobsonEstimator {
	e := &JacobsonEstimator{
		alpha:  defaultAlpha,
		beta:   defaultBeta,
		k:      defaultK,
		minRTO: defaultMinRTO,
		maxRTO: defaultMaxRTO,
		rto:    defaultInitRTO,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddMeasurement implements Estimator. Callers must only pass RTT samples
// for interests that were never retransmitted (Karn's algorithm) — the
// fetcher is responsible for that exclusion, this estimator trusts its
// input.
func (e *JacobsonEstimator) AddMeasurement(measured time.Duration, nOutstanding int) {
	_ = nOutstanding
	if !e.measured {
		e.srtt = measured
		e.rttvar = measured / 2
		e.measured = true
	} else {
		diff := e.srtt - measured
		if diff < 0 {
			diff = -diff
		}
		e.rttvar += time.Duration(e.beta * float64(diff-e.rttvar))
		e.srtt += time.Duration(e.alpha * float64(measured-e.srtt))
	}
	e.rto = e.clamp(e.srtt + time.Duration(e.k*float64(e.rttvar)))
}

// RTO implements Estimator.
func (e *JacobsonEstimator) RTO() time.Duration {
	return e.rto
}

// BackoffRTO implements Estimator: exponential backoff of a specific
// timed-out interest's own timeout, independent of the shared SRTT/RTTVAR
// state (spec.md §4.2).
func (e *JacobsonEstimator) BackoffRTO(previous time.Duration) time.Duration {
	return e.clamp(previous * 2)
}

func (e *JacobsonEstimator) clamp(d time.Duration) time.Duration {
	if d < e.minRTO {
		return e.minRTO
	}
	if d > e.maxRTO {
		return e.maxRTO
	}
	return d
}
