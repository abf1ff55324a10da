// Package cwnd implements the TCP-like AIMD congestion window arithmetic
// the segment fetcher uses to size its in-flight interest pipeline
// (spec.md §4.2): slow start, congestion avoidance and multiplicative
// decrease. The conservative-window-adaptation gating (at most one
// decrease per round trip) depends on fetcher-owned state (highData,
// highInterest, recovery point) and is therefore implemented in package
// fetcher, not here — this package only knows how to grow and shrink a
// window once told to.
package cwnd

import "math"

const (
	defaultInitialCwnd = 1.0
	defaultAIStep      = 1.0
	defaultMDCoef      = 0.5
	// MinSsthresh is the floor spec.md §4.2's windowDecrease clamps
	// ssthresh to.
	MinSsthresh = 2.0
	minCwnd     = 1.0
)

// Option configures a Window.
type Option func(*Window)

// InitialCwnd overrides the starting window size (spec.md's initCwnd).
func InitialCwnd(v float64) Option {
	return func(w *Window) { w.cwnd = v; w.initCwnd = v }
}

// InitialSsthresh overrides the starting slow-start threshold
// (spec.md's initSsthresh, default +Inf).
func InitialSsthresh(v float64) Option {
	return func(w *Window) { w.ssthresh = v }
}

// AIStep overrides the additive-increase step (spec.md's aiStep).
func AIStep(v float64) Option {
	return func(w *Window) { w.aiStep = v }
}

// MDCoef overrides the multiplicative-decrease coefficient
// (spec.md's mdCoef, in [0,1]).
func MDCoef(v float64) Option {
	return func(w *Window) { w.mdCoef = v }
}

// Constant pins the window at its initial size: Increase/Decrease become
// no-ops (spec.md's useConstantCwnd).
func Constant(v bool) Option {
	return func(w *Window) { w.constant = v }
}

// ResetToInitOnDecrease has Decrease reset cwnd to initCwnd rather than to
// the new ssthresh (spec.md's resetCwndToInit).
func ResetToInitOnDecrease(v bool) Option {
	return func(w *Window) { w.resetToInit = v }
}

// Window is an AIMD congestion window. It is not safe for concurrent use;
// the fetcher that owns it runs single-threaded per spec.md §5.
type Window struct {
	cwnd        float64
	initCwnd    float64
	ssthresh    float64
	aiStep      float64
	mdCoef      float64
	constant    bool
	resetToInit bool
}

// New constructs a Window with spec.md's documented defaults
// (initCwnd=1.0, initSsthresh=+Inf), overridable via Option.
func New(opts ...Option) *Window {
	w := &Window{
		cwnd:     defaultInitialCwnd,
		initCwnd: defaultInitialCwnd,
		ssthresh: math.Inf(1),
		aiStep:   defaultAIStep,
		mdCoef:   defaultMDCoef,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Size returns the current window size as a real number, not rounded;
// callers that need a whole interest count truncate it themselves.
// Decrease never leaves it below 1.
func (w *Window) Size() float64 {
	return w.cwnd
}

// InSlowStart reports whether the window is still below its threshold.
func (w *Window) InSlowStart() bool {
	return w.cwnd < w.ssthresh
}

// Ssthresh returns the current slow-start threshold.
func (w *Window) Ssthresh() float64 {
	return w.ssthresh
}

// Increase implements spec.md §4.2's windowIncrease: exponential growth in
// slow start, one aiStep per window-full of round trips in congestion
// avoidance.
func (w *Window) Increase() {
	if w.constant {
		return
	}
	if w.InSlowStart() {
		w.cwnd += w.aiStep
		return
	}
	w.cwnd += w.aiStep / math.Floor(w.cwnd)
}

// Decrease implements spec.md §4.2's windowDecrease: sets ssthresh to
// max(MinSsthresh, cwnd*mdCoef) and cwnd to either initCwnd or the new
// ssthresh. Callers are responsible for the conservative-window-adaptation
// gate (disableCwa OR highData > recPoint) before calling Decrease.
func (w *Window) Decrease() {
	if w.constant {
		return
	}
	w.ssthresh = math.Max(MinSsthresh, w.cwnd*w.mdCoef)
	if w.resetToInit {
		w.cwnd = w.initCwnd
	} else {
		w.cwnd = w.ssthresh
	}
	if w.cwnd < minCwnd {
		w.cwnd = minCwnd
	}
}
