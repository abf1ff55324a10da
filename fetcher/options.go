package fetcher

import "time"

const (
	defaultInterestLifetime = 4 * time.Second
	defaultMaxTimeout       = 60 * time.Second
	defaultFlowControlWin   = 1 << 16
)

// Options configures a Fetcher, mirroring spec.md §4.2's enumerated option
// list.
type Options struct {
	// Congestion control.
	InitCwnd        float64
	InitSsthresh    float64
	AIStep          float64
	MDCoef          float64
	UseConstantCwnd bool
	DisableCwa      bool
	ResetCwndToInit bool
	IgnoreCongMarks bool

	// Timeouts.
	InterestLifetime           time.Duration
	MaxTimeout                 time.Duration
	UseConstantInterestTimeout bool

	// Delivery mode.
	InOrder           bool
	FlowControlWindow int

	// Hash-chain verification (DESIGN.md Open Question 1).
	StrictHashChain bool
}

// DefaultOptions returns spec.md §4.2's documented defaults.
func DefaultOptions() Options {
	return Options{
		InitCwnd:          1.0,
		InitSsthresh:      0, // 0 means "+Inf"; Start treats it specially
		AIStep:            1.0,
		MDCoef:            0.5,
		InterestLifetime:  defaultInterestLifetime,
		MaxTimeout:        defaultMaxTimeout,
		FlowControlWindow: defaultFlowControlWin,
	}
}
