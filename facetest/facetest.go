// Package facetest provides a deterministic, in-memory face.Face double for
// driving the fetcher's state machine in tests without a real transport —
// the same role the teacher's fstest/mockobject package plays for an
// fs.Object.
package facetest

import (
	"context"
	"sync"

	"github.com/ndnchain/hcfetch/face"
	"github.com/ndnchain/hcfetch/ndn"
)

// Outcome describes how Face should resolve one expressed interest.
type Outcome int

const (
	// OutcomeData delivers the Data packet configured via Respond.
	OutcomeData Outcome = iota
	// OutcomeNack delivers a Nack with the configured reason.
	OutcomeNack
	// OutcomeTimeout delivers nothing; onTimeout fires when DeliverTimeout
	// is called for that interest.
	OutcomeTimeout
	// OutcomeDrop delivers nothing and never will — used to simulate an
	// interest whose PendingInterestID was removed before resolution.
	OutcomeDrop
)

type expressedInterest struct {
	handle   face.PendingInterestID
	interest ndn.Interest
	onData   face.OnData
	onNack   face.OnNack
	onTimeout face.OnTimeout
	removed  bool
}

// Rule configures how Face resolves interests matching a name predicate.
type Rule struct {
	// Match reports whether this rule applies to interest i.
	Match func(i ndn.Interest) bool
	// Outcome selects how the matched interest resolves.
	Outcome Outcome
	// Data is delivered when Outcome is OutcomeData.
	Data ndn.Data
	// NackReason is delivered when Outcome is OutcomeNack.
	NackReason ndn.NackReason
	// Uses limits how many times this rule fires before falling through to
	// the next one; zero means unlimited.
	Uses int
	used int
}

// Face is an in-memory face.Face double. Express matches each interest
// against Rules in order and posts the matching outcome onto the reactor;
// an interest with no matching rule, or one matched by an OutcomeTimeout
// rule, stays outstanding until a manual DeliverTimeout call.
type Face struct {
	mu        sync.Mutex
	reactor   face.Reactor
	Rules     []Rule
	nextID    face.PendingInterestID
	expressed map[face.PendingInterestID]*expressedInterest
	Sent      []ndn.Interest // every interest Express has ever seen, in order
}

// New constructs a Face driven by reactor r (typically a face.GoReactor
// whose Run loop the test also drives).
func New(r face.Reactor) *Face {
	return &Face{
		reactor:   r,
		expressed: make(map[face.PendingInterestID]*expressedInterest),
	}
}

// Reactor implements face.Face.
func (f *Face) Reactor() face.Reactor { return f.reactor }

// Put implements face.Face; this double is consumer-only.
func (f *Face) Put(_ context.Context, _ ndn.Data) error {
	return nil
}

// Express implements face.Face: it records the interest, then resolves it
// against Rules (in order) by posting the matching callback onto the
// reactor, matching a real Face's contract of delivering callbacks on the
// reactor goroutine.
func (f *Face) Express(_ context.Context, interest ndn.Interest, onData face.OnData, onNack face.OnNack, onTimeout face.OnTimeout) (face.PendingInterestID, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	ei := &expressedInterest{handle: id, interest: interest, onData: onData, onNack: onNack, onTimeout: onTimeout}
	f.expressed[id] = ei
	f.Sent = append(f.Sent, interest)

	var matched *Rule
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Uses != 0 && r.used >= r.Uses {
			continue
		}
		if r.Match(interest) {
			matched = r
			r.used++
			break
		}
	}
	f.mu.Unlock()

	if matched != nil {
		f.resolve(id, *matched)
	}
	return id, nil
}

func (f *Face) resolve(id face.PendingInterestID, r Rule) {
	switch r.Outcome {
	case OutcomeData:
		f.reactor.Post(func() { f.deliverData(id, r.Data) })
	case OutcomeNack:
		f.reactor.Post(func() { f.deliverNack(id, r.NackReason) })
	case OutcomeTimeout:
		// stays outstanding until DeliverTimeout is called for it
	case OutcomeDrop:
		// never resolves
	}
}

func (f *Face) deliverData(id face.PendingInterestID, d ndn.Data) {
	f.mu.Lock()
	ei, ok := f.expressed[id]
	if ok {
		delete(f.expressed, id)
	}
	f.mu.Unlock()
	if ok && !ei.removed {
		ei.onData(ei.interest, d)
	}
}

func (f *Face) deliverNack(id face.PendingInterestID, reason ndn.NackReason) {
	f.mu.Lock()
	ei, ok := f.expressed[id]
	if ok {
		delete(f.expressed, id)
	}
	f.mu.Unlock()
	if ok && !ei.removed {
		ei.onNack(ei.interest, ndn.Nack{Interest: ei.interest, Reason: reason})
	}
}

func (f *Face) deliverTimeout(id face.PendingInterestID) {
	f.mu.Lock()
	ei, ok := f.expressed[id]
	if ok {
		delete(f.expressed, id)
	}
	f.mu.Unlock()
	if ok && !ei.removed {
		ei.onTimeout(ei.interest)
	}
}

// DeliverTimeout fires onTimeout for a still-outstanding interest by handle,
// posted onto the reactor so callers (typically a test goroutine) never
// touch fetcher state directly off the reactor's single thread of control.
func (f *Face) DeliverTimeout(id face.PendingInterestID) {
	f.reactor.Post(func() { f.deliverTimeout(id) })
}

// RemovePendingInterest implements face.Face.
func (f *Face) RemovePendingInterest(id face.PendingInterestID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ei, ok := f.expressed[id]; ok {
		ei.removed = true
	}
}

// Outstanding returns the handles of every interest still awaiting
// resolution, in no particular order.
func (f *Face) Outstanding() []face.PendingInterestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]face.PendingInterestID, 0, len(f.expressed))
	for id, ei := range f.expressed {
		if !ei.removed {
			out = append(out, id)
		}
	}
	return out
}

// MatchSegment builds a Rule.Match predicate that matches any interest whose
// name's final component is segment number seg.
func MatchSegment(seg uint64) func(ndn.Interest) bool {
	return func(i ndn.Interest) bool {
		got, ok := i.Name.LastSegmentNumber()
		return ok && got == seg
	}
}

// MatchDiscovery builds a Rule.Match predicate that matches the discovery
// interest (CanBePrefix set).
func MatchDiscovery() func(ndn.Interest) bool {
	return func(i ndn.Interest) bool { return i.CanBePrefix }
}

// MatchAny always matches, useful as a fallback last Rule.
func MatchAny() func(ndn.Interest) bool {
	return func(ndn.Interest) bool { return true }
}
