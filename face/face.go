package face

import (
	"context"

	"github.com/ndnchain/hcfetch/ndn"
)

// PendingInterestID identifies an outstanding Express call so it can later
// be removed (spec.md §6's "Face (consumed)" interface).
type PendingInterestID uint64

// OnData is invoked when a Data packet satisfying the expressed Interest
// arrives.
type OnData func(ndn.Interest, ndn.Data)

// OnNack is invoked when the network returns a Nack instead of Data.
type OnNack func(ndn.Interest, ndn.Nack)

// OnTimeout is invoked when InterestLifetime elapses with no response.
type OnTimeout func(ndn.Interest)

// Face abstracts the network layer the fetcher and producer CLI send and
// receive packets through (spec.md §6). Implementations deliver all three
// callbacks on the Reactor goroutine the Face was constructed against, so
// fetcher code calling into a Face never needs its own locking.
type Face interface {
	// Express sends interest and arranges for exactly one of onData,
	// onNack or onTimeout to eventually fire, unless the pending interest
	// is removed first.
	Express(ctx context.Context, interest ndn.Interest, onData OnData, onNack OnNack, onTimeout OnTimeout) (PendingInterestID, error)
	// RemovePendingInterest cancels delivery for a previously expressed
	// interest. It is a no-op if the interest already completed.
	RemovePendingInterest(id PendingInterestID)
	// Put publishes data for a Face's local producer-side registrations
	// to answer interests against (used by the producer CLI/server side;
	// a pure consumer Face may leave this unimplemented by returning an
	// error).
	Put(ctx context.Context, data ndn.Data) error
	// Reactor returns the scheduler every callback this Face delivers is
	// serialized through, per spec.md §6's "the face also exposes
	// ioService for scheduling".
	Reactor() Reactor
}
