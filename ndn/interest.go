package ndn

import "time"

// Interest is an outgoing request for a Data packet by name (spec.md §3/§6).
// Segment fetchers always set MustBeFresh and a concrete segment-numbered
// Name; CanBePrefix is only ever used for the initial discovery interest
// before the final block id is known.
type Interest struct {
	Name             Name
	CanBePrefix      bool
	MustBeFresh      bool
	InterestLifetime time.Duration
	Nonce            uint32
	// HopLimit is carried for completeness with the wider NDN wire model;
	// the fetcher does not itself decrement or inspect it.
	HopLimit uint8
}

// NewInterest builds an Interest with the fetcher's usual defaults
// (MustBeFresh set, CanBePrefix clear), matching spec.md §4.2's per-segment
// request shape.
func NewInterest(name Name, lifetime time.Duration, nonce uint32) Interest {
	return Interest{
		Name:             name,
		MustBeFresh:      true,
		InterestLifetime: lifetime,
		Nonce:            nonce,
	}
}

// DiscoveryInterest builds the initial interest used to discover the first
// segment of an object whose final block id isn't yet known, per spec.md
// §4.2's "express discovery interest with CanBePrefix" step.
func DiscoveryInterest(prefix Name, lifetime time.Duration, nonce uint32) Interest {
	i := NewInterest(prefix, lifetime, nonce)
	i.CanBePrefix = true
	return i
}
