package ndn

// NackReason enumerates the network-layer negative acknowledgement reasons
// a Face can deliver in place of Data (spec.md §4.2/§6).
type NackReason uint8

const (
	NackNone       NackReason = 0
	NackCongestion NackReason = 50
	NackDuplicate  NackReason = 100
	NackNoRoute    NackReason = 150
)

func (r NackReason) String() string {
	switch r {
	case NackCongestion:
		return "Congestion"
	case NackDuplicate:
		return "Duplicate"
	case NackNoRoute:
		return "NoRoute"
	default:
		return "None"
	}
}

// Nack is delivered to a fetcher instead of Data when the network rejects
// an outstanding Interest (spec.md §4.2's nack-handling step).
type Nack struct {
	Interest Interest
	Reason   NackReason
}
