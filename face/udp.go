package face

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"net"
	"sync"

	"github.com/ndnchain/hcfetch/ndn"
)

// UDPFace is a minimal UDP-datagram transport Face for the reference CLIs
// (spec.md §1 treats the transport face as an external collaborator and
// specifies only its express/onData/onNack/onTimeout contract — this is
// this module's own stand-in implementation of that contract, not a
// production NDN forwarder). Packets are gob-encoded wireMessage values;
// this is deliberately not a real NDN TLV codec, matching the ndn
// package's own scope note.
type UDPFace struct {
	conn    *net.UDPConn
	reactor Reactor

	mu            sync.Mutex
	pending       map[uint32]*udpPending
	published     map[string]ndn.Data
	nextID        PendingInterestID
	defaultRemote *net.UDPAddr
}

type udpPending struct {
	id        PendingInterestID
	interest  ndn.Interest
	onData    OnData
	onNack    OnNack
	onTimeout OnTimeout
	timerID   EventID
	removed   bool
}

type wireKind uint8

const (
	wireInterest wireKind = iota
	wireData
	wireNack
)

type wireMessage struct {
	Kind     wireKind
	Interest ndn.Interest
	Data     ndn.Data
	Nack     ndn.Nack
}

// NewUDPFace wraps an already-bound UDP socket. Call Listen to start
// reading; reactor must be the same Reactor whose Run loop the caller
// drives, since every callback this Face delivers is posted there.
func NewUDPFace(conn *net.UDPConn, reactor Reactor) *UDPFace {
	return &UDPFace{
		conn:      conn,
		reactor:   reactor,
		pending:   make(map[uint32]*udpPending),
		published: make(map[string]ndn.Data),
	}
}

// Reactor implements Face.
func (f *UDPFace) Reactor() Reactor { return f.reactor }

// Listen reads incoming datagrams until ctx is canceled, decoding and
// dispatching each one on the reactor goroutine.
func (f *UDPFace) Listen(ctx context.Context) {
	go func() {
		buf := make([]byte, 64*1024)
		for {
			if ctx.Err() != nil {
				return
			}
			n, remote, err := f.conn.ReadFromUDP(buf)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			var msg wireMessage
			if err := gob.NewDecoder(bytes.NewReader(buf[:n])).Decode(&msg); err != nil {
				continue
			}
			m, r := msg, remote
			f.reactor.Post(func() { f.handle(m, r) })
		}
	}()
}

func (f *UDPFace) handle(msg wireMessage, remote *net.UDPAddr) {
	switch msg.Kind {
	case wireInterest:
		f.serveInterest(msg.Interest, remote)
	case wireData:
		f.resolveData(msg.Data)
	case wireNack:
		f.resolveNack(msg.Nack)
	}
}

// serveInterest answers an incoming interest from the producer's published
// store: an exact-name match, or for a CanBePrefix discovery interest the
// lowest-numbered published segment under that prefix.
func (f *UDPFace) serveInterest(interest ndn.Interest, remote *net.UDPAddr) {
	f.mu.Lock()
	var found ndn.Data
	ok := false
	if interest.CanBePrefix {
		var bestSeg uint64
		for _, d := range f.published {
			if !interest.Name.IsPrefixOf(d.Name) {
				continue
			}
			seg, hasSeg := d.SegmentNumber()
			if !ok || (hasSeg && seg < bestSeg) {
				found, bestSeg, ok = d, seg, true
			}
		}
	} else {
		found, ok = f.published[interest.Name.String()]
	}
	f.mu.Unlock()
	if !ok {
		return // no route: the consumer simply times out
	}
	f.send(remote, wireMessage{Kind: wireData, Data: found})
}

// resolveData matches an incoming Data packet against the pending
// interest it satisfies: an exact name match, or (for the one outstanding
// discovery interest) any name the discovery prefix names a prefix of.
func (f *UDPFace) resolveData(d ndn.Data) {
	f.mu.Lock()
	var matchNonce uint32
	var match *udpPending
	for nonce, p := range f.pending {
		if p.removed {
			continue
		}
		if p.interest.Name.Equal(d.Name) || (p.interest.CanBePrefix && p.interest.Name.IsPrefixOf(d.Name)) {
			matchNonce, match = nonce, p
			break
		}
	}
	if match != nil {
		delete(f.pending, matchNonce)
	}
	f.mu.Unlock()
	if match == nil {
		return
	}
	f.reactor.Cancel(match.timerID)
	match.onData(match.interest, d)
}

func (f *UDPFace) resolveNack(n ndn.Nack) {
	f.mu.Lock()
	match, ok := f.pending[n.Interest.Nonce]
	if ok {
		delete(f.pending, n.Interest.Nonce)
	}
	f.mu.Unlock()
	if !ok || match.removed {
		return
	}
	f.reactor.Cancel(match.timerID)
	match.onNack(match.interest, n)
}

func (f *UDPFace) send(remote *net.UDPAddr, msg wireMessage) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return
	}
	_, _ = f.conn.WriteToUDP(buf.Bytes(), remote)
}

// ExpressTo is Express against an explicit remote; Express itself
// delegates to it with the remote set via SetDefaultRemote.
func (f *UDPFace) ExpressTo(_ context.Context, remote *net.UDPAddr, interest ndn.Interest, onData OnData, onNack OnNack, onTimeout OnTimeout) (PendingInterestID, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	p := &udpPending{id: id, interest: interest, onData: onData, onNack: onNack, onTimeout: onTimeout}
	f.pending[interest.Nonce] = p
	f.mu.Unlock()

	p.timerID = f.reactor.Schedule(interest.InterestLifetime, func() { f.fireTimeout(interest.Nonce) })
	f.send(remote, wireMessage{Kind: wireInterest, Interest: interest})
	return id, nil
}

// Express implements Face, sending to the remote configured via
// SetDefaultRemote — the shape the consumer CLI's single Fetcher needs.
func (f *UDPFace) Express(ctx context.Context, interest ndn.Interest, onData OnData, onNack OnNack, onTimeout OnTimeout) (PendingInterestID, error) {
	f.mu.Lock()
	remote := f.defaultRemote
	f.mu.Unlock()
	if remote == nil {
		return 0, fmt.Errorf("face: no default remote configured")
	}
	return f.ExpressTo(ctx, remote, interest, onData, onNack, onTimeout)
}

func (f *UDPFace) fireTimeout(nonce uint32) {
	f.mu.Lock()
	p, ok := f.pending[nonce]
	if ok {
		delete(f.pending, nonce)
	}
	f.mu.Unlock()
	if !ok || p.removed {
		return
	}
	p.onTimeout(p.interest)
}

// RemovePendingInterest implements Face.
func (f *UDPFace) RemovePendingInterest(id PendingInterestID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for nonce, p := range f.pending {
		if p.id == id {
			p.removed = true
			f.reactor.Cancel(p.timerID)
			delete(f.pending, nonce)
			return
		}
	}
}

// Put implements Face: publishes data for subsequent interests to match
// against (the producer side's contract).
func (f *UDPFace) Put(_ context.Context, data ndn.Data) error {
	f.mu.Lock()
	f.published[data.Name.String()] = data
	f.mu.Unlock()
	return nil
}

// SetDefaultRemote configures the producer address Express sends to.
func (f *UDPFace) SetDefaultRemote(addr *net.UDPAddr) {
	f.mu.Lock()
	f.defaultRemote = addr
	f.mu.Unlock()
}
