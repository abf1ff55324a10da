// Package face defines the transport and scheduler abstractions the
// fetcher and signer depend on (spec.md §6's "Face (consumed)" and
// "Scheduler (consumed)" external interfaces) and a single-goroutine
// reactor implementation of the scheduler (spec.md §5's concurrency
// model: one thread of control, no locks).
package face

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// EventID identifies a scheduled callback for later cancellation.
type EventID uint64

// Reactor schedules delayed callbacks on a single thread of control. Every
// callback registered through Schedule runs on the same goroutine that
// calls Run, in non-decreasing deadline order — spec.md §5's justification
// for the fetcher never needing a lock around its own state.
type Reactor interface {
	// Schedule arranges for fn to run after d, returning an id that
	// Cancel can use to prevent that run.
	Schedule(d time.Duration, fn func()) EventID
	// Cancel prevents a previously scheduled callback from running, if it
	// hasn't already. It is a no-op if the event already fired or was
	// already canceled.
	Cancel(id EventID)
	// Post queues fn to run on the reactor goroutine as soon as possible,
	// preserving posting order relative to other Post calls. Used by
	// non-reactor goroutines (e.g. a Face's I/O goroutine) to safely hand
	// data back into the single-threaded fetcher.
	Post(fn func())
}

type timerEvent struct {
	deadline time.Time
	seq      uint64 // tie-break for equal deadlines, preserves schedule order
	id       EventID
	fn       func()
	canceled bool
	index    int
}

type eventHeap []*timerEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *eventHeap) Push(x any) {
	e := x.(*timerEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// GoReactor is a Reactor built on container/heap and time.Timer, running
// its callback loop on one dedicated goroutine started by Run.
type GoReactor struct {
	mu      sync.Mutex
	heap    eventHeap
	byID    map[EventID]*timerEvent
	nextID  EventID
	nextSeq uint64
	posted  chan func()
	wake    chan struct{}
	stopped bool
}

// NewGoReactor constructs a GoReactor. Call Run to start its loop.
func NewGoReactor() *GoReactor {
	return &GoReactor{
		byID:   make(map[EventID]*timerEvent),
		posted: make(chan func(), 256),
		wake:   make(chan struct{}, 1),
	}
}

// Schedule implements Reactor.
func (r *GoReactor) Schedule(d time.Duration, fn func()) EventID {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.nextSeq++
	e := &timerEvent{deadline: time.Now().Add(d), seq: r.nextSeq, id: id, fn: fn}
	heap.Push(&r.heap, e)
	r.byID[id] = e
	r.mu.Unlock()
	r.nudge()
	return id
}

// Cancel implements Reactor.
func (r *GoReactor) Cancel(id EventID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.canceled = true
		delete(r.byID, id)
	}
}

// Post implements Reactor.
func (r *GoReactor) Post(fn func()) {
	r.posted <- fn
	r.nudge()
}

func (r *GoReactor) nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run drives the reactor loop until ctx is canceled. It must be called
// from the single goroutine that is meant to own all fetcher/signer state
// guarded by this reactor.
func (r *GoReactor) Run(ctx context.Context) {
	for {
		r.mu.Lock()
		r.drainCanceled()
		var timer <-chan time.Time
		var next *timerEvent
		if len(r.heap) > 0 {
			next = r.heap[0]
			timer = time.After(time.Until(next.deadline))
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case fn := <-r.posted:
			fn()
		case <-timer:
			r.mu.Lock()
			if len(r.heap) > 0 && r.heap[0] == next {
				heap.Pop(&r.heap)
				delete(r.byID, next.id)
			}
			canceled := next.canceled
			r.mu.Unlock()
			if !canceled {
				next.fn()
			}
		case <-r.wake:
			// loop again: either a new nearer deadline or posted work
			// arrived while we were blocked on the old timer.
		}
	}
}

func (r *GoReactor) drainCanceled() {
	for len(r.heap) > 0 && r.heap[0].canceled {
		heap.Pop(&r.heap)
	}
}
