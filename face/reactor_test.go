package face

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runReactor(t *testing.T) (*GoReactor, func()) {
	t.Helper()
	r := NewGoReactor()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	return r, func() {
		cancel()
		<-done
	}
}

func TestReactorSchedulesInDeadlineOrder(t *testing.T) {
	r, stop := runReactor(t)
	defer stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	r.Schedule(30*time.Millisecond, func() { mu.Lock(); order = append(order, 3); mu.Unlock(); wg.Done() })
	r.Schedule(10*time.Millisecond, func() { mu.Lock(); order = append(order, 1); mu.Unlock(); wg.Done() })
	r.Schedule(20*time.Millisecond, func() { mu.Lock(); order = append(order, 2); mu.Unlock(); wg.Done() })

	waitWithTimeout(t, &wg, time.Second)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestReactorCancelPreventsCallback(t *testing.T) {
	r, stop := runReactor(t)
	defer stop()

	fired := false
	id := r.Schedule(20*time.Millisecond, func() { fired = true })
	r.Cancel(id)

	var wg sync.WaitGroup
	wg.Add(1)
	r.Schedule(40*time.Millisecond, func() { wg.Done() })
	waitWithTimeout(t, &wg, time.Second)
	assert.False(t, fired)
}

func TestReactorPostRunsOnReactorGoroutine(t *testing.T) {
	r, stop := runReactor(t)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	r.Post(func() { ran = true; wg.Done() })
	waitWithTimeout(t, &wg, time.Second)
	assert.True(t, ran)
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	c := make(chan struct{})
	go func() { wg.Wait(); close(c) }()
	select {
	case <-c:
	case <-time.After(d):
		require.Fail(t, "timed out waiting for scheduled callbacks")
	}
}
