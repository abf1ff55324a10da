package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalEmitCallsAllSubscribersInOrder(t *testing.T) {
	s := New[int]()
	var got []int
	s.Connect(func(v int) { got = append(got, v*10) })
	s.Connect(func(v int) { got = append(got, v*100) })
	s.Emit(1)
	assert.Equal(t, []int{10, 100}, got)
}

func TestSignalDisconnectStopsDelivery(t *testing.T) {
	s := New[string]()
	calls := 0
	h := s.Connect(func(string) { calls++ })
	s.Emit("a")
	s.Disconnect(h)
	s.Emit("b")
	assert.Equal(t, 1, calls)
}

func TestSignalDisconnectOutOfRangeIsNoop(t *testing.T) {
	s := New[int]()
	assert.NotPanics(t, func() { s.Disconnect(Handle(99)) })
}
