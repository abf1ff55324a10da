package face

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndnchain/hcfetch/ndn"
)

func newLoopbackConn(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUDPFaceRoundTripsData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverReactor := NewGoReactor()
	go serverReactor.Run(ctx)
	clientReactor := NewGoReactor()
	go clientReactor.Run(ctx)

	serverConn := newLoopbackConn(t)
	server := NewUDPFace(serverConn, serverReactor)
	server.Listen(ctx)

	name := ndn.NameFromString("/test/segment").Append(ndn.SegmentComponent(0))
	data := ndn.Data{Name: name, Content: []byte("hello")}
	require.NoError(t, server.Put(ctx, data))

	clientConn := newLoopbackConn(t)
	client := NewUDPFace(clientConn, clientReactor)
	client.Listen(ctx)
	client.SetDefaultRemote(serverConn.LocalAddr().(*net.UDPAddr))

	done := make(chan ndn.Data, 1)
	_, err := client.Express(ctx, ndn.NewInterest(name, 2*time.Second, 1),
		func(_ ndn.Interest, d ndn.Data) { done <- d },
		func(ndn.Interest, ndn.Nack) { t.Error("unexpected nack") },
		func(ndn.Interest) { t.Error("unexpected timeout") },
	)
	require.NoError(t, err)

	select {
	case d := <-done:
		assert.Equal(t, data.Content, d.Content)
		assert.True(t, name.Equal(d.Name))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for data")
	}
}

func TestUDPFaceTimesOutWithNoProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reactor := NewGoReactor()
	go reactor.Run(ctx)

	conn := newLoopbackConn(t)
	f := NewUDPFace(conn, reactor)
	f.Listen(ctx)
	// Route to a closed-looking address: nothing answers, so the
	// InterestLifetime timer must fire.
	unused, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := unused.LocalAddr().(*net.UDPAddr)
	require.NoError(t, unused.Close())
	f.SetDefaultRemote(addr)

	name := ndn.NameFromString("/test/nobody")
	timedOut := make(chan struct{})
	_, err = f.Express(ctx, ndn.NewInterest(name, 100*time.Millisecond, 1),
		func(ndn.Interest, ndn.Data) { t.Error("unexpected data") },
		func(ndn.Interest, ndn.Nack) { t.Error("unexpected nack") },
		func(ndn.Interest) { close(timedOut) },
	)
	require.NoError(t, err)

	select {
	case <-timedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timeout callback")
	}
}

func TestUDPFaceExpressWithoutDefaultRemoteErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reactor := NewGoReactor()
	go reactor.Run(ctx)
	conn := newLoopbackConn(t)
	f := NewUDPFace(conn, reactor)

	_, err := f.Express(ctx, ndn.NewInterest(ndn.NameFromString("/x"), time.Second, 1), nil, nil, nil)
	assert.Error(t, err)
}
