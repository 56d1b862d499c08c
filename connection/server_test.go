package connection

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/dispatch"
	"github.com/ciena/ofcore/openflow"
	"github.com/ciena/ofcore/openflow/of13"
	"github.com/ciena/ofcore/transaction"
)

func startServer(t *testing.T, cfg Config) (*Server, *datapath.Registry) {
	t.Helper()
	paths := datapath.NewRegistry()
	srv := NewServer("127.0.0.1:0", cfg, dispatch.NewDispatcher(), paths, nil)
	go srv.ListenAndServe()
	t.Cleanup(func() { srv.Close() })

	require.Eventually(t, func() bool {
		return srv.Addr() != nil
	}, 5*time.Second, 5*time.Millisecond)
	return srv, paths
}

// dialSwitch connects as a switch and completes the 1.3 handshake.
func dialSwitch(t *testing.T, srv *Server, dpid uint64) (net.Conn, *bufio.Reader) {
	t.Helper()
	nc, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { nc.Close() })
	reader := bufio.NewReader(nc)

	readMsg := func() openflow.Message {
		nc.SetReadDeadline(time.Now().Add(5 * time.Second))
		frame, err := readFrame(reader)
		require.NoError(t, err)
		m, err := openflow.Decode(openflow.AnyVersion, frame)
		require.NoError(t, err)
		return m
	}
	writeMsg := func(m openflow.Message) {
		b, err := openflow.Encode(m)
		require.NoError(t, err)
		_, err = nc.Write(b)
		require.NoError(t, err)
	}

	readMsg() // hello
	writeMsg(of13.NewHello(1))

	req := readMsg()
	require.Equal(t, openflow.KindFeaturesRequest, openflow.KindOfMessage(req))
	features := &of13.SwitchFeatures{DPID: dpid}
	features.XID = req.Hdr().XID
	writeMsg(features)

	return nc, reader
}

func TestServerAcceptsAndRegisters(t *testing.T) {
	srv, paths := startServer(t, Config{EchoInterval: time.Hour})
	dialSwitch(t, srv, 0xab)

	require.Eventually(t, func() bool {
		_, ok := paths.Lookup(0xab)
		return ok
	}, 5*time.Second, 5*time.Millisecond)

	sw, _ := paths.Lookup(0xab)
	assert.Equal(t, openflow.V13, sw.Version())
}

func TestSweepTimesOutSilentCalls(t *testing.T) {
	srv, paths := startServer(t, Config{
		EchoInterval:       time.Hour,
		TransactionTimeout: 50 * time.Millisecond,
		SweepInterval:      10 * time.Millisecond,
	})
	dialSwitch(t, srv, 0xcd)

	require.Eventually(t, func() bool {
		_, ok := paths.Lookup(0xcd)
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	sw, _ := paths.Lookup(0xcd)

	// The switch never answers; the shared sweep timer must expire
	// the call even though the connection itself stays healthy.
	_, err := sw.Call(context.Background(), &of13.BarrierRequest{})
	assert.ErrorIs(t, err, transaction.ErrTimeout)

	_, ok := paths.Lookup(0xcd)
	assert.True(t, ok, "timeout must not close the connection")
}

func TestServerCloseTearsDownConnections(t *testing.T) {
	srv, paths := startServer(t, Config{EchoInterval: time.Hour})
	nc, reader := dialSwitch(t, srv, 0xee)

	require.Eventually(t, func() bool {
		_, ok := paths.Lookup(0xee)
		return ok
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Close())

	require.Eventually(t, func() bool {
		return paths.Len() == 0
	}, 5*time.Second, 5*time.Millisecond)

	// The switch side observes the close.
	nc.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := readFrame(reader)
	assert.Error(t, err)
}
