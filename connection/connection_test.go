package connection

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/dispatch"
	"github.com/ciena/ofcore/openflow"
	"github.com/ciena/ofcore/openflow/of12"
	"github.com/ciena/ofcore/openflow/of13"
	"github.com/ciena/ofcore/openflow/of14"
	"github.com/ciena/ofcore/transaction"
)

// recorder observes every dispatched event.
type recorder struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Handle(ev dispatch.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) kinds() []openflow.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]openflow.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last() (dispatch.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return dispatch.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// harness plays the switch side of a piped connection.
type harness struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader

	c      *Conn
	events *recorder
	paths  *datapath.Registry
}

func newHarness(t *testing.T) *harness {
	return newHarnessOn(t, datapath.NewRegistry())
}

func newHarnessOn(t *testing.T, paths *datapath.Registry) *harness {
	t.Helper()
	local, remote := net.Pipe()

	h := &harness{
		t:      t,
		conn:   remote,
		reader: bufio.NewReader(remote),
		events: &recorder{},
		paths:  paths,
	}
	d := dispatch.NewDispatcher()
	d.Subscribe(h.events, dispatch.All())

	cfg := Config{
		EchoInterval:       time.Hour,
		TransactionTimeout: time.Minute,
		HandshakeTimeout:   5 * time.Second,
	}.withDefaults()
	h.c = newConn(local, cfg, d, h.paths)
	go h.c.serve()

	t.Cleanup(func() {
		h.c.Close(errors.New("test over"))
		h.conn.Close()
	})
	return h
}

func (h *harness) read() openflow.Message {
	h.t.Helper()
	h.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := readFrame(h.reader)
	require.NoError(h.t, err)
	m, err := openflow.Decode(openflow.AnyVersion, frame)
	require.NoError(h.t, err)
	return m
}

func (h *harness) write(m openflow.Message) {
	h.t.Helper()
	b, err := openflow.Encode(m)
	require.NoError(h.t, err)
	h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err = h.conn.Write(b)
	require.NoError(h.t, err)
}

// handshake drives version negotiation to 1.3 and feature discovery for
// the given datapath id.
func (h *harness) handshake(dpid uint64) {
	h.t.Helper()

	hello, ok := h.read().(*of14.Hello)
	require.True(h.t, ok, "greeting must be the highest supported hello")
	bitmap, has := hello.VersionBitmap()
	require.True(h.t, has)
	require.Equal(h.t, openflow.VersionBitmap(), bitmap)

	// Answer with a 1.0/1.3 bitmap so 1.3 wins.
	h.write(&of13.Hello{Elems: []of13.HelloElem{{
		Type:    of13.HelloElemVersionBitmap,
		Bitmaps: []uint32{1<<openflow.V10 | 1<<openflow.V13},
	}}})

	req, ok := h.read().(*of13.FeaturesRequest)
	require.True(h.t, ok, "features request must follow negotiation")

	features := &of13.SwitchFeatures{DPID: dpid, Buffers: 256, Tables: 254}
	features.XID = req.XID
	h.write(features)

	require.Eventually(h.t, func() bool {
		return h.c.State() == StateEstablished
	}, 5*time.Second, 5*time.Millisecond)
}

func TestHandshakeEstablishes(t *testing.T) {
	h := newHarness(t)
	h.handshake(0x2a)

	assert.Equal(t, openflow.V13, h.c.Version())
	dpid, ok := h.c.DPID()
	require.True(t, ok)
	assert.Equal(t, uint64(0x2a), dpid)

	sw, ok := h.paths.Lookup(0x2a)
	require.True(t, ok)
	assert.Same(t, h.c, sw)

	assert.Equal(t,
		[]openflow.Kind{openflow.KindConnected, openflow.KindEstablished},
		h.events.kinds())
}

func TestHandshakeWithoutBitmap(t *testing.T) {
	h := newHarness(t)

	_, ok := h.read().(*of14.Hello)
	require.True(t, ok)

	// A bare 1.2 hello negotiates down to the peer's version.
	h.write(of12.NewHello(1))

	req, ok := h.read().(*of12.FeaturesRequest)
	require.True(t, ok)

	features := &of12.SwitchFeatures{DPID: 7}
	features.XID = req.XID
	h.write(features)

	require.Eventually(t, func() bool {
		return h.c.State() == StateEstablished
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, openflow.V12, h.c.Version())
}

func TestHelloFromNewerVersionNegotiatesDown(t *testing.T) {
	h := newHarness(t)
	h.read()

	// A hello from a version with no parser of its own: header 0x06
	// with a bitmap element sharing 1.0 and 1.3.
	frame := []byte{
		0x06, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x02,
		0x00, 0x01, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00,
	}
	binary.BigEndian.PutUint32(frame[12:16], 1<<openflow.V10|1<<openflow.V13|1<<6)
	h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := h.conn.Write(frame)
	require.NoError(t, err)

	req, ok := h.read().(*of13.FeaturesRequest)
	require.True(t, ok, "negotiation must fall back to the shared version")

	features := &of13.SwitchFeatures{DPID: 0x66}
	features.XID = req.XID
	h.write(features)

	require.Eventually(t, func() bool {
		return h.c.State() == StateEstablished
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, openflow.V13, h.c.Version())
}

func TestLegacyHelloGetsNegotiationError(t *testing.T) {
	h := newHarness(t)
	h.read()

	// Bare 1.1 hello, no bitmap.
	h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := h.conn.Write([]byte{0x02, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x09})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.c.State() == StateClosed
	}, 5*time.Second, 5*time.Millisecond)

	ev, ok := h.events.last()
	require.True(t, ok)
	assert.Equal(t, openflow.KindDisconnected, ev.Kind)
	var ne *openflow.NegotiationError
	assert.True(t, errors.As(ev.Reason, &ne))
}

func TestNegotiationFailureCloses(t *testing.T) {
	h := newHarness(t)

	h.read()
	// Peer only speaks 1.1.
	h.write(&of13.Hello{Elems: []of13.HelloElem{{
		Type:    of13.HelloElemVersionBitmap,
		Bitmaps: []uint32{1 << 2},
	}}})

	require.Eventually(t, func() bool {
		return h.c.State() == StateClosed
	}, 5*time.Second, 5*time.Millisecond)

	ev, ok := h.events.last()
	require.True(t, ok)
	assert.Equal(t, openflow.KindDisconnected, ev.Kind)
	var ne *openflow.NegotiationError
	assert.True(t, errors.As(ev.Reason, &ne))
}

func TestEchoAutoReply(t *testing.T) {
	h := newHarness(t)
	h.handshake(1)

	ping := of13.NewEchoRequest(1234)
	ping.Data = []byte("alive?")
	h.write(ping)

	reply, ok := h.read().(*of13.EchoReply)
	require.True(t, ok)
	assert.Equal(t, uint32(1234), reply.XID)
	assert.Equal(t, []byte("alive?"), reply.Data)
}

func TestPacketInPublished(t *testing.T) {
	h := newHarness(t)
	h.handshake(5)

	pi := &of13.PacketIn{
		BufferID: 0xffffffff,
		Match:    openflow.NewInPortMatch(2),
		Data:     []byte{1, 2, 3},
	}
	pi.XID = 0
	h.write(pi)

	require.Eventually(t, func() bool {
		ev, ok := h.events.last()
		return ok && ev.Kind == openflow.KindPacketIn
	}, 5*time.Second, 5*time.Millisecond)

	ev, _ := h.events.last()
	assert.Equal(t, uint64(5), ev.DPID)
	require.IsType(t, &of13.PacketIn{}, ev.Message)
}

func TestCallCorrelatesReply(t *testing.T) {
	h := newHarness(t)
	h.handshake(9)

	type result struct {
		m   openflow.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := h.c.Call(context.Background(), &of13.BarrierRequest{})
		done <- result{m, err}
	}()

	req, ok := h.read().(*of13.BarrierRequest)
	require.True(t, ok)
	require.NotZero(t, req.XID)

	reply := &of13.BarrierReply{}
	reply.XID = req.XID
	h.write(reply)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, openflow.KindBarrierReply, openflow.KindOfMessage(r.m))

	// The correlated reply went to the caller, not the dispatcher.
	for _, k := range h.events.kinds() {
		assert.NotEqual(t, openflow.KindBarrierReply, k)
	}
}

func TestUnsolicitedReplyPublished(t *testing.T) {
	h := newHarness(t)
	h.handshake(3)

	reply := &of13.BarrierReply{}
	reply.XID = 0xfeedface
	h.write(reply)

	require.Eventually(t, func() bool {
		ev, ok := h.events.last()
		return ok && ev.Kind == openflow.KindBarrierReply
	}, 5*time.Second, 5*time.Millisecond)
}

func TestCloseFailsPendingAndSends(t *testing.T) {
	h := newHarness(t)
	h.handshake(4)

	h.c.Close(errors.New("going away"))
	require.Eventually(t, func() bool {
		return h.c.State() == StateClosed
	}, 5*time.Second, 5*time.Millisecond)

	// Send after close fails every time, not just while the queue
	// happens to be full.
	for i := 0; i < 16; i++ {
		assert.ErrorIs(t, h.c.Send(of13.NewEchoRequest(0)), transaction.ErrClosed)
	}
	_, err := h.c.Call(context.Background(), &of13.BarrierRequest{})
	assert.ErrorIs(t, err, transaction.ErrClosed)

	// The registry slot was released.
	_, ok := h.paths.Lookup(4)
	assert.False(t, ok)

	ev, _ := h.events.last()
	assert.Equal(t, openflow.KindDisconnected, ev.Kind)
}

func TestReconnectEvictsPrior(t *testing.T) {
	first := newHarness(t)
	first.handshake(0x77)

	// A second connection claiming the same dpid displaces the first.
	second := newHarnessOn(t, first.paths)
	second.handshake(0x77)

	require.Eventually(t, func() bool {
		return first.c.State() == StateClosed
	}, 5*time.Second, 5*time.Millisecond)

	ev, _ := first.events.last()
	assert.Equal(t, openflow.KindDisconnected, ev.Kind)
	assert.ErrorIs(t, ev.Reason, datapath.ErrEvicted)

	sw, ok := first.paths.Lookup(0x77)
	require.True(t, ok)
	assert.Same(t, second.c, sw)
}

func TestMalformedFrameFatal(t *testing.T) {
	h := newHarness(t)
	h.handshake(6)

	// Declared length shorter than the common header poisons the stream.
	h.conn.Write([]byte{0x04, 0x02, 0x00, 0x04, 0, 0, 0, 1})

	require.Eventually(t, func() bool {
		return h.c.State() == StateClosed
	}, 5*time.Second, 5*time.Millisecond)

	ev, _ := h.events.last()
	var de *openflow.DecodeError
	require.True(t, errors.As(ev.Reason, &de))
	assert.Equal(t, openflow.Malformed, de.Kind)
}
