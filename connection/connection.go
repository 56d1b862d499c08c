// Package connection owns the lifecycle of one switch socket: the
// version negotiation and feature discovery handshake, the framing and
// message pump, the keepalive sub-protocol, and the bounded send queue
// that application commands flow out through. Each connection runs its
// own goroutines; nothing here is shared across connections except the
// datapath registry and the dispatcher it publishes into.
package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/dispatch"
	"github.com/ciena/ofcore/metrics"
	"github.com/ciena/ofcore/openflow"
	"github.com/ciena/ofcore/transaction"
)

// State is the connection lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateVersionNegotiating
	StateFeaturesPending
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateVersionNegotiating:
		return "version-negotiating"
	case StateFeaturesPending:
		return "features-pending"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "invalid"
}

var (
	// ErrEchoTimeout closes a connection whose switch stopped
	// answering keepalive probes.
	ErrEchoTimeout = errors.New("echo miss limit exceeded")

	// ErrServerClosed is the close reason handed to every connection
	// when the listener shuts down.
	ErrServerClosed = errors.New("server closed")
)

// Config tunes per connection behavior. The zero value is usable; see
// the individual defaults.
type Config struct {
	// EchoInterval is the keepalive probe period. Default 15s.
	EchoInterval time.Duration

	// EchoMissLimit is how many consecutive unanswered probes close
	// the connection. Default 3.
	EchoMissLimit int

	// TransactionTimeout bounds every request/reply call, including
	// the implicit features request. Default 10s.
	TransactionTimeout time.Duration

	// HandshakeTimeout bounds the whole hello and features exchange.
	// Default 30s.
	HandshakeTimeout time.Duration

	// SendQueueDepth is the outbound queue capacity. Senders block
	// while the queue is full; they fail only once the connection is
	// closing. Default 32.
	SendQueueDepth int

	// SweepInterval is the shared transaction expiry timer period.
	// Default 1s.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.EchoInterval <= 0 {
		c.EchoInterval = 15 * time.Second
	}
	if c.EchoMissLimit <= 0 {
		c.EchoMissLimit = 3
	}
	if c.TransactionTimeout <= 0 {
		c.TransactionTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 30 * time.Second
	}
	if c.SendQueueDepth <= 0 {
		c.SendQueueDepth = 32
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Second
	}
	return c
}

// writeTimeout bounds each frame write so a dead peer cannot wedge the
// write loop forever.
const writeTimeout = 30 * time.Second

const readBufferSize = 2048

// Conn is one switch connection. It implements datapath.Switch.
type Conn struct {
	conn       net.Conn
	cfg        Config
	dispatcher *dispatch.Dispatcher
	paths      *datapath.Registry
	xacts      *transaction.Registry

	state  atomic.Int32
	misses atomic.Int32

	mu      sync.Mutex
	version uint8
	dpid    uint64
	hasDPID bool

	sendq     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(nc net.Conn, cfg Config, d *dispatch.Dispatcher, paths *datapath.Registry) *Conn {
	return &Conn{
		conn:       nc,
		cfg:        cfg,
		dispatcher: d,
		paths:      paths,
		xacts:      transaction.New(),
		sendq:      make(chan []byte, cfg.SendQueueDepth),
		closed:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Version returns the negotiated protocol version, zero before
// negotiation completes.
func (c *Conn) Version() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Conn) setVersion(v uint8) {
	c.mu.Lock()
	c.version = v
	c.mu.Unlock()
}

// DPID returns the datapath id once feature discovery has completed.
func (c *Conn) DPID() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dpid, c.hasDPID
}

func (c *Conn) setDPID(dpid uint64) {
	c.mu.Lock()
	c.dpid = dpid
	c.hasDPID = true
	c.mu.Unlock()
}

// RemoteAddr returns the switch side of the transport connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) logger() *log.Entry {
	entry := log.WithFields(log.Fields{
		"remote": c.conn.RemoteAddr().String(),
		"state":  c.State().String(),
	})
	if v := c.Version(); v != 0 {
		entry = entry.WithField("of_version", fmt.Sprintf("0x%02x", v))
	}
	if dpid, ok := c.DPID(); ok {
		entry = entry.WithField("dpid", datapath.DPIDString(dpid))
	}
	return entry
}

// serve runs the connection to completion. Called once, on the
// connection's own goroutine.
func (c *Conn) serve() {
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	go c.writeLoop()

	c.dispatcher.Publish(dispatch.Event{Kind: openflow.KindConnected, Source: c})

	// Greet with the highest supported version plus the full bitmap,
	// then wait for the peer's hello under the handshake deadline.
	c.setState(StateVersionNegotiating)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := c.Send(newHello(c.xacts.Allocate())); err != nil {
		c.Close(err)
		return
	}

	c.readLoop()
}

// readLoop buffers the byte stream into length prefixed frames and
// feeds them through the state machine. Any decode failure past this
// point is fatal to the connection; the stream cannot be resynchronized
// once a length field is wrong.
func (c *Conn) readLoop() {
	reader := bufio.NewReaderSize(c.conn, readBufferSize)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			c.Close(err)
			return
		}
		if err := c.handleFrame(frame); err != nil {
			c.logger().WithError(err).Warn("Fatal frame error, closing connection")
			c.Close(err)
			return
		}
		select {
		case <-c.closed:
			return
		default:
		}
	}
}

// readFrame reads exactly one frame: the common header, then the rest
// of the declared length. A declared length below the header size makes
// the remainder of the stream unusable.
func readFrame(r *bufio.Reader) ([]byte, error) {
	hdr := make([]byte, openflow.HeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	length := int(uint16(hdr[2])<<8 | uint16(hdr[3]))
	if length < openflow.HeaderLen {
		return nil, openflow.NewMalformed(hdr[0], hdr[1], "declared length shorter than common header")
	}
	frame := make([]byte, length)
	copy(frame, hdr)
	if _, err := io.ReadFull(r, frame[openflow.HeaderLen:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// handleFrame advances the state machine with one inbound frame. A
// returned error closes the connection.
func (c *Conn) handleFrame(frame []byte) error {
	switch c.State() {
	case StateVersionNegotiating:
		return c.negotiate(frame)
	case StateFeaturesPending, StateEstablished:
		return c.pump(frame)
	default:
		// Closing or closed: the remainder of the stream is discarded.
		return nil
	}
}

// negotiate consumes the peer's hello and picks the session version.
func (c *Conn) negotiate(frame []byte) error {
	peerVersion, bitmap, hasBitmap, err := parseHello(frame)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues(decodeKind(err)).Inc()
		return err
	}

	version, err := openflow.Negotiate(peerVersion, bitmap, hasBitmap)
	if err != nil {
		c.logger().WithError(err).Warn("Version negotiation failed")
		return err
	}
	c.setVersion(version)
	c.logger().Debug("Version negotiated")

	// Feature discovery is an implicit transaction: the reply is
	// consumed by the state machine itself, and the shared sweep timer
	// enforces the deadline even if the read loop is wedged.
	c.setState(StateFeaturesPending)
	req := newFeaturesRequest(version, c.xacts.Allocate())
	pending, err := c.xacts.Register(req.Hdr().XID, time.Now().Add(c.cfg.TransactionTimeout))
	if err != nil {
		return err
	}
	go c.watchFeatures(pending)
	return c.Send(req)
}

// watchFeatures closes the connection if feature discovery expires. The
// reply itself is handled inline on the read loop so event ordering is
// preserved; this goroutine only observes the failure outcomes.
func (c *Conn) watchFeatures(pending *transaction.Pending) {
	select {
	case r := <-pending.Done():
		if errors.Is(r.Err, transaction.ErrTimeout) {
			c.logger().Warn("Feature discovery timed out")
			c.Close(r.Err)
		}
	case <-c.closed:
	}
}

// pump decodes and routes one frame in the features-pending or
// established state.
func (c *Conn) pump(frame []byte) error {
	m, err := openflow.Decode(c.Version(), frame)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues(decodeKind(err)).Inc()
		return err
	}
	h := m.Hdr()
	metrics.MessagesReceived.WithLabelValues(fmt.Sprintf("0x%02x", h.Version)).Inc()

	// Any traffic proves the switch alive.
	c.misses.Store(0)

	kind := openflow.KindOfMessage(m)
	switch kind {
	case openflow.KindEchoRequest:
		if err := c.Send(echoReply(m)); err != nil {
			return err
		}
	case openflow.KindFeaturesReply:
		if c.State() == StateFeaturesPending {
			return c.establish(m)
		}
	}

	// Correlated replies complete their pending call; everything else,
	// including replies nobody is waiting for, is an event.
	if isReply(kind) && c.xacts.Resolve(h.XID, m) {
		return nil
	}
	dpid, _ := c.DPID()
	c.dispatcher.Publish(dispatch.Event{Kind: kind, Source: c, DPID: dpid, Message: m})
	return nil
}

// establish completes the handshake with the features reply: record the
// datapath id, claim the registry entry (evicting any stale connection
// with the same id), and enter steady state.
func (c *Conn) establish(m openflow.Message) error {
	dpid, ok := featuresDPID(m)
	if !ok {
		h := m.Hdr()
		return openflow.NewMalformed(h.Version, h.Type, "features reply carries no datapath id")
	}
	c.xacts.Resolve(m.Hdr().XID, m)
	c.setDPID(dpid)
	c.paths.Register(dpid, c)
	metrics.ConnectedDatapaths.Inc()
	c.setState(StateEstablished)
	_ = c.conn.SetReadDeadline(time.Time{})
	go c.keepalive()

	c.logger().Info("Switch connected")
	c.dispatcher.Publish(dispatch.Event{Kind: openflow.KindEstablished, Source: c, DPID: dpid, Message: m})
	return nil
}

// keepalive probes the switch on a fixed period and closes the
// connection after EchoMissLimit consecutive silent intervals. Any
// inbound frame resets the miss counter.
func (c *Conn) keepalive() {
	ticker := time.NewTicker(c.cfg.EchoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if int(c.misses.Add(1)) > c.cfg.EchoMissLimit {
				c.logger().Warn("Switch stopped answering echo requests")
				c.Close(ErrEchoTimeout)
				return
			}
			if err := c.Send(newEchoRequest(c.Version(), c.xacts.Allocate())); err != nil {
				return
			}
		}
	}
}

// writeLoop is the single writer for the socket, draining the send
// queue in order. Frames still queued when the connection closes are
// discarded rather than flushed; a peer worth flushing to would not be
// mid-teardown.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case b := <-c.sendq:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.conn.Write(b); err != nil {
				c.logger().WithError(err).Debug("Write failed")
				c.Close(err)
				return
			}
		}
	}
}

// Send encodes and queues one message. The negotiated version is
// stamped when the caller left it zero, and a fresh transaction id is
// allocated for a zero xid. Send blocks while the queue is full and
// fails once the connection is closing.
func (c *Conn) Send(m openflow.Message) error {
	h := m.Hdr()
	if h.Version == 0 {
		h.Version = c.Version()
	}
	if h.XID == 0 {
		h.XID = c.xacts.Allocate()
	}
	b, err := openflow.Encode(m)
	if err != nil {
		return err
	}
	// Checked before and after the enqueue: once closed the queue
	// always has room and the select would pick a case at random.
	select {
	case <-c.closed:
		return transaction.ErrClosed
	default:
	}
	select {
	case c.sendq <- b:
	case <-c.closed:
		return transaction.ErrClosed
	}
	select {
	case <-c.closed:
		return transaction.ErrClosed
	default:
	}
	metrics.MessagesSent.WithLabelValues(fmt.Sprintf("0x%02x", h.Version)).Inc()
	return nil
}

// Call sends a request and waits for the correlated reply, a
// transaction timeout, connection teardown, or ctx.
func (c *Conn) Call(ctx context.Context, m openflow.Message) (openflow.Message, error) {
	h := m.Hdr()
	if h.Version == 0 {
		h.Version = c.Version()
	}
	if h.XID == 0 {
		h.XID = c.xacts.Allocate()
	}
	pending, err := c.xacts.Register(h.XID, time.Now().Add(c.cfg.TransactionTimeout))
	if err != nil {
		return nil, err
	}
	if err := c.Send(m); err != nil {
		return nil, err
	}
	return pending.Wait(ctx)
}

// Barrier performs a barrier round trip, guaranteeing every message
// sent before it has been processed by the switch.
func (c *Conn) Barrier(ctx context.Context) error {
	reply, err := c.Call(ctx, newBarrierRequest(c.Version(), 0))
	if err != nil {
		return err
	}
	if k := openflow.KindOfMessage(reply); k != openflow.KindBarrierReply {
		return fmt.Errorf("barrier answered with %s", k)
	}
	return nil
}

// Close tears the connection down: fail outstanding transactions,
// release the datapath registration if held, report the disconnect, and
// release the socket. Idempotent, and safe to call concurrently with
// the connection's own read loop.
func (c *Conn) Close(reason error) {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		close(c.closed)
		_ = c.conn.Close()
		c.xacts.Close()

		dpid, had := c.DPID()
		if had && c.paths.Unregister(dpid, c) {
			metrics.ConnectedDatapaths.Dec()
		}

		c.logger().WithError(reason).Info("Connection closed")
		c.dispatcher.Publish(dispatch.Event{Kind: openflow.KindDisconnected, Source: c, DPID: dpid, Reason: reason})
		c.setState(StateClosed)
	})
}

// decodeKind labels a decode failure for metrics.
func decodeKind(err error) string {
	var de *openflow.DecodeError
	if errors.As(err, &de) {
		return de.Kind.String()
	}
	return "other"
}
