// Package datapath maintains the process wide table of currently
// connected switches, keyed by the 64 bit datapath id each switch
// reports in its features reply. The registry is the single ownership
// point for "who is connected": connections insert themselves when they
// reach the established state and remove themselves when they close,
// and application components address outbound commands by looking a
// switch up here. There is no other global connection state.
package datapath

import (
	"context"
	"net"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/openflow"
)

// Switch is the control plane handle for one established connection.
// It is what application components hold; the connection internals stay
// behind it.
type Switch interface {
	// DPID returns the datapath id, which is known only once the
	// handshake has completed.
	DPID() (uint64, bool)

	// Version returns the negotiated protocol version.
	Version() uint8

	// RemoteAddr returns the switch side of the transport connection.
	RemoteAddr() net.Addr

	// Send queues a message for transmission. It blocks while the send
	// queue is full and fails once the connection is closing.
	Send(m openflow.Message) error

	// Call sends a request and waits for the correlated reply, the
	// configured transaction timeout, or ctx, whichever comes first.
	Call(ctx context.Context, m openflow.Message) (openflow.Message, error)

	// Close tears the connection down. Idempotent, and safe to call
	// from any goroutine including event handlers.
	Close(reason error)
}

// Registry is the table of established switches. All methods are safe
// for concurrent use; readers always observe fully inserted entries.
type Registry struct {
	mu       sync.RWMutex
	switches map[uint64]Switch
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{switches: make(map[uint64]Switch)}
}

// Register inserts the switch under its datapath id. If another live
// connection already claims the id, the stale one is evicted and
// forcibly closed: a reconnect replaces, never duplicates. The evicted
// handle, if any, is returned.
func (r *Registry) Register(dpid uint64, sw Switch) Switch {
	r.mu.Lock()
	prior := r.switches[dpid]
	r.switches[dpid] = sw
	r.mu.Unlock()

	if prior != nil && prior != sw {
		log.WithFields(log.Fields{
			"dpid": DPIDString(dpid),
		}).Warn("Datapath reconnected, evicting prior connection")
		prior.Close(ErrEvicted)
		return prior
	}
	return nil
}

// Unregister removes the switch, but only when it still owns the entry.
// A connection evicted by a reconnect must not tear down its
// replacement's registration.
func (r *Registry) Unregister(dpid uint64, sw Switch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.switches[dpid]; ok && current == sw {
		delete(r.switches, dpid)
		return true
	}
	return false
}

// Lookup returns the live switch for a datapath id.
func (r *Registry) Lookup(dpid uint64) (Switch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sw, ok := r.switches[dpid]
	return sw, ok
}

// List returns the connected datapath ids in ascending order.
func (r *Registry) List() []uint64 {
	r.mu.RLock()
	dpids := make([]uint64, 0, len(r.switches))
	for dpid := range r.switches {
		dpids = append(dpids, dpid)
	}
	r.mu.RUnlock()
	sort.Slice(dpids, func(i, j int) bool { return dpids[i] < dpids[j] })
	return dpids
}

// Len returns the number of connected datapaths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.switches)
}
