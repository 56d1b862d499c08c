// Package dispatch delivers decoded protocol events and connection
// lifecycle events to registered application components. Components
// declare which message kinds they want to observe; delivery is
// synchronous, in registration order, on whichever goroutine owns the
// triggering connection. A failing component is isolated so its fault
// never reaches the connection or the other subscribers.
package dispatch

import (
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/metrics"
	"github.com/ciena/ofcore/openflow"
)

// Event is one occurrence pushed to application components: either a
// decoded message tagged with its source connection, or a lifecycle
// transition of that connection.
type Event struct {
	// Kind classifies the event. Lifecycle events use the pseudo kinds
	// KindConnected, KindEstablished and KindDisconnected.
	Kind openflow.Kind

	// Source is the connection the event originated on. Before the
	// handshake completes its DPID method reports no id yet.
	Source datapath.Switch

	// DPID is set on KindEstablished and on every event after it.
	DPID uint64

	// Message is the decoded frame. Nil for lifecycle events.
	Message openflow.Message

	// Reason is the close cause carried by KindDisconnected.
	Reason error
}

// Component is a pluggable application module. Handle is invoked
// concurrently from multiple connections' goroutines and must be safe
// for that; within a single connection events arrive strictly in the
// order the underlying bytes were received.
//
// A returned error is reported and counted but does not stop delivery
// to other components, nor delivery of later events to this one.
type Component interface {
	// Name identifies the component in logs and metrics.
	Name() string

	// Handle consumes one event.
	Handle(ev Event) error
}

// Interest selects which event kinds a component observes.
type Interest struct {
	all   bool
	kinds map[openflow.Kind]struct{}
}

// All matches every event kind. Used by generic monitoring components.
func All() Interest {
	return Interest{all: true}
}

// Kinds matches exactly the listed event kinds.
func Kinds(kinds ...openflow.Kind) Interest {
	set := make(map[openflow.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return Interest{kinds: set}
}

// Matches reports whether the interest covers the given kind.
func (i Interest) Matches(k openflow.Kind) bool {
	if i.all {
		return true
	}
	_, ok := i.kinds[k]
	return ok
}

type subscription struct {
	component Component
	interest  Interest
}

// Dispatcher fans events out to subscribed components.
//
// Publish iterates a snapshot of the subscription list taken under the
// lock, so a subscribe or unsubscribe issued while a publish is in
// flight (including from inside a handler) never perturbs that
// publish's iteration; it takes effect for subsequent events.
type Dispatcher struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewDispatcher creates a dispatcher with no subscribers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a component for the given interest. Registration
// order defines delivery order among components with overlapping
// interest. Subscribing an already registered component replaces its
// interest in place, keeping its original position.
func (d *Dispatcher) Subscribe(c Component, interest Interest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.subs {
		if d.subs[i].component == c {
			d.subs[i].interest = interest
			return
		}
	}
	d.subs = append(d.subs, subscription{component: c, interest: interest})
	log.WithFields(log.Fields{
		"component": c.Name(),
	}).Debug("Component subscribed")
}

// Unsubscribe removes a component. A publish already in flight still
// completes delivery to it.
func (d *Dispatcher) Unsubscribe(c Component) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.subs {
		if d.subs[i].component == c {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event synchronously, in registration order, to
// every component whose interest matches. Safe for concurrent use from
// multiple connections; events from a single connection keep their
// arrival order because that connection publishes them sequentially.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(ev.Kind.String()).Inc()

	for _, s := range subs {
		if !s.interest.Matches(ev.Kind) {
			continue
		}
		d.deliver(s.component, ev)
	}
}

// deliver invokes one component, converting a panic or error into a
// reported, isolated component failure.
func (d *Dispatcher) deliver(c Component, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ComponentFailures.WithLabelValues(c.Name()).Inc()
			log.WithFields(log.Fields{
				"component": c.Name(),
				"event":     ev.Kind.String(),
				"panic":     r,
				"stack":     string(debug.Stack()),
			}).Error("Component panicked handling event")
		}
	}()
	if err := c.Handle(ev); err != nil {
		metrics.ComponentFailures.WithLabelValues(c.Name()).Inc()
		log.WithFields(log.Fields{
			"component": c.Name(),
			"event":     ev.Kind.String(),
		}).WithError(err).Error("Component failed handling event")
	}
}
