package dispatch

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ciena/ofcore/openflow"
)

type recorder struct {
	name string
	mu   sync.Mutex
	seen []openflow.Kind

	fail    error
	panic   bool
	onEvent func(ev Event)
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Handle(ev Event) error {
	r.mu.Lock()
	r.seen = append(r.seen, ev.Kind)
	r.mu.Unlock()
	if r.onEvent != nil {
		r.onEvent(ev)
	}
	if r.panic {
		panic("component bug")
	}
	return r.fail
}

func (r *recorder) kinds() []openflow.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]openflow.Kind(nil), r.seen...)
}

func TestDeliveryInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string
	mk := func(name string) *recorder {
		r := &recorder{name: name}
		r.onEvent = func(Event) { order = append(order, name) }
		return r
	}
	d.Subscribe(mk("first"), All())
	d.Subscribe(mk("second"), All())
	d.Subscribe(mk("third"), All())

	d.Publish(Event{Kind: openflow.KindPacketIn})
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestInterestFilters(t *testing.T) {
	d := NewDispatcher()
	packets := &recorder{name: "packets"}
	everything := &recorder{name: "everything"}
	d.Subscribe(packets, Kinds(openflow.KindPacketIn))
	d.Subscribe(everything, All())

	d.Publish(Event{Kind: openflow.KindPacketIn})
	d.Publish(Event{Kind: openflow.KindPortStatus})

	assert.Equal(t, []openflow.Kind{openflow.KindPacketIn}, packets.kinds())
	assert.Equal(t, []openflow.Kind{openflow.KindPacketIn, openflow.KindPortStatus}, everything.kinds())
}

func TestFailingComponentIsolated(t *testing.T) {
	d := NewDispatcher()
	bad := &recorder{name: "bad", fail: errors.New("broken")}
	good := &recorder{name: "good"}
	d.Subscribe(bad, All())
	d.Subscribe(good, All())

	d.Publish(Event{Kind: openflow.KindPacketIn})
	d.Publish(Event{Kind: openflow.KindPacketIn})

	// The failure neither stops delivery to good nor suspends bad.
	assert.Len(t, good.kinds(), 2)
	assert.Len(t, bad.kinds(), 2)
}

func TestPanickingComponentIsolated(t *testing.T) {
	d := NewDispatcher()
	bad := &recorder{name: "bad", panic: true}
	good := &recorder{name: "good"}
	d.Subscribe(bad, All())
	d.Subscribe(good, All())

	d.Publish(Event{Kind: openflow.KindFlowRemoved})
	assert.Len(t, good.kinds(), 1)
}

func TestSubscribeDuringPublishDeferred(t *testing.T) {
	d := NewDispatcher()
	late := &recorder{name: "late"}
	joiner := &recorder{name: "joiner"}
	joiner.onEvent = func(Event) { d.Subscribe(late, All()) }
	d.Subscribe(joiner, All())

	d.Publish(Event{Kind: openflow.KindPacketIn})
	// The in flight publish completed against the old subscriber list.
	assert.Empty(t, late.kinds())

	d.Publish(Event{Kind: openflow.KindPacketIn})
	assert.Len(t, late.kinds(), 1)
}

func TestUnsubscribeDuringPublishDeferred(t *testing.T) {
	d := NewDispatcher()
	victim := &recorder{name: "victim"}
	leaver := &recorder{name: "leaver"}
	leaver.onEvent = func(Event) { d.Unsubscribe(victim) }
	d.Subscribe(leaver, All())
	d.Subscribe(victim, All())

	d.Publish(Event{Kind: openflow.KindPacketIn})
	// Already part of the snapshot, so it still saw this event.
	assert.Len(t, victim.kinds(), 1)

	d.Publish(Event{Kind: openflow.KindPacketIn})
	assert.Len(t, victim.kinds(), 1)
}

func TestResubscribeKeepsPosition(t *testing.T) {
	d := NewDispatcher()
	var order []string
	mk := func(name string) *recorder {
		r := &recorder{name: name}
		r.onEvent = func(Event) { order = append(order, name) }
		return r
	}
	a := mk("a")
	b := mk("b")
	d.Subscribe(a, Kinds(openflow.KindPacketIn))
	d.Subscribe(b, All())

	// Widening a's interest must not move it behind b.
	d.Subscribe(a, All())
	d.Publish(Event{Kind: openflow.KindPortStatus})
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestConcurrentPublish(t *testing.T) {
	d := NewDispatcher()
	sink := &recorder{name: "sink"}
	d.Subscribe(sink, All())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Publish(Event{Kind: openflow.KindPacketIn})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, sink.kinds(), 800)
}
