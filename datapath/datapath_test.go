package datapath

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciena/ofcore/openflow"
)

type fakeSwitch struct {
	dpid   uint64
	closed error
}

func (f *fakeSwitch) DPID() (uint64, bool) { return f.dpid, true }
func (f *fakeSwitch) Version() uint8       { return openflow.V13 }
func (f *fakeSwitch) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4zero, Port: 0}
}
func (f *fakeSwitch) Send(m openflow.Message) error { return nil }
func (f *fakeSwitch) Call(ctx context.Context, m openflow.Message) (openflow.Message, error) {
	return nil, nil
}
func (f *fakeSwitch) Close(reason error) { f.closed = reason }

func TestRegisterLookup(t *testing.T) {
	r := NewRegistry()
	sw := &fakeSwitch{dpid: 1}
	prior := r.Register(1, sw)
	assert.Nil(t, prior)

	got, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Same(t, sw, got)
	assert.Equal(t, 1, r.Len())
}

func TestReconnectEvictsPrior(t *testing.T) {
	r := NewRegistry()
	old := &fakeSwitch{dpid: 1}
	r.Register(1, old)

	replacement := &fakeSwitch{dpid: 1}
	prior := r.Register(1, replacement)
	assert.Same(t, old, prior)
	assert.ErrorIs(t, old.closed, ErrEvicted)

	got, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 1, r.Len())
}

func TestUnregisterIdentityChecked(t *testing.T) {
	r := NewRegistry()
	old := &fakeSwitch{dpid: 1}
	r.Register(1, old)
	replacement := &fakeSwitch{dpid: 1}
	r.Register(1, replacement)

	// The evicted connection's teardown must not remove its successor.
	assert.False(t, r.Unregister(1, old))
	_, ok := r.Lookup(1)
	assert.True(t, ok)

	assert.True(t, r.Unregister(1, replacement))
	_, ok = r.Lookup(1)
	assert.False(t, ok)
}

func TestListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(9, &fakeSwitch{dpid: 9})
	r.Register(1, &fakeSwitch{dpid: 1})
	r.Register(5, &fakeSwitch{dpid: 5})
	assert.Equal(t, []uint64{1, 5, 9}, r.List())
}

func TestDPIDString(t *testing.T) {
	assert.Equal(t, "of:0x00000000deadbeef", DPIDString(0xdeadbeef))
}
