package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciena/ofcore/criteria"
	"github.com/ciena/ofcore/dispatch"
	"github.com/ciena/ofcore/openflow"
	"github.com/ciena/ofcore/openflow/of10"
	"github.com/ciena/ofcore/openflow/of13"
)

func newTestMonitor(filter criteria.Criteria) *Monitor {
	return &Monitor{
		Filter: filter,
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_packets_total",
		}, []string{"dl_type"}),
	}
}

// ipv4Frame is a minimal ethernet header with an IPv4 ethertype.
func ipv4Frame() []byte {
	return []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb,
		0x08, 0x00,
		0x45, 0x00, 0x00, 0x14,
	}
}

func TestMatchingPacketCounted(t *testing.T) {
	m := newTestMonitor(criteria.Criteria{Set: criteria.BitDLType, DlType: 0x0800})

	pi := &of13.PacketIn{
		Match: openflow.NewInPortMatch(2),
		Data:  ipv4Frame(),
	}
	require.NoError(t, m.Handle(dispatch.Event{
		Kind:    openflow.KindPacketIn,
		DPID:    1,
		Message: pi,
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.packets.WithLabelValues("0x0800")))
}

func TestFilteredPacketIgnored(t *testing.T) {
	// Filter on LLDP, feed it IPv4.
	m := newTestMonitor(criteria.Criteria{Set: criteria.BitDLType, DlType: 0x88cc})

	pi := &of13.PacketIn{
		Match: openflow.NewInPortMatch(2),
		Data:  ipv4Frame(),
	}
	require.NoError(t, m.Handle(dispatch.Event{Kind: openflow.KindPacketIn, Message: pi}))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.packets.WithLabelValues("0x0800")))
}

func TestInPortFilter(t *testing.T) {
	m := newTestMonitor(criteria.Criteria{Set: criteria.BitInPort, InPort: 7})

	hit := &of10.PacketIn{InPort: 7, Data: ipv4Frame()}
	miss := &of10.PacketIn{InPort: 8, Data: ipv4Frame()}
	require.NoError(t, m.Handle(dispatch.Event{Kind: openflow.KindPacketIn, Message: hit}))
	require.NoError(t, m.Handle(dispatch.Event{Kind: openflow.KindPacketIn, Message: miss}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.packets.WithLabelValues("0x0800")))
}

func TestLifecycleEventsTolerated(t *testing.T) {
	m := newTestMonitor(criteria.Criteria{})
	require.NoError(t, m.Handle(dispatch.Event{Kind: openflow.KindEstablished, DPID: 4}))
	require.NoError(t, m.Handle(dispatch.Event{Kind: openflow.KindDisconnected, DPID: 4}))
}
