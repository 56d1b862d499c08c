// Package monitor is a sample application component: it watches switch
// lifecycle events and packet in traffic, applies a configurable match
// filter, and reports what it sees through the log and the metrics
// endpoint. It doubles as a template for writing real components.
package monitor

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/criteria"
	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/dispatch"
	"github.com/ciena/ofcore/metrics"
	"github.com/ciena/ofcore/openflow"
	"github.com/ciena/ofcore/openflow/of10"
	"github.com/ciena/ofcore/openflow/of12"
	"github.com/ciena/ofcore/openflow/of13"
	"github.com/ciena/ofcore/openflow/of14"
)

// Monitor logs matching packet in events and counts them by ethernet
// type.
type Monitor struct {
	Filter criteria.Criteria

	packets *prometheus.CounterVec
}

// New builds a monitor and registers its counter on the shared metrics
// registry. Call at most once per process.
func New(filter criteria.Criteria) *Monitor {
	m := &Monitor{
		Filter: filter,
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ofcore",
			Subsystem: "monitor",
			Name:      "packets_total",
			Help:      "Packet in messages that matched the monitor filter",
		}, []string{"dl_type"}),
	}
	metrics.MustRegister(m.packets)
	return m
}

// Name implements dispatch.Component.
func (m *Monitor) Name() string {
	return "packet-monitor"
}

// Interest returns the event kinds the monitor wants delivered.
func (m *Monitor) Interest() dispatch.Interest {
	return dispatch.Kinds(openflow.KindEstablished, openflow.KindDisconnected, openflow.KindPacketIn)
}

// Handle implements dispatch.Component.
func (m *Monitor) Handle(ev dispatch.Event) error {
	switch ev.Kind {
	case openflow.KindEstablished:
		log.WithFields(log.Fields{
			"dpid": datapath.DPIDString(ev.DPID),
		}).Info("Device joined")
	case openflow.KindDisconnected:
		log.WithFields(log.Fields{
			"dpid": datapath.DPIDString(ev.DPID),
		}).Info("Device left")
	case openflow.KindPacketIn:
		return m.packetIn(ev)
	}
	return nil
}

func (m *Monitor) packetIn(ev dispatch.Event) error {
	data, inPort, hasPort := packetInInfo(ev.Message)
	if data == nil {
		return nil
	}

	pkt := gopacket.NewPacket(data,
		layers.LayerTypeEthernet,
		gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	eth := pkt.Layer(layers.LayerTypeEthernet)
	if eth == nil {
		return nil
	}
	frame := eth.(*layers.Ethernet)

	state := criteria.Criteria{
		Set:    criteria.BitDLType,
		DlType: uint16(frame.EthernetType),
	}
	if hasPort {
		state.Set |= criteria.BitInPort
		state.InPort = inPort
	}
	if !m.Filter.Match(state) {
		return nil
	}

	log.WithFields(log.Fields{
		"dpid":    datapath.DPIDString(ev.DPID),
		"in_port": inPort,
		"dl_src":  frame.SrcMAC.String(),
		"dl_dst":  frame.DstMAC.String(),
		"dl_type": fmt.Sprintf("0x%04x", uint16(frame.EthernetType)),
	}).Info("Packet in")
	m.packets.WithLabelValues(fmt.Sprintf("0x%04x", uint16(frame.EthernetType))).Inc()
	return nil
}

// packetInInfo pulls the frame bytes and ingress port out of any
// version's packet in. Port extraction for 1.2 and later goes through
// the OXM match.
func packetInInfo(msg openflow.Message) (data []byte, inPort uint32, hasPort bool) {
	switch pi := msg.(type) {
	case *of10.PacketIn:
		return pi.Data, uint32(pi.InPort), true
	case *of12.PacketIn:
		port, ok := pi.Match.InPort()
		return pi.Data, port, ok
	case *of13.PacketIn:
		port, ok := pi.Match.InPort()
		return pi.Data, port, ok
	case *of14.PacketIn:
		port, ok := pi.Match.InPort()
		return pi.Data, port, ok
	}
	return nil, 0, false
}
