// Package of13 implements the OpenFlow 1.3 message bodies. The layouts
// follow the OpenFlow Switch Specification 1.3.3 bit for bit; all
// integers are network byte order and reserved bytes are written as zero.
package of13

import (
	"github.com/ciena/ofcore/openflow"
)

// Version is the wire identifier for OpenFlow 1.3.
const Version = openflow.V13

// Message type codes.
const (
	TypeHello uint8 = iota
	TypeError
	TypeEchoRequest
	TypeEchoReply
	TypeExperimenter
	TypeFeaturesRequest
	TypeFeaturesReply
	TypeGetConfigRequest
	TypeGetConfigReply
	TypeSetConfig
	TypePacketIn
	TypeFlowRemoved
	TypePortStatus
	TypePacketOut
	TypeFlowMod
	TypeGroupMod
	TypePortMod
	TypeTableMod
	TypeMultipartRequest
	TypeMultipartReply
	TypeBarrierRequest
	TypeBarrierReply
	TypeQueueGetConfigRequest
	TypeQueueGetConfigReply
	TypeRoleRequest
	TypeRoleReply
	TypeGetAsyncRequest
	TypeGetAsyncReply
	TypeSetAsync
	TypeMeterMod
)

func init() {
	openflow.RegisterVersion(Version, Parse)
}

// bodies maps each recognized type code to a constructor for its body.
var bodies = map[uint8]func() openflow.Message{
	TypeHello:            func() openflow.Message { return new(Hello) },
	TypeError:            func() openflow.Message { return new(Error) },
	TypeEchoRequest:      func() openflow.Message { return new(EchoRequest) },
	TypeEchoReply:        func() openflow.Message { return new(EchoReply) },
	TypeExperimenter:     func() openflow.Message { return new(Experimenter) },
	TypeFeaturesRequest:  func() openflow.Message { return new(FeaturesRequest) },
	TypeFeaturesReply:    func() openflow.Message { return new(SwitchFeatures) },
	TypeGetConfigRequest: func() openflow.Message { return new(GetConfigRequest) },
	TypeGetConfigReply:   func() openflow.Message { return new(SwitchConfig) },
	TypeSetConfig:        func() openflow.Message { return new(SwitchConfig) },
	TypePacketIn:         func() openflow.Message { return new(PacketIn) },
	TypeFlowRemoved:      func() openflow.Message { return new(FlowRemoved) },
	TypePortStatus:       func() openflow.Message { return new(PortStatus) },
	TypePacketOut:        func() openflow.Message { return new(PacketOut) },
	TypeFlowMod:          func() openflow.Message { return new(Raw) },
	TypeGroupMod:         func() openflow.Message { return new(Raw) },
	TypePortMod:          func() openflow.Message { return new(Raw) },
	TypeTableMod:         func() openflow.Message { return new(Raw) },
	TypeMultipartRequest: func() openflow.Message { return new(Raw) },
	TypeMultipartReply:   func() openflow.Message { return new(Raw) },
	TypeBarrierRequest:   func() openflow.Message { return new(BarrierRequest) },
	TypeBarrierReply:     func() openflow.Message { return new(BarrierReply) },
	TypeQueueGetConfigRequest: func() openflow.Message { return new(Raw) },
	TypeQueueGetConfigReply:   func() openflow.Message { return new(Raw) },
	TypeRoleRequest:           func() openflow.Message { return new(Raw) },
	TypeRoleReply:             func() openflow.Message { return new(Raw) },
	TypeGetAsyncRequest:       func() openflow.Message { return new(Raw) },
	TypeGetAsyncReply:         func() openflow.Message { return new(Raw) },
	TypeSetAsync:              func() openflow.Message { return new(Raw) },
	TypeMeterMod:              func() openflow.Message { return new(Raw) },
}

// Parse decodes one complete 1.3 frame.
func Parse(b []byte) (openflow.Message, error) {
	var h openflow.Header
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	ctor, ok := bodies[h.Type]
	if !ok {
		return nil, openflow.NewUnknownType(h.Version, h.Type)
	}
	m := ctor()
	if err := m.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return m, nil
}

// payload validates the frame against its declared length and returns
// the bytes after the common header.
func payload(b []byte) (*openflow.Header, []byte, error) {
	var h openflow.Header
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, nil, err
	}
	if int(h.Length) > len(b) {
		return nil, nil, openflow.NewTruncated(h.Version, h.Type, "declared length exceeds available bytes")
	}
	if h.Length < openflow.HeaderLen {
		return nil, nil, openflow.NewMalformed(h.Version, h.Type, "declared length shorter than common header")
	}
	return &h, b[openflow.HeaderLen:h.Length], nil
}
