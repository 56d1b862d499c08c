package of10

import (
	"encoding/binary"

	"github.com/ciena/ofcore/openflow"
)

// Hello opens version negotiation. 1.0 has no hello elements; any body
// bytes a peer sends are preserved opaquely.
type Hello struct {
	openflow.Header
	Data []byte
}

// NewHello builds a 1.0 hello advertising this protocol version.
func NewHello(xid uint32) *Hello {
	return &Hello{Header: openflow.Header{Version: Version, Type: TypeHello, XID: xid}}
}

func (m *Hello) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeHello
	return m.Marshal(m.Data)
}

func (m *Hello) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	m.Header = *h
	m.Data = append([]byte(nil), body...)
	return nil
}

// Error reports a protocol failure from the switch. Data carries at
// least the header of the offending request.
type Error struct {
	openflow.Header
	ErrType uint16
	Code    uint16
	Data    []byte
}

func (m *Error) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeError
	body := make([]byte, 4, 4+len(m.Data))
	binary.BigEndian.PutUint16(body[0:2], m.ErrType)
	binary.BigEndian.PutUint16(body[2:4], m.Code)
	body = append(body, m.Data...)
	return m.Marshal(body)
}

func (m *Error) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 4 {
		return openflow.NewTruncated(h.Version, h.Type, "error body shorter than its fixed fields")
	}
	m.Header = *h
	m.ErrType = binary.BigEndian.Uint16(body[0:2])
	m.Code = binary.BigEndian.Uint16(body[2:4])
	m.Data = append([]byte(nil), body[4:]...)
	return nil
}

// EchoRequest is the liveness probe. The payload, if any, is echoed
// back verbatim in the reply.
type EchoRequest struct {
	openflow.Header
	Data []byte
}

// NewEchoRequest builds an empty echo request.
func NewEchoRequest(xid uint32) *EchoRequest {
	return &EchoRequest{Header: openflow.Header{Version: Version, Type: TypeEchoRequest, XID: xid}}
}

func (m *EchoRequest) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeEchoRequest
	return m.Marshal(m.Data)
}

func (m *EchoRequest) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	m.Header = *h
	m.Data = append([]byte(nil), body...)
	return nil
}

// EchoReply answers an echo request, mirroring its payload and
// transaction id.
type EchoReply struct {
	openflow.Header
	Data []byte
}

// NewEchoReply builds the reply to the given echo request.
func NewEchoReply(req *EchoRequest) *EchoReply {
	return &EchoReply{
		Header: openflow.Header{Version: Version, Type: TypeEchoReply, XID: req.XID},
		Data:   req.Data,
	}
}

func (m *EchoReply) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeEchoReply
	return m.Marshal(m.Data)
}

func (m *EchoReply) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	m.Header = *h
	m.Data = append([]byte(nil), body...)
	return nil
}

// Vendor is the 1.0 extension mechanism (renamed experimenter in later
// versions). The payload past the vendor id is opaque to the core;
// interpretation belongs to whichever application recognizes the id.
type Vendor struct {
	openflow.Header
	Vendor uint32
	Data   []byte
}

func (m *Vendor) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeVendor
	body := make([]byte, 4, 4+len(m.Data))
	binary.BigEndian.PutUint32(body[0:4], m.Vendor)
	body = append(body, m.Data...)
	return m.Marshal(body)
}

func (m *Vendor) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 4 {
		return openflow.NewTruncated(h.Version, h.Type, "vendor body shorter than its id")
	}
	m.Header = *h
	m.Vendor = binary.BigEndian.Uint32(body[0:4])
	m.Data = append([]byte(nil), body[4:]...)
	return nil
}

// FeaturesRequest solicits the switch's datapath id and capabilities.
type FeaturesRequest struct {
	openflow.Header
}

// NewFeaturesRequest builds a features request.
func NewFeaturesRequest(xid uint32) *FeaturesRequest {
	return &FeaturesRequest{Header: openflow.Header{Version: Version, Type: TypeFeaturesRequest, XID: xid}}
}

func (m *FeaturesRequest) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeFeaturesRequest
	return m.Marshal(nil)
}

func (m *FeaturesRequest) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 0 {
		return openflow.NewMalformed(h.Version, h.Type, "unexpected body on features request")
	}
	m.Header = *h
	return nil
}

// PhyPortLen is the encoded size of a 1.0 physical port description.
const PhyPortLen = 48

// PhyPort describes one physical port in a features reply or port
// status message.
type PhyPort struct {
	PortNo     uint16
	HWAddr     [6]byte
	Name       [16]byte
	Config     uint32
	State      uint32
	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

func (p *PhyPort) append(b []byte) []byte {
	var buf [PhyPortLen]byte
	binary.BigEndian.PutUint16(buf[0:2], p.PortNo)
	copy(buf[2:8], p.HWAddr[:])
	copy(buf[8:24], p.Name[:])
	binary.BigEndian.PutUint32(buf[24:28], p.Config)
	binary.BigEndian.PutUint32(buf[28:32], p.State)
	binary.BigEndian.PutUint32(buf[32:36], p.Curr)
	binary.BigEndian.PutUint32(buf[36:40], p.Advertised)
	binary.BigEndian.PutUint32(buf[40:44], p.Supported)
	binary.BigEndian.PutUint32(buf[44:48], p.Peer)
	return append(b, buf[:]...)
}

func (p *PhyPort) unmarshal(b []byte) {
	p.PortNo = binary.BigEndian.Uint16(b[0:2])
	copy(p.HWAddr[:], b[2:8])
	copy(p.Name[:], b[8:24])
	p.Config = binary.BigEndian.Uint32(b[24:28])
	p.State = binary.BigEndian.Uint32(b[28:32])
	p.Curr = binary.BigEndian.Uint32(b[32:36])
	p.Advertised = binary.BigEndian.Uint32(b[36:40])
	p.Supported = binary.BigEndian.Uint32(b[40:44])
	p.Peer = binary.BigEndian.Uint32(b[44:48])
}

// SwitchFeatures is the features reply carrying the 64 bit datapath id
// that names the switch for the rest of its connection's life.
type SwitchFeatures struct {
	openflow.Header
	DPID         uint64
	Buffers      uint32
	Tables       uint8
	Capabilities uint32
	Actions      uint32
	Ports        []PhyPort
}

func (m *SwitchFeatures) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeFeaturesReply
	body := make([]byte, 24, 24+len(m.Ports)*PhyPortLen)
	binary.BigEndian.PutUint64(body[0:8], m.DPID)
	binary.BigEndian.PutUint32(body[8:12], m.Buffers)
	body[12] = m.Tables
	binary.BigEndian.PutUint32(body[16:20], m.Capabilities)
	binary.BigEndian.PutUint32(body[20:24], m.Actions)
	for i := range m.Ports {
		body = m.Ports[i].append(body)
	}
	return m.Marshal(body)
}

func (m *SwitchFeatures) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 24 {
		return openflow.NewTruncated(h.Version, h.Type, "features reply shorter than its fixed fields")
	}
	if (len(body)-24)%PhyPortLen != 0 {
		return openflow.NewMalformed(h.Version, h.Type, "features reply port list not a whole number of ports")
	}
	m.Header = *h
	m.DPID = binary.BigEndian.Uint64(body[0:8])
	m.Buffers = binary.BigEndian.Uint32(body[8:12])
	m.Tables = body[12]
	m.Capabilities = binary.BigEndian.Uint32(body[16:20])
	m.Actions = binary.BigEndian.Uint32(body[20:24])
	m.Ports = nil
	for rest := body[24:]; len(rest) > 0; rest = rest[PhyPortLen:] {
		var p PhyPort
		p.unmarshal(rest)
		m.Ports = append(m.Ports, p)
	}
	return nil
}

// GetConfigRequest solicits the switch configuration.
type GetConfigRequest struct {
	openflow.Header
}

func (m *GetConfigRequest) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeGetConfigRequest
	return m.Marshal(nil)
}

func (m *GetConfigRequest) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 0 {
		return openflow.NewMalformed(h.Version, h.Type, "unexpected body on get config request")
	}
	m.Header = *h
	return nil
}

// SwitchConfig is the body shared by get-config-reply and set-config.
// The header's type distinguishes the two.
type SwitchConfig struct {
	openflow.Header
	Flags       uint16
	MissSendLen uint16
}

func (m *SwitchConfig) MarshalBinary() ([]byte, error) {
	m.Version = Version
	if m.Type != TypeGetConfigReply && m.Type != TypeSetConfig {
		m.Type = TypeSetConfig
	}
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], m.Flags)
	binary.BigEndian.PutUint16(body[2:4], m.MissSendLen)
	return m.Marshal(body)
}

func (m *SwitchConfig) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 4 {
		return openflow.NewMalformed(h.Version, h.Type, "switch config body is not four bytes")
	}
	m.Header = *h
	m.Flags = binary.BigEndian.Uint16(body[0:2])
	m.MissSendLen = binary.BigEndian.Uint16(body[2:4])
	return nil
}

// PacketIn delivers a packet that missed the flow tables (or was
// explicitly sent to the controller) together with its ingress port.
type PacketIn struct {
	openflow.Header
	BufferID uint32
	TotalLen uint16
	InPort   uint16
	Reason   uint8
	Data     []byte
}

func (m *PacketIn) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypePacketIn
	body := make([]byte, 10, 10+len(m.Data))
	binary.BigEndian.PutUint32(body[0:4], m.BufferID)
	binary.BigEndian.PutUint16(body[4:6], m.TotalLen)
	binary.BigEndian.PutUint16(body[6:8], m.InPort)
	body[8] = m.Reason
	body = append(body, m.Data...)
	return m.Marshal(body)
}

func (m *PacketIn) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 10 {
		return openflow.NewTruncated(h.Version, h.Type, "packet in shorter than its fixed fields")
	}
	m.Header = *h
	m.BufferID = binary.BigEndian.Uint32(body[0:4])
	m.TotalLen = binary.BigEndian.Uint16(body[4:6])
	m.InPort = binary.BigEndian.Uint16(body[6:8])
	m.Reason = body[8]
	m.Data = append([]byte(nil), body[10:]...)
	return nil
}

// Match is the 40 byte 1.0 exact/wildcard flow match.
type Match struct {
	Wildcards uint32
	InPort    uint16
	DLSrc     [6]byte
	DLDst     [6]byte
	DLVLAN    uint16
	DLVLANPCP uint8
	DLType    uint16
	NWTOS     uint8
	NWProto   uint8
	NWSrc     uint32
	NWDst     uint32
	TPSrc     uint16
	TPDst     uint16
}

// MatchLen is the encoded size of a 1.0 match.
const MatchLen = 40

func (m *Match) append(b []byte) []byte {
	var buf [MatchLen]byte
	binary.BigEndian.PutUint32(buf[0:4], m.Wildcards)
	binary.BigEndian.PutUint16(buf[4:6], m.InPort)
	copy(buf[6:12], m.DLSrc[:])
	copy(buf[12:18], m.DLDst[:])
	binary.BigEndian.PutUint16(buf[18:20], m.DLVLAN)
	buf[20] = m.DLVLANPCP
	binary.BigEndian.PutUint16(buf[22:24], m.DLType)
	buf[24] = m.NWTOS
	buf[25] = m.NWProto
	binary.BigEndian.PutUint32(buf[28:32], m.NWSrc)
	binary.BigEndian.PutUint32(buf[32:36], m.NWDst)
	binary.BigEndian.PutUint16(buf[36:38], m.TPSrc)
	binary.BigEndian.PutUint16(buf[38:40], m.TPDst)
	return append(b, buf[:]...)
}

func (m *Match) unmarshal(b []byte) {
	m.Wildcards = binary.BigEndian.Uint32(b[0:4])
	m.InPort = binary.BigEndian.Uint16(b[4:6])
	copy(m.DLSrc[:], b[6:12])
	copy(m.DLDst[:], b[12:18])
	m.DLVLAN = binary.BigEndian.Uint16(b[18:20])
	m.DLVLANPCP = b[20]
	m.DLType = binary.BigEndian.Uint16(b[22:24])
	m.NWTOS = b[24]
	m.NWProto = b[25]
	m.NWSrc = binary.BigEndian.Uint32(b[28:32])
	m.NWDst = binary.BigEndian.Uint32(b[32:36])
	m.TPSrc = binary.BigEndian.Uint16(b[36:38])
	m.TPDst = binary.BigEndian.Uint16(b[38:40])
}

// FlowRemoved announces the expiry or deletion of a flow entry.
type FlowRemoved struct {
	openflow.Header
	Match        Match
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	DurationSec  uint32
	DurationNSec uint32
	IdleTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
}

func (m *FlowRemoved) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeFlowRemoved
	body := m.Match.append(make([]byte, 0, 80))
	var fixed [40]byte
	binary.BigEndian.PutUint64(fixed[0:8], m.Cookie)
	binary.BigEndian.PutUint16(fixed[8:10], m.Priority)
	fixed[10] = m.Reason
	binary.BigEndian.PutUint32(fixed[12:16], m.DurationSec)
	binary.BigEndian.PutUint32(fixed[16:20], m.DurationNSec)
	binary.BigEndian.PutUint16(fixed[20:22], m.IdleTimeout)
	binary.BigEndian.PutUint64(fixed[24:32], m.PacketCount)
	binary.BigEndian.PutUint64(fixed[32:40], m.ByteCount)
	body = append(body, fixed[:]...)
	return m.Marshal(body)
}

func (m *FlowRemoved) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 80 {
		return openflow.NewMalformed(h.Version, h.Type, "flow removed body is not eighty bytes")
	}
	m.Header = *h
	m.Match.unmarshal(body[0:40])
	fixed := body[40:]
	m.Cookie = binary.BigEndian.Uint64(fixed[0:8])
	m.Priority = binary.BigEndian.Uint16(fixed[8:10])
	m.Reason = fixed[10]
	m.DurationSec = binary.BigEndian.Uint32(fixed[12:16])
	m.DurationNSec = binary.BigEndian.Uint32(fixed[16:20])
	m.IdleTimeout = binary.BigEndian.Uint16(fixed[20:22])
	m.PacketCount = binary.BigEndian.Uint64(fixed[24:32])
	m.ByteCount = binary.BigEndian.Uint64(fixed[32:40])
	return nil
}

// PortStatus announces a port coming, going, or changing configuration.
type PortStatus struct {
	openflow.Header
	Reason uint8
	Desc   PhyPort
}

func (m *PortStatus) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypePortStatus
	body := make([]byte, 8, 8+PhyPortLen)
	body[0] = m.Reason
	body = m.Desc.append(body)
	return m.Marshal(body)
}

func (m *PortStatus) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 8+PhyPortLen {
		return openflow.NewMalformed(h.Version, h.Type, "port status body has wrong length")
	}
	m.Header = *h
	m.Reason = body[0]
	m.Desc.unmarshal(body[8:])
	return nil
}

// PacketOut instructs the switch to emit a packet. Actions carries the
// pre-encoded action list; the core does not model individual actions.
type PacketOut struct {
	openflow.Header
	BufferID uint32
	InPort   uint16
	Actions  []byte
	Data     []byte
}

func (m *PacketOut) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypePacketOut
	body := make([]byte, 8, 8+len(m.Actions)+len(m.Data))
	binary.BigEndian.PutUint32(body[0:4], m.BufferID)
	binary.BigEndian.PutUint16(body[4:6], m.InPort)
	binary.BigEndian.PutUint16(body[6:8], uint16(len(m.Actions)))
	body = append(body, m.Actions...)
	body = append(body, m.Data...)
	return m.Marshal(body)
}

func (m *PacketOut) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 8 {
		return openflow.NewTruncated(h.Version, h.Type, "packet out shorter than its fixed fields")
	}
	alen := int(binary.BigEndian.Uint16(body[6:8]))
	if 8+alen > len(body) {
		return openflow.NewMalformed(h.Version, h.Type, "packet out action list exceeds body")
	}
	m.Header = *h
	m.BufferID = binary.BigEndian.Uint32(body[0:4])
	m.InPort = binary.BigEndian.Uint16(body[4:6])
	m.Actions = append([]byte(nil), body[8:8+alen]...)
	m.Data = append([]byte(nil), body[8+alen:]...)
	return nil
}

// BarrierRequest asks the switch to finish processing everything sent
// before it, then answer.
type BarrierRequest struct {
	openflow.Header
}

// NewBarrierRequest builds a barrier request.
func NewBarrierRequest(xid uint32) *BarrierRequest {
	return &BarrierRequest{Header: openflow.Header{Version: Version, Type: TypeBarrierRequest, XID: xid}}
}

func (m *BarrierRequest) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeBarrierRequest
	return m.Marshal(nil)
}

func (m *BarrierRequest) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 0 {
		return openflow.NewMalformed(h.Version, h.Type, "unexpected body on barrier request")
	}
	m.Header = *h
	return nil
}

// BarrierReply completes a barrier round trip.
type BarrierReply struct {
	openflow.Header
}

func (m *BarrierReply) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeBarrierReply
	return m.Marshal(nil)
}

func (m *BarrierReply) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 0 {
		return openflow.NewMalformed(h.Version, h.Type, "unexpected body on barrier reply")
	}
	m.Header = *h
	return nil
}

// Raw preserves a recognized message whose interior structure the core
// does not model (flow-mod, port-mod, stats). Applications that build
// these messages encode the body themselves.
type Raw struct {
	openflow.Header
	Data []byte
}

func (m *Raw) MarshalBinary() ([]byte, error) {
	m.Version = Version
	return m.Marshal(m.Data)
}

func (m *Raw) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	m.Header = *h
	m.Data = append([]byte(nil), body...)
	return nil
}
