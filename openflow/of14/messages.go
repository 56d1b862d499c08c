package of14

import (
	"encoding/binary"

	"github.com/ciena/ofcore/openflow"
)

// Hello element types.
const HelloElemVersionBitmap uint16 = 1

// HelloElem is one hello element. A version bitmap element carries its
// bitmaps decoded; any other element type is preserved opaquely.
type HelloElem struct {
	Type    uint16
	Bitmaps []uint32
	Data    []byte
}

// Hello opens version negotiation, optionally carrying a bitmap of
// every version the sender speaks.
type Hello struct {
	openflow.Header
	Elems []HelloElem
}

// NewHello builds a hello advertising this controller's highest version
// together with the full supported-version bitmap.
func NewHello(xid uint32) *Hello {
	return &Hello{
		Header: openflow.Header{Version: Version, Type: TypeHello, XID: xid},
		Elems: []HelloElem{{
			Type:    HelloElemVersionBitmap,
			Bitmaps: []uint32{openflow.VersionBitmap()},
		}},
	}
}

// VersionBitmap returns the first version bitmap element, if present.
func (m *Hello) VersionBitmap() (uint32, bool) {
	for _, e := range m.Elems {
		if e.Type == HelloElemVersionBitmap && len(e.Bitmaps) > 0 {
			return e.Bitmaps[0], true
		}
	}
	return 0, false
}

func (m *Hello) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeHello
	var body []byte
	for _, e := range m.Elems {
		var content []byte
		if e.Type == HelloElemVersionBitmap {
			content = make([]byte, 4*len(e.Bitmaps))
			for i, bm := range e.Bitmaps {
				binary.BigEndian.PutUint32(content[i*4:], bm)
			}
		} else {
			content = e.Data
		}
		length := 4 + len(content)
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[0:2], e.Type)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(length))
		body = append(body, hdr[:]...)
		body = append(body, content...)
		for i := length; i < (length+7)/8*8; i++ {
			body = append(body, 0)
		}
	}
	return m.Marshal(body)
}

func (m *Hello) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	m.Header = *h
	m.Elems = nil
	for len(body) > 0 {
		if len(body) < 4 {
			return openflow.NewMalformed(h.Version, h.Type, "hello element header straddles frame boundary")
		}
		var e HelloElem
		e.Type = binary.BigEndian.Uint16(body[0:2])
		length := int(binary.BigEndian.Uint16(body[2:4]))
		if length < 4 {
			return openflow.NewMalformed(h.Version, h.Type, "hello element length shorter than its header")
		}
		padded := (length + 7) / 8 * 8
		if padded > len(body) {
			return openflow.NewTruncated(h.Version, h.Type, "hello element exceeds frame boundary")
		}
		content := body[4:length]
		if e.Type == HelloElemVersionBitmap {
			if len(content)%4 != 0 {
				return openflow.NewMalformed(h.Version, h.Type, "version bitmap element not a whole number of bitmaps")
			}
			for i := 0; i < len(content); i += 4 {
				e.Bitmaps = append(e.Bitmaps, binary.BigEndian.Uint32(content[i:]))
			}
		} else {
			e.Data = append([]byte(nil), content...)
		}
		m.Elems = append(m.Elems, e)
		body = body[padded:]
	}
	return nil
}

// Error reports a protocol failure from the switch.
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

// EchoRequest is the liveness probe.
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

// Experimenter is the vendor extension mechanism. The payload past the
// experimenter id and type is opaque to the core.
type Experimenter struct {
	openflow.Header
	Experimenter uint32
	ExpType      uint32
	Data         []byte
}

func (m *Experimenter) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeExperimenter
	body := make([]byte, 8, 8+len(m.Data))
	binary.BigEndian.PutUint32(body[0:4], m.Experimenter)
	binary.BigEndian.PutUint32(body[4:8], m.ExpType)
	body = append(body, m.Data...)
	return m.Marshal(body)
}

func (m *Experimenter) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 8 {
		return openflow.NewTruncated(h.Version, h.Type, "experimenter body shorter than its ids")
	}
	m.Header = *h
	m.Experimenter = binary.BigEndian.Uint32(body[0:4])
	m.ExpType = binary.BigEndian.Uint32(body[4:8])
	m.Data = append([]byte(nil), body[8:]...)
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

// SwitchFeatures is the features reply, identical in layout to 1.3.
type SwitchFeatures struct {
	openflow.Header
	DPID         uint64
	Buffers      uint32
	Tables       uint8
	AuxiliaryID  uint8
	Capabilities uint32
	Reserved     uint32
}

func (m *SwitchFeatures) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeFeaturesReply
	body := make([]byte, 24)
	binary.BigEndian.PutUint64(body[0:8], m.DPID)
	binary.BigEndian.PutUint32(body[8:12], m.Buffers)
	body[12] = m.Tables
	body[13] = m.AuxiliaryID
	binary.BigEndian.PutUint32(body[16:20], m.Capabilities)
	binary.BigEndian.PutUint32(body[20:24], m.Reserved)
	return m.Marshal(body)
}

func (m *SwitchFeatures) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) != 24 {
		return openflow.NewMalformed(h.Version, h.Type, "features reply body is not twenty four bytes")
	}
	m.Header = *h
	m.DPID = binary.BigEndian.Uint64(body[0:8])
	m.Buffers = binary.BigEndian.Uint32(body[8:12])
	m.Tables = body[12]
	m.AuxiliaryID = body[13]
	m.Capabilities = binary.BigEndian.Uint32(body[16:20])
	m.Reserved = binary.BigEndian.Uint32(body[20:24])
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

// PacketIn delivers a packet that missed the flow tables, identical in
// layout to 1.3.
type PacketIn struct {
	openflow.Header
	BufferID uint32
	TotalLen uint16
	Reason   uint8
	TableID  uint8
	Cookie   uint64
	Match    openflow.Match
	Data     []byte
}

func (m *PacketIn) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypePacketIn
	body := make([]byte, 16, 16+m.Match.PaddedLen()+2+len(m.Data))
	binary.BigEndian.PutUint32(body[0:4], m.BufferID)
	binary.BigEndian.PutUint16(body[4:6], m.TotalLen)
	body[6] = m.Reason
	body[7] = m.TableID
	binary.BigEndian.PutUint64(body[8:16], m.Cookie)
	body = m.Match.Append(body)
	body = append(body, 0, 0)
	body = append(body, m.Data...)
	return m.Marshal(body)
}

func (m *PacketIn) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 16 {
		return openflow.NewTruncated(h.Version, h.Type, "packet in shorter than its fixed fields")
	}
	m.Header = *h
	m.BufferID = binary.BigEndian.Uint32(body[0:4])
	m.TotalLen = binary.BigEndian.Uint16(body[4:6])
	m.Reason = body[6]
	m.TableID = body[7]
	m.Cookie = binary.BigEndian.Uint64(body[8:16])
	n, err := m.Match.Unmarshal(body[16:])
	if err != nil {
		return err
	}
	rest := body[16+n:]
	if len(rest) < 2 {
		return openflow.NewTruncated(h.Version, h.Type, "packet in missing padding after match")
	}
	m.Data = append([]byte(nil), rest[2:]...)
	return nil
}

// FlowRemoved announces the expiry or deletion of a flow entry,
// identical in layout to 1.3.
type FlowRemoved struct {
	openflow.Header
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	TableID      uint8
	DurationSec  uint32
	DurationNSec uint32
	IdleTimeout  uint16
	HardTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
	Match        openflow.Match
}

func (m *FlowRemoved) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypeFlowRemoved
	body := make([]byte, 40, 40+m.Match.PaddedLen())
	binary.BigEndian.PutUint64(body[0:8], m.Cookie)
	binary.BigEndian.PutUint16(body[8:10], m.Priority)
	body[10] = m.Reason
	body[11] = m.TableID
	binary.BigEndian.PutUint32(body[12:16], m.DurationSec)
	binary.BigEndian.PutUint32(body[16:20], m.DurationNSec)
	binary.BigEndian.PutUint16(body[20:22], m.IdleTimeout)
	binary.BigEndian.PutUint16(body[22:24], m.HardTimeout)
	binary.BigEndian.PutUint64(body[24:32], m.PacketCount)
	binary.BigEndian.PutUint64(body[32:40], m.ByteCount)
	body = m.Match.Append(body)
	return m.Marshal(body)
}

func (m *FlowRemoved) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 40 {
		return openflow.NewTruncated(h.Version, h.Type, "flow removed shorter than its fixed fields")
	}
	m.Header = *h
	m.Cookie = binary.BigEndian.Uint64(body[0:8])
	m.Priority = binary.BigEndian.Uint16(body[8:10])
	m.Reason = body[10]
	m.TableID = body[11]
	m.DurationSec = binary.BigEndian.Uint32(body[12:16])
	m.DurationNSec = binary.BigEndian.Uint32(body[16:20])
	m.IdleTimeout = binary.BigEndian.Uint16(body[20:22])
	m.HardTimeout = binary.BigEndian.Uint16(body[22:24])
	m.PacketCount = binary.BigEndian.Uint64(body[24:32])
	m.ByteCount = binary.BigEndian.Uint64(body[32:40])
	if _, err := m.Match.Unmarshal(body[40:]); err != nil {
		return err
	}
	return nil
}

// portFixedLen is the fixed prefix of a 1.4 port description, before
// the property list.
const portFixedLen = 40

// Port describes one switch port. 1.4 made the description variable
// length; the property list past the fixed fields is preserved opaquely.
type Port struct {
	PortNo     uint32
	HWAddr     [6]byte
	Name       [16]byte
	Config     uint32
	State      uint32
	Properties []byte
}

func (p *Port) append(b []byte) []byte {
	length := portFixedLen + len(p.Properties)
	var buf [portFixedLen]byte
	binary.BigEndian.PutUint32(buf[0:4], p.PortNo)
	binary.BigEndian.PutUint16(buf[4:6], uint16(length))
	copy(buf[8:14], p.HWAddr[:])
	copy(buf[16:32], p.Name[:])
	binary.BigEndian.PutUint32(buf[32:36], p.Config)
	binary.BigEndian.PutUint32(buf[36:40], p.State)
	b = append(b, buf[:]...)
	return append(b, p.Properties...)
}

func (p *Port) unmarshal(b []byte) error {
	if len(b) < portFixedLen {
		return openflow.NewTruncated(Version, 0, "port description shorter than its fixed fields")
	}
	length := int(binary.BigEndian.Uint16(b[4:6]))
	if length < portFixedLen || length > len(b) {
		return openflow.NewMalformed(Version, 0, "port description length inconsistent")
	}
	p.PortNo = binary.BigEndian.Uint32(b[0:4])
	copy(p.HWAddr[:], b[8:14])
	copy(p.Name[:], b[16:32])
	p.Config = binary.BigEndian.Uint32(b[32:36])
	p.State = binary.BigEndian.Uint32(b[36:40])
	p.Properties = append([]byte(nil), b[portFixedLen:length]...)
	return nil
}

// PortStatus announces a port coming, going, or changing configuration.
type PortStatus struct {
	openflow.Header
	Reason uint8
	Desc   Port
}

func (m *PortStatus) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypePortStatus
	body := make([]byte, 8, 8+portFixedLen+len(m.Desc.Properties))
	body[0] = m.Reason
	body = m.Desc.append(body)
	return m.Marshal(body)
}

func (m *PortStatus) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 8+portFixedLen {
		return openflow.NewTruncated(h.Version, h.Type, "port status shorter than its fixed fields")
	}
	m.Header = *h
	m.Reason = body[0]
	return m.Desc.unmarshal(body[8:])
}

// PacketOut instructs the switch to emit a packet, identical in layout
// to 1.3.
type PacketOut struct {
	openflow.Header
	BufferID uint32
	InPort   uint32
	Actions  []byte
	Data     []byte
}

func (m *PacketOut) MarshalBinary() ([]byte, error) {
	m.Version, m.Type = Version, TypePacketOut
	body := make([]byte, 16, 16+len(m.Actions)+len(m.Data))
	binary.BigEndian.PutUint32(body[0:4], m.BufferID)
	binary.BigEndian.PutUint32(body[4:8], m.InPort)
	binary.BigEndian.PutUint16(body[8:10], uint16(len(m.Actions)))
	body = append(body, m.Actions...)
	body = append(body, m.Data...)
	return m.Marshal(body)
}

func (m *PacketOut) UnmarshalBinary(b []byte) error {
	h, body, err := payload(b)
	if err != nil {
		return err
	}
	if len(body) < 16 {
		return openflow.NewTruncated(h.Version, h.Type, "packet out shorter than its fixed fields")
	}
	alen := int(binary.BigEndian.Uint16(body[8:10]))
	if 16+alen > len(body) {
		return openflow.NewMalformed(h.Version, h.Type, "packet out action list exceeds body")
	}
	m.Header = *h
	m.BufferID = binary.BigEndian.Uint32(body[0:4])
	m.InPort = binary.BigEndian.Uint32(body[4:8])
	m.Actions = append([]byte(nil), body[16:16+alen]...)
	m.Data = append([]byte(nil), body[16+alen:]...)
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
// does not model.
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
