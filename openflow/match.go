package openflow

import "encoding/binary"

// The OXM flow match carried by packet-in, flow-removed and flow-mod
// messages in every version from 1.2 on. The layout is identical across
// 1.2, 1.3 and 1.4 so the version packages share this implementation.

// MatchTypeOXM is the only match type defined since 1.2.
const MatchTypeOXM uint16 = 1

// OXMClassBasic is the class of the openflow basic match fields.
const OXMClassBasic uint16 = 0x8000

// Basic class match field codes used by the core and the bundled
// application components.
const (
	OXMFieldInPort  uint8 = 0
	OXMFieldEthDst  uint8 = 3
	OXMFieldEthSrc  uint8 = 4
	OXMFieldEthType uint8 = 5
)

// OXM is one type-length-value match field.
type OXM struct {
	Class   uint16
	Field   uint8
	HasMask bool
	Value   []byte
}

// Match is the OXM based flow match. On the wire it is followed by zero
// padding up to an eight byte boundary; the padding is not represented
// here and is written as zero on encode.
type Match struct {
	Type   uint16
	Fields []OXM
}

// wireLen returns the match length as carried in its length field, which
// excludes the trailing padding.
func (m *Match) wireLen() int {
	n := 4
	for _, f := range m.Fields {
		n += 4 + len(f.Value)
	}
	return n
}

// PaddedLen returns the full encoded size including trailing padding.
func (m *Match) PaddedLen() int {
	return (m.wireLen() + 7) / 8 * 8
}

// Unmarshal decodes a match from the front of b and returns the number
// of bytes consumed, including the trailing padding.
func (m *Match) Unmarshal(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, truncated(0, 0, "match shorter than its fixed header")
	}
	m.Type = binary.BigEndian.Uint16(b[0:2])
	length := int(binary.BigEndian.Uint16(b[2:4]))
	if length < 4 {
		return 0, malformed(0, 0, "match length shorter than its fixed header")
	}
	padded := (length + 7) / 8 * 8
	if padded > len(b) {
		return 0, truncated(0, 0, "match length exceeds available bytes")
	}

	m.Fields = nil
	rest := b[4:length]
	for len(rest) > 0 {
		if len(rest) < 4 {
			return 0, malformed(0, 0, "oxm header straddles match boundary")
		}
		var f OXM
		f.Class = binary.BigEndian.Uint16(rest[0:2])
		f.Field = rest[2] >> 1
		f.HasMask = rest[2]&1 != 0
		vlen := int(rest[3])
		if 4+vlen > len(rest) {
			return 0, malformed(0, 0, "oxm value exceeds match boundary")
		}
		f.Value = append([]byte(nil), rest[4:4+vlen]...)
		m.Fields = append(m.Fields, f)
		rest = rest[4+vlen:]
	}
	return padded, nil
}

// Append encodes the match, including trailing zero padding, onto b.
func (m *Match) Append(b []byte) []byte {
	length := m.wireLen()
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], m.Type)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(length))
	b = append(b, hdr[:]...)
	for _, f := range m.Fields {
		var fh [4]byte
		binary.BigEndian.PutUint16(fh[0:2], f.Class)
		fh[2] = f.Field << 1
		if f.HasMask {
			fh[2] |= 1
		}
		fh[3] = uint8(len(f.Value))
		b = append(b, fh[:]...)
		b = append(b, f.Value...)
	}
	for i := length; i < (length+7)/8*8; i++ {
		b = append(b, 0)
	}
	return b
}

// Get returns the value of the first field with the given class and
// field code.
func (m *Match) Get(class uint16, field uint8) ([]byte, bool) {
	for _, f := range m.Fields {
		if f.Class == class && f.Field == field {
			return f.Value, true
		}
	}
	return nil, false
}

// InPort returns the ingress port match field when present.
func (m *Match) InPort() (uint32, bool) {
	v, ok := m.Get(OXMClassBasic, OXMFieldInPort)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// NewInPortMatch builds a match carrying only the ingress port, the form
// every packet-in from a well behaved switch carries.
func NewInPortMatch(port uint32) Match {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, port)
	return Match{
		Type:   MatchTypeOXM,
		Fields: []OXM{{Class: OXMClassBasic, Field: OXMFieldInPort, Value: v}},
	}
}
