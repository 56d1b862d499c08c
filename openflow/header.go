package openflow

import "encoding/binary"

// HeaderLen is the size of the common header carried by every OpenFlow
// message regardless of version.
const HeaderLen = 8

// Header is the fixed common header: version, type, total frame length
// and the transaction id correlating requests with replies.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	XID     uint32
}

// Hdr returns the common header. Message body types embed Header as a
// field named Header, so the accessor needs a distinct name for the
// promoted method to satisfy the Message interface.
func (h *Header) Hdr() *Header {
	return h
}

// UnmarshalBinary reads the common header from the front of b.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderLen {
		return truncated(0, 0, "frame shorter than common header")
	}
	h.Version = b[0]
	h.Type = b[1]
	h.Length = binary.BigEndian.Uint16(b[2:4])
	h.XID = binary.BigEndian.Uint32(b[4:8])
	return nil
}

// put writes the common header into b, which must hold HeaderLen bytes.
func (h *Header) put(b []byte) {
	b[0] = h.Version
	b[1] = h.Type
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	binary.BigEndian.PutUint32(b[4:8], h.XID)
}

// Marshal encodes a frame consisting of the header followed by body,
// recomputing the length field. Callers never supply Length themselves.
func (h *Header) Marshal(body []byte) ([]byte, error) {
	total := HeaderLen + len(body)
	if total > 0xffff {
		return nil, &EncodeError{Version: h.Version, Type: h.Type, Detail: "body exceeds maximum frame length"}
	}
	h.Length = uint16(total)
	b := make([]byte, total)
	h.put(b)
	copy(b[HeaderLen:], body)
	return b, nil
}
