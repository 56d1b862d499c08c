package openflow

import "fmt"

// Message is one decoded OpenFlow message. The body shape behind the
// interface is fully determined by the header's (version, type) pair.
type Message interface {
	Hdr() *Header
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(b []byte) error
}

// ParseFunc decodes one complete frame into a version specific body.
type ParseFunc func(b []byte) (Message, error)

// parsers maps a protocol version to that version's frame parser. The
// of10/of12/of13/of14 packages register themselves here from init, the
// same way database/sql drivers do.
var parsers = map[uint8]ParseFunc{}

// RegisterVersion installs the frame parser for a protocol version.
// Called from the per version packages' init functions.
func RegisterVersion(version uint8, fn ParseFunc) {
	if _, dup := parsers[version]; dup {
		panic(fmt.Sprintf("openflow: parser for version 0x%02x registered twice", version))
	}
	parsers[version] = fn
}

// Decode decodes one complete wire frame under the given negotiated
// version. Pass AnyVersion before negotiation has completed, in which
// case only the frame's own version byte is consulted. The frame must be
// exactly one message; trailing bytes beyond the declared length are a
// framing bug in the caller and rejected as Malformed.
func Decode(version uint8, b []byte) (Message, error) {
	var h Header
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	if h.Length < HeaderLen {
		return nil, malformed(h.Version, h.Type, "declared length shorter than common header")
	}
	if int(h.Length) > len(b) {
		return nil, truncated(h.Version, h.Type, "declared length exceeds available bytes")
	}
	if int(h.Length) < len(b) {
		return nil, malformed(h.Version, h.Type, "trailing bytes after declared length")
	}
	if version != AnyVersion && h.Version != version {
		return nil, malformed(h.Version, h.Type, fmt.Sprintf("frame version 0x%02x on a version 0x%02x connection", h.Version, version))
	}
	parse, ok := parsers[h.Version]
	if !ok {
		return nil, malformed(h.Version, h.Type, "unsupported protocol version")
	}
	return parse(b)
}

// Encode encodes a message for the wire. Length fields are recomputed
// from the body content and reserved bytes are written as zero.
func Encode(m Message) ([]byte, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// Marshaling stamps the version for typed messages; validate after.
	h := m.Hdr()
	if !Supported(h.Version) {
		return nil, &EncodeError{Version: h.Version, Type: h.Type, Detail: "unsupported protocol version"}
	}
	return b, nil
}
