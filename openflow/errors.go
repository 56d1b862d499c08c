package openflow

import "fmt"

// DecodeErrorKind classifies a frame decoding failure.
type DecodeErrorKind int

const (
	// Truncated indicates the declared frame length exceeds the bytes
	// available, or the frame is shorter than the common header.
	Truncated DecodeErrorKind = iota

	// Malformed indicates internal length or version fields are
	// inconsistent with the frame content.
	Malformed

	// UnknownType indicates the message type is not recognized for the
	// frame's protocol version.
	UnknownType
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case Malformed:
		return "malformed"
	case UnknownType:
		return "unknown-type"
	}
	return "unknown"
}

// DecodeError reports a failure to decode a wire frame. Every decode
// failure is fatal to the connection it arrived on, never to the process.
type DecodeError struct {
	Kind    DecodeErrorKind
	Version uint8
	Type    uint8
	Detail  string
}

func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("openflow decode (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("openflow decode (%s): version 0x%02x type %d", e.Kind, e.Version, e.Type)
}

// truncated builds a Truncated decode error.
func truncated(version, typ uint8, detail string) *DecodeError {
	return &DecodeError{Kind: Truncated, Version: version, Type: typ, Detail: detail}
}

// malformed builds a Malformed decode error.
func malformed(version, typ uint8, detail string) *DecodeError {
	return &DecodeError{Kind: Malformed, Version: version, Type: typ, Detail: detail}
}

// NewTruncated reports a frame cut short while decoding a message body.
// Exported for the per version body packages.
func NewTruncated(version, typ uint8, detail string) error {
	return truncated(version, typ, detail)
}

// NewMalformed reports inconsistent internal framing while decoding a
// message body. Exported for the per version body packages.
func NewMalformed(version, typ uint8, detail string) error {
	return malformed(version, typ, detail)
}

// NewUnknownType reports a message type code with no layout registered
// for the given version.
func NewUnknownType(version, typ uint8) error {
	return &DecodeError{Kind: UnknownType, Version: version, Type: typ}
}

// EncodeError reports a failure to encode a message for the wire.
type EncodeError struct {
	Version uint8
	Type    uint8
	Detail  string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("openflow encode: version 0x%02x type %d: %s", e.Version, e.Type, e.Detail)
}
