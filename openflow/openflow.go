// Package openflow implements the version independent pieces of the
// OpenFlow wire protocol: the common message header, the decode dispatch
// across protocol versions, version negotiation, and the canonical message
// kinds used by the event dispatch layer. The per version message bodies
// live in the of10, of12, of13, and of14 sub-packages.
package openflow

import "fmt"

// Protocol version identifiers as they appear in the first byte of every
// OpenFlow message.
const (
	V10 uint8 = 0x01 // OpenFlow 1.0
	V12 uint8 = 0x03 // OpenFlow 1.2
	V13 uint8 = 0x04 // OpenFlow 1.3
	V14 uint8 = 0x05 // OpenFlow 1.4
)

// AnyVersion disables the version check in Decode. Used before version
// negotiation has completed, when the peer's version is not yet known.
const AnyVersion uint8 = 0

// MaxVersion is the highest protocol version this controller speaks.
const MaxVersion = V14

// supported is the version bitmap advertised in the hello element, one
// bit per version identifier.
var supported = map[uint8]bool{
	V10: true,
	V12: true,
	V13: true,
	V14: true,
}

// Supported reports whether the given protocol version is implemented.
func Supported(version uint8) bool {
	return supported[version]
}

// Versions returns the implemented protocol versions in ascending order.
func Versions() []uint8 {
	return []uint8{V10, V12, V13, V14}
}

// VersionBitmap returns the hello element bitmap covering the versions
// this controller speaks. Bit n corresponds to version identifier n.
func VersionBitmap() uint32 {
	var bits uint32
	for v := range supported {
		bits |= 1 << uint32(v)
	}
	return bits
}

// NegotiationError reports that no protocol version is spoken by both
// sides of a connection.
type NegotiationError struct {
	PeerVersion uint8
	PeerBitmap  uint32
}

func (e *NegotiationError) Error() string {
	if e.PeerBitmap != 0 {
		return fmt.Sprintf("no common openflow version: peer advertised 0x%02x with bitmap 0x%08x", e.PeerVersion, e.PeerBitmap)
	}
	return fmt.Sprintf("no common openflow version: peer advertised 0x%02x", e.PeerVersion)
}

// Negotiate computes the protocol version to use for a connection given
// the peer's hello advertisement. When the peer supplied a version bitmap
// hello element the result is the highest version set in both bitmaps,
// capped at the lower of the two header-advertised maximums; otherwise it
// is the lower of the two advertised maximums, which must be a version
// this controller implements.
func Negotiate(peerVersion uint8, peerBitmap uint32, peerHasBitmap bool) (uint8, error) {
	if peerHasBitmap {
		top := peerVersion
		if top > MaxVersion {
			top = MaxVersion
		}
		common := peerBitmap & VersionBitmap()
		for v := top; v > 0; v-- {
			if common&(1<<uint32(v)) != 0 {
				return v, nil
			}
		}
		return 0, &NegotiationError{PeerVersion: peerVersion, PeerBitmap: peerBitmap}
	}

	v := peerVersion
	if v > MaxVersion {
		v = MaxVersion
	}
	if !Supported(v) {
		return 0, &NegotiationError{PeerVersion: peerVersion}
	}
	return v, nil
}
