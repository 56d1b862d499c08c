package connection

import (
	"encoding/binary"

	"github.com/ciena/ofcore/openflow"
	"github.com/ciena/ofcore/openflow/of10"
	"github.com/ciena/ofcore/openflow/of12"
	"github.com/ciena/ofcore/openflow/of13"
	"github.com/ciena/ofcore/openflow/of14"
)

// newHello builds the greeting. The hello always advertises the highest
// supported version in its header; the bitmap element narrows it for
// peers that understand 1.3.1 negotiation.
func newHello(xid uint32) openflow.Message {
	return of14.NewHello(xid)
}

// helloType is the hello type code, 0 in every protocol version.
const helloType uint8 = 0

// parseHello extracts the negotiation inputs straight off the wire.
// Hello carries the same type code in every version and the 1.3.1
// element layout is forward compatible, so negotiation does not go
// through the per version parsers. A peer speaking a version with no
// registered parser can still negotiate down to one this controller
// implements. Pre 1.3.1 hellos may carry an arbitrary body, which is
// ignored per the protocol.
func parseHello(frame []byte) (peerVersion uint8, bitmap uint32, hasBitmap bool, err error) {
	var h openflow.Header
	if err := h.UnmarshalBinary(frame); err != nil {
		return 0, 0, false, err
	}
	if h.Type != helloType {
		return 0, 0, false, openflow.NewMalformed(h.Version, h.Type, "expected hello during version negotiation")
	}
	if h.Version < openflow.V13 {
		return h.Version, 0, false, nil
	}
	body := frame[openflow.HeaderLen:]
	for len(body) > 0 {
		if len(body) < 4 {
			return 0, 0, false, openflow.NewMalformed(h.Version, h.Type, "hello element header straddles frame boundary")
		}
		typ := binary.BigEndian.Uint16(body[0:2])
		length := int(binary.BigEndian.Uint16(body[2:4]))
		if length < 4 {
			return 0, 0, false, openflow.NewMalformed(h.Version, h.Type, "hello element length shorter than its header")
		}
		padded := (length + 7) / 8 * 8
		if padded > len(body) {
			return 0, 0, false, openflow.NewTruncated(h.Version, h.Type, "hello element exceeds frame boundary")
		}
		if typ == of13.HelloElemVersionBitmap && length >= 8 {
			bitmap = binary.BigEndian.Uint32(body[4:8])
			hasBitmap = true
		}
		body = body[padded:]
	}
	return h.Version, bitmap, hasBitmap, nil
}

// featuresDPID pulls the datapath id out of a features reply.
func featuresDPID(m openflow.Message) (uint64, bool) {
	switch f := m.(type) {
	case *of10.SwitchFeatures:
		return f.DPID, true
	case *of12.SwitchFeatures:
		return f.DPID, true
	case *of13.SwitchFeatures:
		return f.DPID, true
	case *of14.SwitchFeatures:
		return f.DPID, true
	}
	return 0, false
}

func newFeaturesRequest(version uint8, xid uint32) openflow.Message {
	switch version {
	case openflow.V10:
		return of10.NewFeaturesRequest(xid)
	case openflow.V12:
		return of12.NewFeaturesRequest(xid)
	case openflow.V14:
		return of14.NewFeaturesRequest(xid)
	default:
		return of13.NewFeaturesRequest(xid)
	}
}

func newEchoRequest(version uint8, xid uint32) openflow.Message {
	switch version {
	case openflow.V10:
		return of10.NewEchoRequest(xid)
	case openflow.V12:
		return of12.NewEchoRequest(xid)
	case openflow.V14:
		return of14.NewEchoRequest(xid)
	default:
		return of13.NewEchoRequest(xid)
	}
}

func newBarrierRequest(version uint8, xid uint32) openflow.Message {
	switch version {
	case openflow.V10:
		return of10.NewBarrierRequest(xid)
	case openflow.V12:
		return of12.NewBarrierRequest(xid)
	case openflow.V14:
		return of14.NewBarrierRequest(xid)
	default:
		return of13.NewBarrierRequest(xid)
	}
}

// echoReply mirrors an echo request's payload and xid back to the
// switch. Non echo messages fall through to a bare 1.3 reply, which
// cannot happen on the paths that call this.
func echoReply(m openflow.Message) openflow.Message {
	switch req := m.(type) {
	case *of10.EchoRequest:
		return of10.NewEchoReply(req)
	case *of12.EchoRequest:
		return of12.NewEchoReply(req)
	case *of13.EchoRequest:
		return of13.NewEchoReply(req)
	case *of14.EchoRequest:
		return of14.NewEchoReply(req)
	}
	return of13.NewEchoReply(&of13.EchoRequest{})
}

// replyKinds is the set of message kinds that can complete a pending
// transaction. Error is included because switches answer a bad request
// with an error carrying the request's xid; delivering it to the caller
// beats publishing an orphaned event.
var replyKinds = map[openflow.Kind]bool{
	openflow.KindEchoReply:           true,
	openflow.KindFeaturesReply:       true,
	openflow.KindGetConfigReply:      true,
	openflow.KindBarrierReply:        true,
	openflow.KindStatsReply:          true,
	openflow.KindQueueGetConfigReply: true,
	openflow.KindRoleReply:           true,
	openflow.KindGetAsyncReply:       true,
	openflow.KindError:               true,
}

func isReply(k openflow.Kind) bool {
	return replyKinds[k]
}
