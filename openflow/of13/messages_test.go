package of13

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciena/ofcore/openflow"
)

func roundTrip(t *testing.T, m openflow.Message) openflow.Message {
	t.Helper()
	b, err := openflow.Encode(m)
	require.NoError(t, err)
	out, err := openflow.Decode(Version, b)
	require.NoError(t, err)
	return out
}

func TestHelloRoundTrip(t *testing.T) {
	in := NewHello(99)
	out := roundTrip(t, in)

	hello, ok := out.(*Hello)
	require.True(t, ok)
	assert.Equal(t, uint32(99), hello.XID)

	bitmap, has := hello.VersionBitmap()
	require.True(t, has)
	assert.Equal(t, openflow.VersionBitmap(), bitmap)
}

func TestHelloUnknownElementPreserved(t *testing.T) {
	in := &Hello{
		Elems: []HelloElem{
			{Type: HelloElemVersionBitmap, Bitmaps: []uint32{0x3a}},
			{Type: 0x7fff, Data: []byte{1, 2, 3}},
		},
	}
	out := roundTrip(t, in).(*Hello)
	require.Len(t, out.Elems, 2)
	assert.Equal(t, []byte{1, 2, 3}, out.Elems[1].Data)
}

func TestHelloElementBadLength(t *testing.T) {
	// Element declares a length of two, shorter than its own header.
	frame := []byte{
		0x04, TypeHello, 0x00, 0x10, 0, 0, 0, 1,
		0x00, 0x01, 0x00, 0x02, 0, 0, 0, 0,
	}
	_, err := openflow.Decode(Version, frame)
	var de *openflow.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, openflow.Malformed, de.Kind)
}

func TestErrorRoundTrip(t *testing.T) {
	in := &Error{ErrType: 1, Code: 5, Data: []byte{0x04, 0x0e}}
	in.XID = 77
	out := roundTrip(t, in).(*Error)
	assert.Equal(t, in, out)
}

func TestEchoMirrorsRequest(t *testing.T) {
	req := NewEchoRequest(11)
	req.Data = []byte("ping")
	reply := NewEchoReply(req)
	assert.Equal(t, req.XID, reply.XID)
	assert.Equal(t, req.Data, reply.Data)

	out := roundTrip(t, reply).(*EchoReply)
	assert.Equal(t, []byte("ping"), out.Data)
}

func TestSwitchFeaturesRoundTrip(t *testing.T) {
	in := &SwitchFeatures{
		DPID:         0x00000000deadbeef,
		Buffers:      256,
		Tables:       254,
		AuxiliaryID:  1,
		Capabilities: 0x4f,
	}
	in.XID = 3
	out := roundTrip(t, in).(*SwitchFeatures)
	assert.Equal(t, in, out)
}

func TestPacketInRoundTrip(t *testing.T) {
	in := &PacketIn{
		BufferID: 0xffffffff,
		TotalLen: 60,
		Reason:   1,
		TableID:  0,
		Cookie:   0xfeed,
		Match:    openflow.NewInPortMatch(3),
		Data:     []byte{0xff, 0xee, 0xdd},
	}
	in.XID = 8
	out := roundTrip(t, in).(*PacketIn)
	assert.Equal(t, in.Data, out.Data)

	port, ok := out.Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(3), port)
}

func TestPacketInTruncated(t *testing.T) {
	frame := []byte{0x04, TypePacketIn, 0x00, 0x0c, 0, 0, 0, 1, 0, 0, 0, 0}
	_, err := openflow.Decode(Version, frame)
	var de *openflow.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, openflow.Truncated, de.Kind)
}

func TestFlowRemovedRoundTrip(t *testing.T) {
	in := &FlowRemoved{
		Cookie:      0xc0ffee,
		Priority:    100,
		Reason:      2,
		TableID:     1,
		DurationSec: 30,
		IdleTimeout: 10,
		PacketCount: 42,
		ByteCount:   4200,
		Match:       openflow.NewInPortMatch(9),
	}
	in.XID = 12
	out := roundTrip(t, in).(*FlowRemoved)
	assert.Equal(t, in.Cookie, out.Cookie)
	assert.Equal(t, in.ByteCount, out.ByteCount)
	port, ok := out.Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(9), port)
}

func TestPortStatusRoundTrip(t *testing.T) {
	in := &PortStatus{
		Reason: 2,
		Desc: Port{
			PortNo: 4,
			HWAddr: [6]byte{0, 1, 2, 3, 4, 5},
			Config: 1,
			State:  4,
		},
	}
	copy(in.Desc.Name[:], "eth4")
	in.XID = 21
	out := roundTrip(t, in).(*PortStatus)
	assert.Equal(t, in, out)
}

func TestPacketOutRoundTrip(t *testing.T) {
	in := &PacketOut{
		BufferID: 0xffffffff,
		InPort:   0xfffffffd,
		Actions:  []byte{0, 0, 0, 16, 0, 0, 0, 1, 0xff, 0xff, 0, 0, 0, 0, 0, 0},
		Data:     []byte{0xde, 0xad},
	}
	in.XID = 5
	out := roundTrip(t, in).(*PacketOut)
	assert.Equal(t, in, out)
}

func TestPacketOutActionsExceedBody(t *testing.T) {
	in := &PacketOut{BufferID: 1, InPort: 2}
	b, err := openflow.Encode(in)
	require.NoError(t, err)
	// Claim an action list longer than the remaining body. The length
	// field sits at body offset eight, frame offset sixteen.
	b[16] = 0xff
	b[17] = 0xff
	_, err = openflow.Decode(Version, b)
	var de *openflow.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, openflow.Malformed, de.Kind)
}

func TestUnmodeledTypeDecodesAsRaw(t *testing.T) {
	raw := &Raw{Data: []byte{0, 0, 0, 0}}
	raw.Type = TypeFlowMod
	out := roundTrip(t, raw)
	flowMod, ok := out.(*Raw)
	require.True(t, ok)
	assert.Equal(t, TypeFlowMod, flowMod.Type)
	assert.Equal(t, openflow.KindFlowMod, openflow.KindOfMessage(out))
}

func TestBarrierRoundTrip(t *testing.T) {
	out := roundTrip(t, NewBarrierRequest(31))
	req, ok := out.(*BarrierRequest)
	require.True(t, ok)
	assert.Equal(t, uint32(31), req.XID)
	assert.Equal(t, openflow.KindBarrierRequest, openflow.KindOfMessage(out))
}
