package of14

import (
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

func TestHelloCarriesBitmap(t *testing.T) {
	out := roundTrip(t, NewHello(1)).(*Hello)
	bitmap, has := out.VersionBitmap()
	require.True(t, has)
	assert.Equal(t, openflow.VersionBitmap(), bitmap)
	assert.Equal(t, Version, out.Version)
}

func TestPortStatusVariableLengthPort(t *testing.T) {
	in := &PortStatus{
		Reason: 0,
		Desc: Port{
			PortNo: 19,
			HWAddr: [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
			Config: 0x04,
			State:  0x01,
			// One 8 byte ethernet property stub.
			Properties: []byte{0, 0, 0, 8, 0, 0, 0, 0},
		},
	}
	copy(in.Desc.Name[:], "wan0")
	in.XID = 6
	out := roundTrip(t, in).(*PortStatus)
	assert.Equal(t, in, out)
}

func TestPacketInRoundTrip(t *testing.T) {
	in := &PacketIn{
		BufferID: 0xffffffff,
		TotalLen: 90,
		Reason:   0,
		TableID:  2,
		Cookie:   0xabad1dea,
		Match:    openflow.NewInPortMatch(1),
		Data:     []byte{1, 2, 3},
	}
	in.XID = 30
	out := roundTrip(t, in).(*PacketIn)
	assert.Equal(t, in.Cookie, out.Cookie)
	port, ok := out.Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(1), port)
}

func TestBundleTypesRecognized(t *testing.T) {
	_, err := openflow.Decode(Version, []byte{0x05, 33, 0x00, 0x08, 0, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, openflow.KindBundleControl, openflow.KindOf(Version, 33))
	assert.Equal(t, openflow.KindRoleStatus, openflow.KindOf(Version, 30))
}
