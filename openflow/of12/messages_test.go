package of12

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

func TestHelloHasNoElements(t *testing.T) {
	b, err := openflow.Encode(NewHello(5))
	require.NoError(t, err)
	assert.Len(t, b, openflow.HeaderLen)

	out, err := openflow.Decode(Version, b)
	require.NoError(t, err)
	hello, ok := out.(*Hello)
	require.True(t, ok)
	assert.Equal(t, uint32(5), hello.XID)
}

func TestSwitchFeaturesInlinePortList(t *testing.T) {
	in := &SwitchFeatures{
		DPID:         0xa1a2a3a4a5a6a7a8,
		Buffers:      128,
		Tables:       64,
		Capabilities: 0x4f,
		Ports: []Port{
			{PortNo: 1, CurrSpeed: 10000},
		},
	}
	in.XID = 2
	out := roundTrip(t, in).(*SwitchFeatures)
	assert.Equal(t, in, out)
}

func TestPacketInCarriesOXMMatch(t *testing.T) {
	in := &PacketIn{
		BufferID: 7,
		TotalLen: 30,
		Reason:   1,
		TableID:  4,
		Match:    openflow.NewInPortMatch(12),
		Data:     []byte{0xca, 0xfe},
	}
	in.XID = 17
	out := roundTrip(t, in).(*PacketIn)

	port, ok := out.Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(12), port)
	assert.Equal(t, in.Data, out.Data)
}

func TestRoleMessagesRecognized(t *testing.T) {
	assert.Equal(t, openflow.KindRoleRequest, openflow.KindOf(Version, 24))
	assert.Equal(t, openflow.KindRoleReply, openflow.KindOf(Version, 25))
	// 1.2 predates the async configuration messages.
	assert.Equal(t, openflow.KindUnknown, openflow.KindOf(Version, 26))
}
