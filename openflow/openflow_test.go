package openflow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciena/ofcore/openflow"
	_ "github.com/ciena/ofcore/openflow/of10"
	_ "github.com/ciena/ofcore/openflow/of12"
	"github.com/ciena/ofcore/openflow/of13"
	_ "github.com/ciena/ofcore/openflow/of14"
)

func kindOf(t *testing.T, err error) openflow.DecodeErrorKind {
	t.Helper()
	var de *openflow.DecodeError
	require.True(t, errors.As(err, &de), "expected a decode error, got %v", err)
	return de.Kind
}

func TestBodyTypesSatisfyMessage(t *testing.T) {
	// Body types embed Header as a field, so the interface accessor
	// must keep a name the embedded field cannot shadow.
	var m openflow.Message = of13.NewHello(7)
	h := m.Hdr()
	require.NotNil(t, h)
	assert.Equal(t, uint32(7), h.XID)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := openflow.Header{Version: openflow.V13, Type: of13.TypeHello, Length: 8, XID: 0xdeadbeef}
	b, err := h.Marshal(nil)
	require.NoError(t, err)
	require.Len(t, b, openflow.HeaderLen)

	var out openflow.Header
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, h, out)
}

func TestHeaderBigEndian(t *testing.T) {
	h := openflow.Header{Version: openflow.V13, Type: of13.TypeEchoRequest, XID: 0x01020304}
	b, err := h.Marshal([]byte{0xaa})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x02, 0x00, 0x09, 0x01, 0x02, 0x03, 0x04, 0xaa}, b)
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := openflow.Decode(openflow.AnyVersion, []byte{0x04, 0x00, 0x00})
	assert.Equal(t, openflow.Truncated, kindOf(t, err))
}

func TestDecodeDeclaredLengthTooShort(t *testing.T) {
	_, err := openflow.Decode(openflow.AnyVersion, []byte{0x04, 0x00, 0x00, 0x04, 0, 0, 0, 1})
	assert.Equal(t, openflow.Malformed, kindOf(t, err))
}

func TestDecodeDeclaredLengthExceedsBytes(t *testing.T) {
	_, err := openflow.Decode(openflow.AnyVersion, []byte{0x04, 0x00, 0x00, 0x10, 0, 0, 0, 1})
	assert.Equal(t, openflow.Truncated, kindOf(t, err))
}

func TestDecodeTrailingBytes(t *testing.T) {
	frame := []byte{0x04, 0x00, 0x00, 0x08, 0, 0, 0, 1, 0xff}
	_, err := openflow.Decode(openflow.AnyVersion, frame)
	assert.Equal(t, openflow.Malformed, kindOf(t, err))
}

func TestDecodeVersionMismatch(t *testing.T) {
	b, err := openflow.Encode(of13.NewEchoRequest(7))
	require.NoError(t, err)
	_, err = openflow.Decode(openflow.V10, b)
	assert.Equal(t, openflow.Malformed, kindOf(t, err))
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	// 0x02 is OpenFlow 1.1, which has no registered parser.
	_, err := openflow.Decode(openflow.AnyVersion, []byte{0x02, 0x00, 0x00, 0x08, 0, 0, 0, 1})
	assert.Equal(t, openflow.Malformed, kindOf(t, err))
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := openflow.Decode(openflow.V13, []byte{0x04, 0xc8, 0x00, 0x08, 0, 0, 0, 1})
	assert.Equal(t, openflow.UnknownType, kindOf(t, err))
}

func TestVersionBitmap(t *testing.T) {
	expected := uint32(1<<openflow.V10 | 1<<openflow.V12 | 1<<openflow.V13 | 1<<openflow.V14)
	assert.Equal(t, expected, openflow.VersionBitmap())
}

func TestNegotiateBitmapHighestCommon(t *testing.T) {
	peer := uint32(1<<openflow.V10 | 1<<openflow.V13)
	v, err := openflow.Negotiate(openflow.V13, peer, true)
	require.NoError(t, err)
	assert.Equal(t, openflow.V13, v)
}

func TestNegotiateBitmapCappedAtPeerHeader(t *testing.T) {
	// The bitmap shares 1.3 and 1.4 but the peer's header only
	// advertised 1.3; the result may not exceed the header maximum.
	peer := uint32(1<<openflow.V13 | 1<<openflow.V14)
	v, err := openflow.Negotiate(openflow.V13, peer, true)
	require.NoError(t, err)
	assert.Equal(t, openflow.V13, v)

	// A peer from the future is capped at our own highest version.
	v, err = openflow.Negotiate(0x06, peer|1<<6, true)
	require.NoError(t, err)
	assert.Equal(t, openflow.V14, v)
}

func TestNegotiateBitmapDisjoint(t *testing.T) {
	// Peer only speaks 1.1.
	_, err := openflow.Negotiate(0x02, 1<<2, true)
	var ne *openflow.NegotiationError
	assert.True(t, errors.As(err, &ne))
}

func TestNegotiateWithoutBitmap(t *testing.T) {
	v, err := openflow.Negotiate(openflow.V13, 0, false)
	require.NoError(t, err)
	assert.Equal(t, openflow.V13, v)

	// A peer from the future gets our highest version.
	v, err = openflow.Negotiate(0x07, 0, false)
	require.NoError(t, err)
	assert.Equal(t, openflow.V14, v)

	// A 1.1 only peer cannot be accommodated.
	_, err = openflow.Negotiate(0x02, 0, false)
	assert.Error(t, err)
}

func TestKindShiftsAcrossVersions(t *testing.T) {
	assert.Equal(t, openflow.KindBarrierRequest, openflow.KindOf(openflow.V10, 18))
	assert.Equal(t, openflow.KindStatsRequest, openflow.KindOf(openflow.V13, 18))
	assert.Equal(t, openflow.KindBarrierRequest, openflow.KindOf(openflow.V13, 20))
	assert.Equal(t, openflow.KindQueueGetConfigRequest, openflow.KindOf(openflow.V10, 20))
	assert.Equal(t, openflow.KindBundleAdd, openflow.KindOf(openflow.V14, 34))
	assert.Equal(t, openflow.KindUnknown, openflow.KindOf(openflow.V13, 34))
	assert.Equal(t, openflow.KindUnknown, openflow.KindOf(0x02, 0))
}

func TestMatchInPortRoundTrip(t *testing.T) {
	m := openflow.NewInPortMatch(7)
	b := m.Append(nil)
	require.Equal(t, 0, len(b)%8, "match must be padded to eight bytes")

	var out openflow.Match
	n, err := out.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)

	port, ok := out.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(7), port)
}

func TestMatchGetMissing(t *testing.T) {
	m := openflow.NewInPortMatch(1)
	_, ok := m.Get(openflow.OXMClassBasic, 99)
	assert.False(t, ok)
}
