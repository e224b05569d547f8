package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWire_ParseLiterals(t *testing.T) {
	d, err := ParseDatagram([]byte("nd_init"))
	require.NoError(t, err)
	assert.Equal(t, NDInit{}, d)

	d, err = ParseDatagram([]byte("le_init"))
	require.NoError(t, err)
	assert.Equal(t, LEInit{}, d)

	d, err = ParseDatagram([]byte("le_m?:"))
	require.NoError(t, err)
	assert.Equal(t, LEQuery{}, d)
}

func TestWire_ParseAddressed(t *testing.T) {
	d, err := ParseDatagram([]byte("nd_ack:fe80::a"))
	require.NoError(t, err)
	assert.Equal(t, NDAck{Addr: "fe80::a"}, d)

	d, err = ParseDatagram([]byte("nd_hello:fe80::b"))
	require.NoError(t, err)
	assert.Equal(t, NDHello{Addr: "fe80::b"}, d)

	_, err = ParseDatagram([]byte("nd_ack:"))
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestWire_ParseElectionAck(t *testing.T) {
	d, err := ParseDatagram([]byte("le_ack:050:fe80::a;fe80::b"))
	require.NoError(t, err)
	assert.Equal(t, LEAck{Min: 50, Leader: "fe80::a", Sender: "fe80::b"}, d)
}

func TestWire_ElectionAckRoundTrip(t *testing.T) {
	original := "le_ack:007:fe80::1;fe80::2"
	d, err := ParseDatagram([]byte(original))
	require.NoError(t, err)
	assert.Equal(t, original, string(d.Encode()))
}

func TestWire_ElectionAckRejectsNonPositive(t *testing.T) {
	_, err := ParseDatagram([]byte("le_ack:000:fe80::a;fe80::b"))
	assert.ErrorIs(t, err, ErrBadElectionValue)

	_, err = ParseDatagram([]byte("le_ack:-05:fe80::a;fe80::b"))
	assert.ErrorIs(t, err, ErrBadElectionValue)
}

func TestWire_ElectionAckMissingFields(t *testing.T) {
	_, err := ParseDatagram([]byte("le_ack:050"))
	assert.ErrorIs(t, err, ErrBadElectionValue)

	_, err = ParseDatagram([]byte("le_ack:050:fe80::a"))
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestWire_UnknownPrefix(t *testing.T) {
	_, err := ParseDatagram([]byte("hello there"))
	assert.ErrorIs(t, err, ErrUnknownPrefix)
}

func TestWire_OversizedPayload(t *testing.T) {
	payload := "nd_ack:" + strings.Repeat("a", 60)
	_, err := ParseDatagram([]byte(payload))
	assert.ErrorIs(t, err, ErrDatagramTooLong)
}

func TestWire_OversizedAddress(t *testing.T) {
	payload := "nd_ack:" + strings.Repeat("a", 47)
	_, err := ParseDatagram([]byte(payload))
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestWire_EncodePadsValue(t *testing.T) {
	ack := LEAck{Min: 5, Leader: "fe80::a", Sender: "fe80::b"}
	assert.Equal(t, "le_ack:005:fe80::a;fe80::b", string(ack.Encode()))
}
