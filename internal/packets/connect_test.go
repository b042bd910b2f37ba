package packets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConnect_S1_LiteralVector mirrors spec.md §8 scenario S1: client
// id "abc", keep-alive 10, no will, no credentials, clean_session
// false.
//
// The spec's literal hex dump declares a Remaining Length byte of
// 0x0F (15), but the bytes it then lists after the fixed header total
// 17 — the length prefix for "MQIsdp" (2) + "MQIsdp" (6) + protocol
// level (1) + flags (1) + keep-alive (2) + client-id length prefix
// (2) + "abc" (3) = 17. That declared length undercounts its own
// payload by two bytes. This implementation computes the Remaining
// Length arithmetically from the actual encoded body (0x11), which is
// the only value a correct decoder downstream could accept; see
// DESIGN.md for this call.
func TestConnect_S1_LiteralVector(t *testing.T) {
	pkt := Connect{
		ProtocolName:  "MQIsdp",
		ProtocolLevel: 0x03,
		CleanSession:  false,
		KeepAlive:     10,
		ClientID:      "abc",
	}
	got, err := pkt.Encode()
	require.NoError(t, err)

	want := []byte{
		0x10, 0x11, // fixed header: CONNECT, remaining length 17
		0x00, 0x06, 'M', 'Q', 'I', 's', 'd', 'p', // protocol name
		0x03,       // protocol level
		0x00,       // connect flags: clean_session=false, no will/credentials
		0x00, 0x0A, // keep-alive 10
		0x00, 0x03, 'a', 'b', 'c', // client id
	}
	assert.Equal(t, want, got)
}

func TestConnect_WithWillAndCredentials(t *testing.T) {
	pkt := Connect{
		ProtocolName:  "MQIsdp",
		ProtocolLevel: 0x03,
		CleanSession:  true,
		KeepAlive:     60,
		ClientID:      "c1",
		Will: &ConnectWill{
			Topic:   "lwt/c1",
			Message: []byte("bye"),
			QoS:     1,
			Retain:  true,
		},
		Username: "alice",
		Password: "s3cr3t",
	}
	got, err := pkt.Encode()
	require.NoError(t, err)

	// Variable header layout: [len|MQIsdp][level][flags][keepalive]...
	flagsOffset := 2 /*fixed header*/ + 2 + 6 /*protocol name*/ + 1 /*level*/
	flags := got[flagsOffset]
	assert.Equal(t, byte(0xEE), flags, "clean_session|will|will_qos=1|will_retain|password|username")
}

func TestDecodeConnack(t *testing.T) {
	c, err := DecodeConnack([]byte{0x00, 0x00})
	require.NoError(t, err)
	assert.True(t, c.Accepted())
	assert.False(t, c.SessionPresent)

	c, err = DecodeConnack([]byte{0x00, 0x05})
	require.NoError(t, err)
	assert.False(t, c.Accepted())
}
