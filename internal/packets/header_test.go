package packets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedHeader_Encode(t *testing.T) {
	h := FixedHeader{Type: TypePublish, Flags: 0x02, RemainingLength: 300}
	buf, err := h.Encode()
	require.NoError(t, err)

	// Type 3, flags 0x02 -> 0x32; 300 as a variable byte integer is
	// 0xAC 0x02.
	assert.Equal(t, []byte{0x32, 0xAC, 0x02}, buf)
}

func TestFixedHeader_Encode_ZeroLength(t *testing.T) {
	h := FixedHeader{Type: TypePingreq, RemainingLength: 0}
	buf, err := h.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{TypePingreq << 4, 0x00}, buf)
}

func TestFixedHeader_Encode_TooLong(t *testing.T) {
	h := FixedHeader{Type: TypePublish, RemainingLength: MaxRemainingLength + 1}
	_, err := h.Encode()
	assert.Error(t, err)
}
