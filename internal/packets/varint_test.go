package packets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRemainingLength_LiteralVectors(t *testing.T) {
	cases := []struct {
		value int
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
	}
	for _, c := range cases {
		got, err := EncodeRemainingLength(c.value)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "encoding %d", c.value)
	}
}

func TestRemainingLength_Bijection(t *testing.T) {
	values := []int{0, 1, 2, 126, 127, 128, 129, 16383, 16384, 16385,
		2097151, 2097152, 2097153, MaxRemainingLength}
	for _, v := range values {
		enc, err := EncodeRemainingLength(v)
		require.NoError(t, err)

		r := bytes.NewReader(enc)
		decoded, n, err := DecodeRemainingLength(func() (byte, error) {
			b, err := r.ReadByte()
			return b, err
		})
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
		assert.Equal(t, len(enc), n)
	}
}

func TestEncodeRemainingLength_OutOfRange(t *testing.T) {
	_, err := EncodeRemainingLength(-1)
	assert.Error(t, err)

	_, err = EncodeRemainingLength(MaxRemainingLength + 1)
	assert.Error(t, err)
}

func TestDecodeRemainingLength_TooLong(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}
	r := bytes.NewReader(buf)
	_, _, err := DecodeRemainingLength(func() (byte, error) { return r.ReadByte() })
	assert.Error(t, err)
}
