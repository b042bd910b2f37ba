package packets

import (
	"encoding/binary"
	"fmt"
)

// MaxStringLength is the largest payload a length-prefixed MQTT string
// or binary field can carry (two-byte big-endian length prefix).
const MaxStringLength = 65535

// EncodeString returns s as a two-byte big-endian length prefix
// followed by its raw bytes.
func EncodeString(s string) ([]byte, error) {
	if len(s) > MaxStringLength {
		return nil, fmt.Errorf("packets: string length %d exceeds maximum %d", len(s), MaxStringLength)
	}
	buf := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[2:], s)
	return buf, nil
}

// EncodeBytes is EncodeString for raw binary payloads (used for the
// will message, which is not required to be valid UTF-8).
func EncodeBytes(b []byte) ([]byte, error) {
	if len(b) > MaxStringLength {
		return nil, fmt.Errorf("packets: binary length %d exceeds maximum %d", len(b), MaxStringLength)
	}
	buf := make([]byte, 2+len(b))
	binary.BigEndian.PutUint16(buf, uint16(len(b)))
	copy(buf[2:], b)
	return buf, nil
}

// EncodeUint16 encodes a big-endian 16-bit unsigned integer, used for
// packet identifiers and the keep-alive field.
func EncodeUint16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// DecodeUint16 decodes a big-endian 16-bit unsigned integer from the
// front of buf.
func DecodeUint16(buf []byte) (uint16, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("packets: buffer too short for uint16")
	}
	return binary.BigEndian.Uint16(buf), nil
}

// Cursor is a byte-slice reader with a read_exact-style API, replacing
// the destructive pop-from-growable-buffer pattern the source uses.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential, non-destructive reads.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// ReadExact returns the next n bytes and advances the cursor, or an
// error if fewer than n bytes remain.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("packets: cursor underflow reading %d bytes (have %d)", n, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadUint16 reads a big-endian 16-bit unsigned integer.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadByte reads a single byte, satisfying io.ByteReader.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadString reads a two-byte length prefix followed by that many
// bytes and returns them as a string.
func (c *Cursor) ReadString() (string, error) {
	n, err := c.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := c.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadRest returns every byte not yet consumed.
func (c *Cursor) ReadRest() []byte {
	b := c.buf[c.pos:]
	c.pos = len(c.buf)
	return b
}
