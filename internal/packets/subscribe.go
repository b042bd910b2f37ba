package packets

import "fmt"

// SubscribeFilter is one (topic filter, requested QoS) tuple within a
// SUBSCRIBE packet.
type SubscribeFilter struct {
	Filter string
	QoS    uint8
}

// Subscribe describes an outgoing SUBSCRIBE packet. The source issues
// exactly one filter per SUBSCRIBE; this codec accepts one or more so
// a future caller may batch them (spec.md §3 invariant 3 note).
type Subscribe struct {
	PacketID uint16
	Filters  []SubscribeFilter
	Dup      bool
}

// Encode builds the full SUBSCRIBE byte sequence. The fixed-header
// flags nibble always carries the MQTT-mandated 0x02 bit (bit 1 set),
// per spec.md §4.B.
func (s Subscribe) Encode() ([]byte, error) {
	var body []byte
	body = append(body, EncodeUint16(s.PacketID)...)
	for _, f := range s.Filters {
		enc, err := EncodeString(f.Filter)
		if err != nil {
			return nil, fmt.Errorf("packets: encoding subscribe filter: %w", err)
		}
		body = append(body, enc...)
		body = append(body, f.QoS&0x03)
	}

	flags := uint8(0x02)
	if s.Dup {
		flags |= PublishFlagDup
	}

	header, err := FixedHeader{Type: TypeSubscribe, Flags: flags, RemainingLength: len(body)}.Encode()
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// Suback is the decoded SUBACK acknowledgement: a packet id and one
// granted-QoS byte per filter in the corresponding SUBSCRIBE.
type Suback struct {
	PacketID   uint16
	GrantedQoS []uint8
}

// DecodeSuback parses a SUBACK body of at least 3 bytes (2-byte
// packet id plus at least one granted-QoS byte).
func DecodeSuback(body []byte) (Suback, error) {
	if len(body) < 3 {
		return Suback{}, fmt.Errorf("packets: SUBACK body must be at least 3 bytes, got %d", len(body))
	}
	id, _ := DecodeUint16(body[:2])
	granted := append([]uint8(nil), body[2:]...)
	return Suback{PacketID: id, GrantedQoS: granted}, nil
}

// Unsubscribe describes an outgoing UNSUBSCRIBE packet.
type Unsubscribe struct {
	PacketID uint16
	Filter   string
	Dup      bool
}

// Encode builds the full UNSUBSCRIBE byte sequence. Fixed-header
// flags are always 0x02 per the MUST bit, with the DUP bit (0x08)
// additionally set on retransmit.
func (u Unsubscribe) Encode() ([]byte, error) {
	filter, err := EncodeString(u.Filter)
	if err != nil {
		return nil, fmt.Errorf("packets: encoding unsubscribe filter: %w", err)
	}

	var body []byte
	body = append(body, EncodeUint16(u.PacketID)...)
	body = append(body, filter...)

	flags := uint8(0x02)
	if u.Dup {
		flags |= PublishFlagDup
	}

	header, err := FixedHeader{Type: TypeUnsubscribe, Flags: flags, RemainingLength: len(body)}.Encode()
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// Unsuback is the 2-byte UNSUBACK acknowledgement.
type Unsuback struct {
	PacketID uint16
}

// DecodeUnsuback parses the 2-byte UNSUBACK body.
func DecodeUnsuback(body []byte) (Unsuback, error) {
	if len(body) != 2 {
		return Unsuback{}, fmt.Errorf("packets: UNSUBACK body must be 2 bytes, got %d", len(body))
	}
	id, _ := DecodeUint16(body)
	return Unsuback{PacketID: id}, nil
}
