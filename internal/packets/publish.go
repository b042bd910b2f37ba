package packets

import "fmt"

// Publish flag bits within the fixed header's low nibble.
const (
	PublishFlagRetain = 0x01
	PublishFlagQoS1   = 0x02
	PublishFlagQoS2   = 0x04
	PublishFlagDup    = 0x08
)

// Publish describes an outgoing PUBLISH packet.
type Publish struct {
	Topic    string
	PacketID uint16 // only present (and encoded) when QoS > 0
	Payload  []byte
	QoS      uint8
	Retain   bool
	Dup      bool
}

// Encode builds the full PUBLISH byte sequence.
func (p Publish) Encode() ([]byte, error) {
	topic, err := EncodeString(p.Topic)
	if err != nil {
		return nil, fmt.Errorf("packets: encoding publish topic: %w", err)
	}

	var body []byte
	body = append(body, topic...)
	if p.QoS > 0 {
		body = append(body, EncodeUint16(p.PacketID)...)
	}
	body = append(body, p.Payload...)

	var flags uint8
	if p.Retain {
		flags |= PublishFlagRetain
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Dup {
		flags |= PublishFlagDup
	}

	header, err := FixedHeader{Type: TypePublish, Flags: flags, RemainingLength: len(body)}.Encode()
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// InboundPublish is a decoded incoming PUBLISH.
type InboundPublish struct {
	Topic    string
	PacketID uint16 // valid only when QoS > 0
	Payload  []byte
	QoS      uint8
	Retain   bool
	Dup      bool
}

// DecodePublish parses the variable header and payload of a PUBLISH
// packet given its flags byte and the remaining-length body.
func DecodePublish(flags uint8, body []byte) (InboundPublish, error) {
	qos := (flags >> 1) & 0x03
	cur := NewCursor(body)

	topic, err := cur.ReadString()
	if err != nil {
		return InboundPublish{}, fmt.Errorf("packets: decoding publish topic: %w", err)
	}

	var packetID uint16
	if qos > 0 {
		packetID, err = cur.ReadUint16()
		if err != nil {
			return InboundPublish{}, fmt.Errorf("packets: decoding publish packet id: %w", err)
		}
	}

	return InboundPublish{
		Topic:    topic,
		PacketID: packetID,
		Payload:  cur.ReadRest(),
		QoS:      qos,
		Retain:   flags&PublishFlagRetain != 0,
		Dup:      flags&PublishFlagDup != 0,
	}, nil
}

// Puback is the 2-byte PUBACK acknowledgement (packet identifier
// only).
type Puback struct {
	PacketID uint16
}

// Encode builds the full PUBACK byte sequence.
func (p Puback) Encode() ([]byte, error) {
	header, err := FixedHeader{Type: TypePuback, RemainingLength: 2}.Encode()
	if err != nil {
		return nil, err
	}
	return append(header, EncodeUint16(p.PacketID)...), nil
}

// DecodePuback parses the 2-byte PUBACK body.
func DecodePuback(body []byte) (Puback, error) {
	if len(body) != 2 {
		return Puback{}, fmt.Errorf("packets: PUBACK body must be 2 bytes, got %d", len(body))
	}
	id, _ := DecodeUint16(body)
	return Puback{PacketID: id}, nil
}
