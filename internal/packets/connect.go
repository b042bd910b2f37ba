package packets

import "fmt"

// Connect flag bits, per MQTT 3.1.1 section 3.1.2.3.
const (
	connectFlagCleanSession = 0x02
	connectFlagWill         = 0x04
	connectFlagWillQoSShift = 3
	connectFlagWillRetain   = 0x20
	connectFlagPassword     = 0x40
	connectFlagUsername     = 0x80
)

// ConnectWill carries the optional last-will topic, message, QoS and
// retain flag advertised in CONNECT.
type ConnectWill struct {
	Topic   string
	Message []byte
	QoS     uint8
	Retain  bool
}

// Connect describes everything needed to build a CONNECT packet.
//
// ProtocolName/ProtocolLevel are fixed to "MQIsdp"/0x03 by the caller
// (see handshake.go) — this mirrors the source's MQTT 3.1 wire
// identity rather than MQTT 3.1.1's "MQTT"/0x04; see DESIGN.md and
// SPEC_FULL.md §4.B for why that choice is kept deliberately.
type Connect struct {
	ProtocolName  string
	ProtocolLevel uint8
	CleanSession  bool
	KeepAlive     uint16
	ClientID      string
	Will          *ConnectWill
	Username      string
	Password      string
}

// Encode builds the full CONNECT byte sequence: fixed header followed
// by the variable header and payload.
func (c Connect) Encode() ([]byte, error) {
	protoName, err := EncodeString(c.ProtocolName)
	if err != nil {
		return nil, err
	}

	var flags uint8
	if c.CleanSession {
		flags |= connectFlagCleanSession
	}
	if c.Will != nil {
		flags |= connectFlagWill
		flags |= (c.Will.QoS & 0x03) << connectFlagWillQoSShift
		if c.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if c.Password != "" {
		flags |= connectFlagPassword
	}
	if c.Username != "" {
		flags |= connectFlagUsername
	}

	clientID, err := EncodeString(c.ClientID)
	if err != nil {
		return nil, fmt.Errorf("packets: encoding client id: %w", err)
	}

	// Variable header + payload, assembled with a plain numeric
	// running length — the source's payload-length accumulator used
	// string concatenation here and silently corrupted the Remaining
	// Length whenever credentials were present (open question §9.2);
	// this implementation sums byte counts directly.
	var body []byte
	body = append(body, protoName...)
	body = append(body, c.ProtocolLevel, flags)
	body = append(body, EncodeUint16(c.KeepAlive)...)
	body = append(body, clientID...)

	if c.Will != nil {
		willTopic, err := EncodeString(c.Will.Topic)
		if err != nil {
			return nil, fmt.Errorf("packets: encoding will topic: %w", err)
		}
		willMsg, err := EncodeBytes(c.Will.Message)
		if err != nil {
			return nil, fmt.Errorf("packets: encoding will message: %w", err)
		}
		body = append(body, willTopic...)
		body = append(body, willMsg...)
	}

	if c.Username != "" {
		user, err := EncodeString(c.Username)
		if err != nil {
			return nil, fmt.Errorf("packets: encoding username: %w", err)
		}
		body = append(body, user...)
	}

	if c.Password != "" {
		pass, err := EncodeString(c.Password)
		if err != nil {
			return nil, fmt.Errorf("packets: encoding password: %w", err)
		}
		body = append(body, pass...)
	}

	header, err := FixedHeader{Type: TypeConnect, RemainingLength: len(body)}.Encode()
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// Connack is the parsed CONNACK acknowledgement.
type Connack struct {
	SessionPresent bool
	ReturnCode     uint8
}

// Accepted reports whether the CONNACK indicates the connection was
// accepted (return code 0x00).
func (c Connack) Accepted() bool {
	return c.ReturnCode == 0x00
}

// DecodeConnack decodes the 2-byte CONNACK variable header that
// follows the fixed header: [flags byte][return code byte]. Per
// spec.md §4.D/§8 the handshake reads exactly 4 bytes total
// (fixed-header byte, remaining-length byte, flags byte, return
// code), so this decodes the last two of those four.
func DecodeConnack(buf []byte) (Connack, error) {
	if len(buf) != 2 {
		return Connack{}, fmt.Errorf("packets: CONNACK variable header must be 2 bytes, got %d", len(buf))
	}
	return Connack{
		SessionPresent: buf[0]&0x01 != 0,
		ReturnCode:     buf[1],
	}, nil
}
