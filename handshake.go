package mqclient

import (
	"fmt"

	"github.com/gonzalop/mqclient/internal/packets"
)

// protocolName and protocolLevel identify this client's MQTT wire
// version during CONNECT.
//
// Open question §9.1: the source emits MQTT 3.1's "MQIsdp"/0x03
// rather than MQTT 3.1.1's "MQTT"/0x04. This implementation keeps
// "MQIsdp"/0x03 deliberately: spec.md §8 scenario S1 is a byte-exact
// test vector built against that wire identity, so "correcting" it
// would break a literal, named conformance test. See DESIGN.md.
const (
	protocolName  = "MQIsdp"
	protocolLevel = uint8(0x03)
)

// connect performs the handshake described in spec.md §4.D: build and
// transmit CONNECT, then read exactly 4 bytes and classify the
// result. On success it records the current time as the client's
// last-activity timestamp (used for keep-alive scheduling).
func (c *Client) connect(clientID string, settings ConnectionSettings, cleanSession bool) error {
	pkt := packets.Connect{
		ProtocolName:  protocolName,
		ProtocolLevel: protocolLevel,
		CleanSession:  cleanSession,
		KeepAlive:     uint16(settings.KeepAlive.Seconds()),
		ClientID:      clientID,
		Username:      settings.Username,
		Password:      settings.Password,
	}
	if settings.LastWill != nil {
		pkt.Will = &packets.ConnectWill{
			Topic:   settings.LastWill.Topic,
			Message: settings.LastWill.Message,
			QoS:     uint8(settings.LastWill.QoS),
			Retain:  settings.LastWill.Retain,
		}
	}

	frame, err := pkt.Encode()
	if err != nil {
		return fmt.Errorf("%w: building CONNECT: %v", ErrConnectionFailed, err)
	}

	if err := c.transport.writeAll(frame); err != nil {
		return fmt.Errorf("%w: sending CONNECT: %v", ErrConnectionFailed, err)
	}

	buf, err := c.transport.read(4, true)
	if err != nil {
		return fmt.Errorf("%w: reading CONNACK: %v", ErrConnectionFailed, err)
	}

	// Success requires byte[0] high nibble == CONNACK (2) and
	// byte[3] == 0x00 (accepted), per spec.md §4.D/§8 invariant 6.
	if len(buf) != 4 || buf[0]>>4 != packets.TypeConnack || buf[3] != 0x00 {
		return fmt.Errorf("%w: CONNACK refused or malformed (% x)", ErrConnectionFailed, buf)
	}

	c.lastActivityAt = c.clock.Now()
	c.logger.Info("connected", "client_id", clientID, "clean_session", cleanSession)
	return nil
}
