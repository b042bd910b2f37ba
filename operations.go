package mqclient

import (
	"fmt"

	"github.com/gonzalop/mqclient/internal/packets"
)

// Publish sends an application message. For qos > 0 it allocates a
// packet identifier and registers a pending-publish record before
// transmitting; the event loop (not this call) awaits the PUBACK
// (spec.md §4.E).
func (c *Client) Publish(topic string, payload []byte, qos QoS, retain bool) error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	if qos == ExactlyOnce {
		return ErrUnsupportedQoS
	}

	pkt := packets.Publish{Topic: topic, Payload: payload, QoS: uint8(qos), Retain: retain}

	if qos > AtMostOnce {
		id, err := c.allocatePacketID()
		if err != nil {
			return err
		}
		pkt.PacketID = id
		c.store.AddPendingPublish(id, topic, payload, qos, retain)
		c.rec.PendingGauge("publish", c.store.PendingPublishCount())
	}

	frame, err := pkt.Encode()
	if err != nil {
		return fmt.Errorf("mqclient: building PUBLISH: %w", err)
	}

	if err := c.transport.writeAll(frame); err != nil {
		if qos > AtMostOnce {
			c.store.RemovePendingPublish(pkt.PacketID)
			c.rec.PendingGauge("publish", c.store.PendingPublishCount())
		}
		return err
	}
	c.rec.PacketSent("PUBLISH")
	return nil
}

// Subscribe registers handler for every inbound PUBLISH matching
// topicFilter and transmits a SUBSCRIBE. The subscription is recorded
// immediately, under the allocated packet identifier, before the
// server's SUBACK arrives (spec.md §4.E) so that any PUBLISH the
// broker sends right away still finds a matching handler.
func (c *Client) Subscribe(topicFilter string, handler MessageHandler, qos QoS) error {
	if err := c.requireOpen(); err != nil {
		return err
	}

	id, err := c.allocatePacketID()
	if err != nil {
		return err
	}

	c.store.AddSubscription(topicFilter, handler, id, qos)

	pkt := packets.Subscribe{
		PacketID: id,
		Filters:  []packets.SubscribeFilter{{Filter: topicFilter, QoS: uint8(qos)}},
	}
	frame, err := pkt.Encode()
	if err != nil {
		return fmt.Errorf("mqclient: building SUBSCRIBE: %w", err)
	}

	if err := c.transport.writeAll(frame); err != nil {
		c.store.RemoveSubscriptionsWithMessageID(id)
		return err
	}
	c.rec.PacketSent("SUBSCRIBE")
	return nil
}

// Unsubscribe registers a pending-unsubscribe record and transmits an
// UNSUBSCRIBE for topicFilter (spec.md §4.E).
func (c *Client) Unsubscribe(topicFilter string) error {
	if err := c.requireOpen(); err != nil {
		return err
	}

	id, err := c.allocatePacketID()
	if err != nil {
		return err
	}

	c.store.AddPendingUnsubscribe(id, topicFilter)
	c.rec.PendingGauge("unsubscribe", c.store.PendingUnsubscribeCount())

	pkt := packets.Unsubscribe{PacketID: id, Filter: topicFilter}
	frame, err := pkt.Encode()
	if err != nil {
		return fmt.Errorf("mqclient: building UNSUBSCRIBE: %w", err)
	}

	if err := c.transport.writeAll(frame); err != nil {
		c.store.RemovePendingUnsubscribe(id)
		c.rec.PendingGauge("unsubscribe", c.store.PendingUnsubscribeCount())
		return err
	}
	c.rec.PacketSent("UNSUBSCRIBE")
	return nil
}

// Ping transmits a PINGREQ.
func (c *Client) Ping() error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	if err := c.transport.writeAll(packets.EncodePingreq()); err != nil {
		return err
	}
	c.rec.PacketSent("PINGREQ")
	return nil
}

// disconnect transmits DISCONNECT and shuts down the writable half of
// the stream (spec.md §4.E). Unexported: the public teardown path is
// Close, which also releases the socket.
func (c *Client) disconnect() error {
	if c.transport == nil {
		return nil
	}
	if err := c.transport.writeAll(packets.EncodeDisconnect()); err != nil {
		return err
	}
	c.rec.PacketSent("DISCONNECT")
	return c.transport.closeWrite()
}
