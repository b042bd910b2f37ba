package mqclient

import (
	"context"
	"fmt"
	"time"

	"github.com/gonzalop/mqclient/internal/packets"
)

// StepResult reports what a single Step call did, so a driver (or a
// test) can tell "real work happened" apart from "nothing was ready".
type StepResult int

const (
	// StepIdle means no inbound byte was available this iteration.
	StepIdle StepResult = iota
	// StepDidWork means an inbound packet was read and dispatched. A
	// keep-alive PINGREQ or a retransmit sent in an iteration with no
	// inbound packet still reports StepIdle.
	StepDidWork
	// StepTerminated means the loop should not be called again (the
	// driver should have already seen an error; this is returned only
	// defensively).
	StepTerminated
)

// idleSleep is how long Step sleeps when allowSleep is true and no
// byte was available, matching spec.md §4.F step 1's 100ms figure.
const idleSleep = 100 * time.Millisecond

// Step runs exactly one iteration of the event loop (spec.md §4.F),
// decomposed out of an infinite loop per the redesign note in §9 so
// it is callable without real sockets or sleeps in tests. It:
//
//  1. attempts a best-effort 1-byte read, sleeping idleSleep and
//     returning StepIdle if allowSleep and nothing arrived;
//  2. if a byte arrived, decodes the fixed header and dispatches the
//     packet;
//  3. updates the last-activity timestamp;
//  4. sends a PINGREQ if the keep-alive window elapsed with no other
//     traffic;
//  5. runs the once-per-second retransmit and re-unsubscribe sweeps.
func (c *Client) Step(ctx context.Context, allowSleep bool) (StepResult, error) {
	if err := c.requireOpen(); err != nil {
		return StepTerminated, err
	}

	did := false

	first, err := c.transport.read(1, false)
	if err != nil {
		return StepTerminated, err
	}

	if len(first) == 1 {
		if err := c.readAndDispatch(first[0]); err != nil {
			return StepTerminated, err
		}
		c.lastActivityAt = c.clock.Now()
		did = true
	} else if allowSleep {
		select {
		case <-ctx.Done():
			return StepTerminated, ctx.Err()
		case <-time.After(idleSleep):
		}
	}

	if err := c.checkKeepAlive(); err != nil {
		return StepTerminated, err
	}
	if err := c.sweepIfDue(); err != nil {
		return StepTerminated, err
	}

	if did {
		return StepDidWork, nil
	}
	return StepIdle, nil
}

// Run drives Step in a loop until it returns an error or ctx is
// cancelled (spec.md §4.F/§5: "the loop terminates only by propagated
// error").
func (c *Client) Run(ctx context.Context, allowSleep bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.Step(ctx, allowSleep); err != nil {
			return err
		}
	}
}

// readAndDispatch decodes the fixed header (remaining-length bytes
// fetched one at a time via blocking reads of length 1, per spec.md
// §4.F step 2), blocking-reads the remaining-length body, and
// dispatches on command type.
func (c *Client) readAndDispatch(firstByte byte) error {
	command := firstByte >> 4
	flags := firstByte & 0x0F

	remainingLength, _, err := packets.DecodeRemainingLength(func() (byte, error) {
		b, err := c.transport.read(1, true)
		if err != nil {
			return 0, err
		}
		return b[0], nil
	})
	if err != nil {
		return err
	}

	var body []byte
	if remainingLength > 0 {
		body, err = c.transport.read(remainingLength, true)
		if err != nil {
			return err
		}
	}

	switch command {
	case packets.TypeConnack:
		return &UnexpectedAckError{Context: "connect"}

	case packets.TypePublish:
		return c.handlePublish(flags, body)

	case packets.TypePuback:
		return c.handlePuback(body)

	case packets.TypeSuback:
		return c.handleSuback(body)

	case packets.TypeUnsuback:
		return c.handleUnsuback(body)

	case packets.TypePingreq:
		c.rec.PacketReceived("PINGREQ")
		if err := c.transport.writeAll(packets.EncodePingresp()); err != nil {
			return err
		}
		c.rec.PacketSent("PINGRESP")
		return nil

	case packets.TypePingresp:
		c.rec.PacketReceived("PINGRESP")
		c.lastActivityAt = c.clock.Now()
		return nil

	default:
		c.logger.Notice("ignoring unsupported packet type", "type", command)
		return nil
	}
}

// handlePublish parses an inbound PUBLISH, dispatches it synchronously
// to every matching subscription handler, and — resolving spec.md §9
// open question 5 — acknowledges QoS 1 deliveries with a PUBACK. QoS 2
// is out of scope (non-goal); such publishes are logged and dropped
// rather than handed to PUBREC/PUBREL machinery this client does not
// implement.
func (c *Client) handlePublish(flags uint8, body []byte) error {
	in, err := packets.DecodePublish(flags, body)
	if err != nil {
		return err
	}
	c.rec.PacketReceived("PUBLISH")

	if in.QoS == uint8(ExactlyOnce) {
		c.logger.Notice("dropping unsupported QoS 2 publish", "topic", in.Topic)
		return nil
	}

	msg := Message{Topic: in.Topic, Payload: in.Payload, QoS: QoS(in.QoS), Retain: in.Retain, Dup: in.Dup}
	for _, sub := range c.store.SubscriptionsMatching(in.Topic) {
		sub.Handler(msg)
	}

	if in.QoS == uint8(AtLeastOnce) {
		puback := packets.Puback{PacketID: in.PacketID}
		frame, err := puback.Encode()
		if err != nil {
			return err
		}
		if err := c.transport.writeAll(frame); err != nil {
			return err
		}
		c.rec.PacketSent("PUBACK")
	}
	return nil
}

// handlePuback removes the pending publish; absence is a protocol
// error (spec.md §3 invariant 2, §4.F).
func (c *Client) handlePuback(body []byte) error {
	puback, err := packets.DecodePuback(body)
	if err != nil {
		return err
	}
	c.rec.PacketReceived("PUBACK")

	if !c.store.RemovePendingPublish(puback.PacketID) {
		return &UnexpectedAckError{Context: "publish"}
	}
	c.rec.PendingGauge("publish", c.store.PendingPublishCount())
	return nil
}

// handleSuback validates the granted-qos count against the number of
// subscriptions registered under that message id, then records each
// acknowledged QoS (spec.md §3 invariant 3, §4.F).
func (c *Client) handleSuback(body []byte) error {
	suback, err := packets.DecodeSuback(body)
	if err != nil {
		return err
	}
	c.rec.PacketReceived("SUBACK")

	subs := c.store.SubscriptionsWithMessageID(suback.PacketID)
	if len(subs) != len(suback.GrantedQoS) {
		return &UnexpectedAckError{Context: "subscribe"}
	}

	for i, sub := range subs {
		qos := suback.GrantedQoS[i]
		sub.AcknowledgedQoS = &qos
	}
	return nil
}

// handleUnsuback removes the pending unsubscribe; absence reuses the
// "publish" context, matching the source's own tag reuse here (spec.md
// §4.F).
func (c *Client) handleUnsuback(body []byte) error {
	unsuback, err := packets.DecodeUnsuback(body)
	if err != nil {
		return err
	}
	c.rec.PacketReceived("UNSUBACK")

	if !c.store.RemovePendingUnsubscribe(unsuback.PacketID) {
		return &UnexpectedAckError{Context: "publish"}
	}
	c.rec.PendingGauge("unsubscribe", c.store.PendingUnsubscribeCount())
	return nil
}

// checkKeepAlive sends a PINGREQ when lastActivityAt has not moved
// within the keep-alive window. lastActivityAt is refreshed by the
// handshake, by every inbound packet Step dispatches, and by the
// PINGREQ sent here; outgoing Publish/Subscribe/Unsubscribe/Ping calls
// do not refresh it. Any inbound traffic suppresses the ping —
// preserved intentionally per spec.md §9 open question 8.
func (c *Client) checkKeepAlive() error {
	now := c.clock.Now()
	if now.Sub(c.lastActivityAt) <= c.settings.KeepAlive {
		return nil
	}
	if err := c.transport.writeAll(packets.EncodePingreq()); err != nil {
		return err
	}
	c.rec.PacketSent("PINGREQ")
	c.lastActivityAt = now
	return nil
}

// sweepIfDue runs the retransmit and re-unsubscribe sweeps at most
// once per wall-second (spec.md §4.F steps 6-7).
func (c *Client) sweepIfDue() error {
	now := c.clock.Now()
	if now.Sub(c.lastSweepAt) < time.Second {
		return nil
	}
	c.lastSweepAt = now

	threshold := now.Add(-c.settings.ResendTimeout)

	for _, pub := range c.store.PendingPublishesLastSentBefore(threshold) {
		pkt := packets.Publish{
			Topic:    pub.Topic,
			PacketID: pub.MessageID,
			Payload:  pub.Payload,
			QoS:      uint8(pub.QoS),
			Retain:   pub.Retain,
			Dup:      true,
		}
		frame, err := pkt.Encode()
		if err != nil {
			return fmt.Errorf("mqclient: building retransmit PUBLISH: %w", err)
		}
		if err := c.transport.writeAll(frame); err != nil {
			return err
		}
		pub.LastSentAt = now
		pub.SendingAttempts++
		c.rec.Retransmit("PUBLISH")
	}

	for _, uns := range c.store.PendingUnsubscribesLastSentBefore(threshold) {
		pkt := packets.Unsubscribe{PacketID: uns.MessageID, Filter: uns.TopicFilter, Dup: true}
		frame, err := pkt.Encode()
		if err != nil {
			return fmt.Errorf("mqclient: building retransmit UNSUBSCRIBE: %w", err)
		}
		if err := c.transport.writeAll(frame); err != nil {
			return err
		}
		uns.LastSentAt = now
		uns.SendingAttempts++
		c.rec.Retransmit("UNSUBSCRIBE")
	}

	return nil
}
