package mqclient

import "time"

// PendingPublish is a QoS >= 1 publish awaiting PUBACK.
type PendingPublish struct {
	MessageID       uint16
	Topic           string
	Payload         []byte
	QoS             QoS
	Retain          bool
	LastSentAt      time.Time
	SendingAttempts int
}

// PendingUnsubscribe is an UNSUBSCRIBE awaiting UNSUBACK.
type PendingUnsubscribe struct {
	MessageID       uint16
	TopicFilter     string
	LastSentAt      time.Time
	SendingAttempts int
}

// TopicSubscription is a subscription registered by the client. Once
// its SUBSCRIBE has been written it is never destroyed by this core —
// Unsubscribe does not purge it, preserved per spec.md §3/§9. The only
// removal is Subscribe's rollback (RemoveSubscriptionsWithMessageID)
// when the SUBSCRIBE write fails.
type TopicSubscription struct {
	TopicFilter     string
	QoS             QoS
	Handler         MessageHandler
	MessageID       uint16
	AcknowledgedQoS *uint8 // populated from SUBACK
}

// SessionStore is the pluggable collaborator holding all in-flight
// client state (spec.md §4.C). The default implementation is the
// in-memory memStore below; cross-process persistence is an explicit
// non-goal (spec.md §1), so no other implementation ships with this
// package — see DESIGN.md for the bbolt-backed store that was
// considered and rejected for that reason.
type SessionStore interface {
	AddPendingPublish(messageID uint16, topic string, payload []byte, qos QoS, retain bool)
	RemovePendingPublish(messageID uint16) bool
	PendingPublishesLastSentBefore(t time.Time) []*PendingPublish

	AddPendingUnsubscribe(messageID uint16, topicFilter string)
	RemovePendingUnsubscribe(messageID uint16) bool
	PendingUnsubscribesLastSentBefore(t time.Time) []*PendingUnsubscribe

	AddSubscription(topicFilter string, handler MessageHandler, messageID uint16, qos QoS)
	SubscriptionsMatching(topic string) []*TopicSubscription
	SubscriptionsWithMessageID(messageID uint16) []*TopicSubscription
	// RemoveSubscriptionsWithMessageID drops every subscription
	// registered under messageID, reporting whether any were removed.
	// Used to roll back Subscribe's speculative registration when the
	// SUBSCRIBE write never reaches the wire.
	RemoveSubscriptionsWithMessageID(messageID uint16) bool

	// HasPendingMessageID reports whether messageID is currently held
	// by either pending map, used by the packet-identifier allocator
	// to skip ids still in flight (spec.md §3, open question §9.3).
	HasPendingMessageID(messageID uint16) bool

	// PendingPublishCount and PendingUnsubscribeCount report the
	// current size of each pending map, consulted by the Recorder's
	// PendingGauge after every mutation.
	PendingPublishCount() int
	PendingUnsubscribeCount() int
}

// memStore is the default SessionStore: a pair of maps keyed by
// message identifier plus a subscription list, as described in
// spec.md §4.C. All operations are O(n) in the number of pending
// items or subscriptions, which is acceptable given expected
// cardinalities (grounded on the teacher's session_store.go, adapted
// from a persistence-oriented interface to this spec's purely
// in-memory, non-persistent pending-state tracker).
type memStore struct {
	clock Clock

	publishes    map[uint16]*PendingPublish
	unsubscribes map[uint16]*PendingUnsubscribe
	subs         []*TopicSubscription
}

// newMemStore constructs an empty in-memory session store.
func newMemStore(clock Clock) *memStore {
	return &memStore{
		clock:        clock,
		publishes:    make(map[uint16]*PendingPublish),
		unsubscribes: make(map[uint16]*PendingUnsubscribe),
	}
}

func (s *memStore) AddPendingPublish(messageID uint16, topic string, payload []byte, qos QoS, retain bool) {
	s.publishes[messageID] = &PendingPublish{
		MessageID:  messageID,
		Topic:      topic,
		Payload:    payload,
		QoS:        qos,
		Retain:     retain,
		LastSentAt: s.clock.Now(),
	}
}

func (s *memStore) RemovePendingPublish(messageID uint16) bool {
	if _, ok := s.publishes[messageID]; !ok {
		return false
	}
	delete(s.publishes, messageID)
	return true
}

func (s *memStore) PendingPublishesLastSentBefore(t time.Time) []*PendingPublish {
	var out []*PendingPublish
	for _, p := range s.publishes {
		if p.LastSentAt.Before(t) {
			out = append(out, p)
		}
	}
	return out
}

func (s *memStore) AddPendingUnsubscribe(messageID uint16, topicFilter string) {
	s.unsubscribes[messageID] = &PendingUnsubscribe{
		MessageID:   messageID,
		TopicFilter: topicFilter,
		LastSentAt:  s.clock.Now(),
	}
}

func (s *memStore) RemovePendingUnsubscribe(messageID uint16) bool {
	if _, ok := s.unsubscribes[messageID]; !ok {
		return false
	}
	delete(s.unsubscribes, messageID)
	return true
}

func (s *memStore) PendingUnsubscribesLastSentBefore(t time.Time) []*PendingUnsubscribe {
	var out []*PendingUnsubscribe
	for _, u := range s.unsubscribes {
		if u.LastSentAt.Before(t) {
			out = append(out, u)
		}
	}
	return out
}

func (s *memStore) AddSubscription(topicFilter string, handler MessageHandler, messageID uint16, qos QoS) {
	s.subs = append(s.subs, &TopicSubscription{
		TopicFilter: topicFilter,
		QoS:         qos,
		Handler:     handler,
		MessageID:   messageID,
	})
}

func (s *memStore) SubscriptionsMatching(topic string) []*TopicSubscription {
	var out []*TopicSubscription
	for _, sub := range s.subs {
		if matchTopic(sub.TopicFilter, topic) {
			out = append(out, sub)
		}
	}
	return out
}

func (s *memStore) SubscriptionsWithMessageID(messageID uint16) []*TopicSubscription {
	var out []*TopicSubscription
	for _, sub := range s.subs {
		if sub.MessageID == messageID {
			out = append(out, sub)
		}
	}
	return out
}

func (s *memStore) RemoveSubscriptionsWithMessageID(messageID uint16) bool {
	removed := false
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.MessageID == messageID {
			removed = true
			continue
		}
		kept = append(kept, sub)
	}
	s.subs = kept
	return removed
}

func (s *memStore) HasPendingMessageID(messageID uint16) bool {
	if _, ok := s.publishes[messageID]; ok {
		return true
	}
	if _, ok := s.unsubscribes[messageID]; ok {
		return true
	}
	return false
}

func (s *memStore) PendingPublishCount() int { return len(s.publishes) }

func (s *memStore) PendingUnsubscribeCount() int { return len(s.unsubscribes) }
