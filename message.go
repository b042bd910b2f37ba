package mqclient

// Message is delivered to a subscription handler for every inbound
// PUBLISH whose topic matches the handler's filter.
type Message struct {
	Topic   string
	Payload []byte
	QoS     QoS
	Retain  bool
	Dup     bool
}

// MessageHandler is invoked synchronously, on the event-loop thread,
// for every inbound PUBLISH matching a subscription. Handlers must
// not perform unbounded blocking work: doing so delays keep-alive and
// retransmission (spec.md §5).
type MessageHandler func(msg Message)
