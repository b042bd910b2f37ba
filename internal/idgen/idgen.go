// Package idgen generates random MQTT client identifiers, grounded on
// PiotrWarzachowski-go-instagram-cli's use of github.com/google/uuid
// for identifier generation.
package idgen

import "github.com/google/uuid"

// maxClientIDLength is the MQTT 3.1.1-recommended maximum length a
// broker is guaranteed to accept for a client identifier.
const maxClientIDLength = 23

// NewClientID returns a random client identifier of the form
// "mq-<hex>", truncated to maxClientIDLength so it stays within the
// broker-guaranteed range even though most modern brokers accept much
// longer ids.
func NewClientID() string {
	id := "mq-" + uuid.NewString()
	if len(id) > maxClientIDLength {
		id = id[:maxClientIDLength]
	}
	return id
}
