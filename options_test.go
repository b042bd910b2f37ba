package mqclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConnectionSettings(t *testing.T) {
	s := DefaultConnectionSettings()
	assert.Equal(t, 10*time.Second, s.KeepAlive)
	assert.Equal(t, 5*time.Second, s.SocketTimeout)
	assert.Equal(t, 10*time.Second, s.ResendTimeout)
	assert.True(t, s.BlockSocket)
	assert.Nil(t, s.LastWill)
}

func TestNewConnectionSettings_AppliesOptions(t *testing.T) {
	s := NewConnectionSettings(
		WithKeepAlive(30*time.Second),
		WithCredentials("alice", "secret"),
		WithLastWill(LastWill{Topic: "status", Message: []byte("offline"), QoS: AtLeastOnce}),
	)

	assert.Equal(t, 30*time.Second, s.KeepAlive)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "secret", s.Password)
	assert.NotNil(t, s.LastWill)
	assert.Equal(t, "status", s.LastWill.Topic)
}
