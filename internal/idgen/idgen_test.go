package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClientID(t *testing.T) {
	id := NewClientID()
	assert.True(t, strings.HasPrefix(id, "mq-"))
	assert.LessOrEqual(t, len(id), maxClientIDLength)
}

func TestNewClientID_Unique(t *testing.T) {
	a := NewClientID()
	b := NewClientID()
	assert.NotEqual(t, a, b)
}
