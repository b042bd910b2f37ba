// Package config loads client connection settings from a YAML
// document, grounded on
// ZindGH-MQTT-Server/internal/config/config.go's
// read-defaults-validate shape, adapted from a broker's server config
// to a client's connection config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML schema for a client connection. Durations
// are expressed as plain integer seconds, matching the field names
// spec.md §3 documents (keep_alive_seconds, socket_timeout_seconds,
// resend_timeout_seconds).
type File struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	ClientID             string `yaml:"client_id"`
	KeepAliveSeconds     int    `yaml:"keep_alive_seconds"`
	SocketTimeoutSeconds int    `yaml:"socket_timeout_seconds"`
	ResendTimeoutSeconds int    `yaml:"resend_timeout_seconds"`

	// BlockSocketRaw is a pointer so setDefaults can distinguish an
	// omitted block_socket key (nil, defaults to true per spec.md §3)
	// from an explicit "block_socket: false". Read it through
	// BlockSocket().
	BlockSocketRaw *bool `yaml:"block_socket"`

	Username     string    `yaml:"username"`
	Password     string    `yaml:"password"`
	CleanSession bool      `yaml:"clean_session"`
	CAFile       string    `yaml:"ca_file"`
	LastWill     *LastWill `yaml:"last_will"`
}

// LastWill is the YAML form of a broker last-will message.
type LastWill struct {
	Topic   string `yaml:"topic"`
	Message string `yaml:"message"`
	QoS     uint8  `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// Load reads and parses path, applying the same defaults as
// mqclient.DefaultConnectionSettings to any unset field.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	f.setDefaults()

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %q: %w", path, err)
	}
	return &f, nil
}

func (f *File) setDefaults() {
	if f.Port == 0 {
		f.Port = 1883
	}
	if f.KeepAliveSeconds == 0 {
		f.KeepAliveSeconds = 10
	}
	if f.SocketTimeoutSeconds == 0 {
		f.SocketTimeoutSeconds = 5
	}
	if f.ResendTimeoutSeconds == 0 {
		f.ResendTimeoutSeconds = 10
	}
	if f.BlockSocketRaw == nil {
		blockSocket := true
		f.BlockSocketRaw = &blockSocket
	}
}

func (f *File) validate() error {
	if f.Host == "" {
		return fmt.Errorf("host is required")
	}
	if f.Port < 1 || f.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", f.Port)
	}
	if f.LastWill != nil && f.LastWill.QoS > 1 {
		return fmt.Errorf("invalid last_will qos: %d (must be 0 or 1)", f.LastWill.QoS)
	}
	return nil
}

// KeepAlive returns the configured keep-alive interval as a
// time.Duration.
func (f *File) KeepAlive() time.Duration { return time.Duration(f.KeepAliveSeconds) * time.Second }

// SocketTimeout returns the configured socket timeout as a
// time.Duration.
func (f *File) SocketTimeout() time.Duration {
	return time.Duration(f.SocketTimeoutSeconds) * time.Second
}

// ResendTimeout returns the configured resend timeout as a
// time.Duration.
func (f *File) ResendTimeout() time.Duration {
	return time.Duration(f.ResendTimeoutSeconds) * time.Second
}

// BlockSocket returns the configured block_socket flag. setDefaults
// guarantees BlockSocketRaw is non-nil after Load; the nil case here
// only guards direct construction of a File outside that path.
func (f *File) BlockSocket() bool {
	if f.BlockSocketRaw == nil {
		return true
	}
	return *f.BlockSocketRaw
}
