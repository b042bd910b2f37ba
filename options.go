package mqclient

import "time"

// LastWill describes the message the broker publishes on the
// client's behalf if it detects an ungraceful disconnect.
type LastWill struct {
	Topic   string
	Message []byte
	QoS     QoS
	Retain  bool
}

// ConnectionSettings configures a Client (spec.md §3). It replaces
// the source's long positional-argument connect() call with an
// explicit, builder-mutated value (spec.md §9 redesign note).
type ConnectionSettings struct {
	KeepAlive     time.Duration
	SocketTimeout time.Duration
	ResendTimeout time.Duration
	BlockSocket   bool
	LastWill      *LastWill
	Username      string
	Password      string
}

// DefaultConnectionSettings returns the documented defaults:
// keep_alive=10s, socket_timeout=5s, resend_timeout=10s,
// block_socket=true, no will, no credentials.
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		KeepAlive:     10 * time.Second,
		SocketTimeout: 5 * time.Second,
		ResendTimeout: 10 * time.Second,
		BlockSocket:   true,
	}
}

// SettingsOption mutates a ConnectionSettings value; WithXxx
// constructors compose via functional options, the idiom the teacher
// uses throughout options.go for clientOptions.
type SettingsOption func(*ConnectionSettings)

// WithKeepAlive sets the keep-alive interval advertised in CONNECT.
func WithKeepAlive(d time.Duration) SettingsOption {
	return func(s *ConnectionSettings) { s.KeepAlive = d }
}

// WithSocketTimeout sets the underlying read timeout.
func WithSocketTimeout(d time.Duration) SettingsOption {
	return func(s *ConnectionSettings) { s.SocketTimeout = d }
}

// WithResendTimeout sets the age beyond which pending publishes and
// unsubscribes are retransmitted.
func WithResendTimeout(d time.Duration) SettingsOption {
	return func(s *ConnectionSettings) { s.ResendTimeout = d }
}

// WithBlockSocket configures whether the transport is set up for
// blocking full reads.
func WithBlockSocket(block bool) SettingsOption {
	return func(s *ConnectionSettings) { s.BlockSocket = block }
}

// WithLastWill sets the last-will message advertised in CONNECT.
func WithLastWill(w LastWill) SettingsOption {
	return func(s *ConnectionSettings) { s.LastWill = &w }
}

// WithCredentials sets the username and password advertised in
// CONNECT.
func WithCredentials(username, password string) SettingsOption {
	return func(s *ConnectionSettings) {
		s.Username = username
		s.Password = password
	}
}

// NewConnectionSettings builds a ConnectionSettings starting from the
// documented defaults and applying each option in order.
func NewConnectionSettings(opts ...SettingsOption) ConnectionSettings {
	s := DefaultConnectionSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
