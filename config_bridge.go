package mqclient

import "github.com/gonzalop/mqclient/internal/config"

// NewFromConfigFile loads a YAML connection config (internal/config)
// and returns a ready-to-Connect Client along with the
// ConnectionSettings and clean-session flag decoded from it, as an
// alternative to constructing everything through functional options.
func NewFromConfigFile(path string, opts ...Option) (*Client, ConnectionSettings, bool, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, ConnectionSettings{}, false, err
	}

	settings := ConnectionSettings{
		KeepAlive:     f.KeepAlive(),
		SocketTimeout: f.SocketTimeout(),
		ResendTimeout: f.ResendTimeout(),
		BlockSocket:   f.BlockSocket(),
		Username:      f.Username,
		Password:      f.Password,
	}
	if f.LastWill != nil {
		settings.LastWill = &LastWill{
			Topic:   f.LastWill.Topic,
			Message: []byte(f.LastWill.Message),
			QoS:     QoS(f.LastWill.QoS),
			Retain:  f.LastWill.Retain,
		}
	}

	allOpts := opts
	if f.ClientID != "" {
		allOpts = append([]Option{WithClientID(f.ClientID)}, opts...)
	}
	if f.CAFile != "" {
		allOpts = append(allOpts, WithCAFile(f.CAFile))
	}

	c := New(f.Host, f.Port, allOpts...)
	return c, settings, f.CleanSession, nil
}
