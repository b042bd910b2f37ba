package mqclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"
)

// transport is the Byte Transport collaborator (spec.md §4.A): a
// connected byte stream with exact-length and best-effort reads and
// all-or-nothing writes. It has no knowledge of MQTT framing.
type transport struct {
	conn    net.Conn
	timeout time.Duration

	// blockSocket mirrors ConnectionSettings.BlockSocket: when true, a
	// full (exact-length) read waits indefinitely for the requested
	// bytes, the way a blocking PHP stream does; when false, it is
	// bounded by timeout like every other full read. The best-effort
	// poll (read with blocking=false) is unaffected either way — it
	// waits at most a millisecond and returns whatever is queued.
	blockSocket bool
}

// defaultMQTTPort is used when a dial URL carries no explicit port.
const defaultMQTTPort = "1883"

// dialOptions configures dialTransport.
type dialOptions struct {
	timeout     time.Duration
	blockSocket bool
	tlsConf     *tls.Config
	caFile      string
}

// dialTransport opens a plaintext ("tcp://host:port") or TLS
// ("tls://host:port") connection. TLS certificate lifecycle
// management beyond accepting a pre-built *tls.Config or a CA file
// for peer verification is out of scope (spec.md §1 non-goal).
func dialTransport(addr string, opts dialOptions) (*transport, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid address %q: %v", ErrConnectionFailed, addr, err)
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = defaultMQTTPort
	}
	hostport := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: opts.timeout}

	var conn net.Conn
	switch u.Scheme {
	case "", "tcp":
		conn, err = dialer.Dial("tcp", hostport)
	case "tls", "ssl":
		tlsConf := opts.tlsConf
		if tlsConf == nil {
			tlsConf = &tls.Config{ServerName: host}
		}
		if opts.caFile != "" {
			pool, caErr := loadCAFile(opts.caFile)
			if caErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, caErr)
			}
			tlsConf = tlsConf.Clone()
			tlsConf.RootCAs = pool
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", hostport, tlsConf)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrConnectionFailed, u.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &transport{conn: conn, timeout: opts.timeout, blockSocket: opts.blockSocket}, nil
}

// loadCAFile reads a PEM-encoded CA bundle from disk for peer-name
// verification. The client never manages certificate lifecycle beyond
// this: no renewal, no revocation checking (spec.md §1 non-goal).
func loadCAFile(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA file %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no valid certificates found in CA file %q", path)
	}
	return pool, nil
}

// writeAll writes every byte of b, failing with ErrTxData on any
// short write or error — no short writes are tolerated (spec.md
// §4.A).
func (t *transport) writeAll(b []byte) error {
	n, err := t.conn.Write(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTxData, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", ErrTxData, n, len(b))
	}
	return nil
}

// read performs either a best-effort read of up to limit bytes
// (blocking=false, may return 0 bytes) or loops until exactly limit
// bytes are read or the stream ends (blocking=true). A blocking read's
// deadline is governed by t.blockSocket (spec.md §3 block_socket):
// unbounded when true, t.timeout when false. Both modes fail with
// ErrRxData on a stream error (spec.md §4.A).
func (t *transport) read(limit int, blocking bool) ([]byte, error) {
	buf := make([]byte, limit)

	if !blocking {
		// A deadline one millisecond away makes Read return almost at
		// once with a timeout when nothing is queued, instead of
		// blocking — this is what makes the call best-effort. An
		// already-elapsed deadline would not do: Read then fails with a
		// timeout even when bytes are queued.
		_ = t.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := t.conn.Read(buf)
		if err != nil {
			if isTimeout(err) {
				return buf[:0], nil
			}
			if err == io.EOF {
				return buf[:0], fmt.Errorf("%w: connection closed", ErrRxData)
			}
			return nil, fmt.Errorf("%w: %v", ErrRxData, err)
		}
		return buf[:n], nil
	}

	if t.blockSocket {
		_ = t.conn.SetReadDeadline(time.Time{})
	} else {
		t.setReadDeadline(t.timeout)
	}
	n, err := io.ReadFull(t.conn, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRxData, err)
	}
	return buf[:n], nil
}

func (t *transport) setReadDeadline(d time.Duration) {
	if d <= 0 {
		_ = t.conn.SetReadDeadline(time.Time{})
		return
	}
	_ = t.conn.SetReadDeadline(time.Now().Add(d))
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// closeWrite shuts down the writable half of the stream, used by
// disconnect/Close for an orderly teardown (spec.md §4.E, §5).
func (t *transport) closeWrite() error {
	if cw, ok := t.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return t.conn.Close()
}

func (t *transport) close() error {
	return t.conn.Close()
}
