package mqclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance "now" deterministically instead of
// sleeping real wall-clock time.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

// newPipedClient builds a Client wired to one end of a net.Pipe, with
// the handshake already completed against the given server byte
// sequence, and returns the client plus the other end of the pipe for
// the test to drive as the "broker".
func newPipedClient(t *testing.T, clock Clock, connackBytes []byte) (*Client, net.Conn) {
	t.Helper()

	clientConn, serverConn := net.Pipe()

	c := New("example.invalid", 1883, WithClock(clock))
	c.transport = &transport{conn: clientConn, timeout: time.Second}
	c.settings = DefaultConnectionSettings()
	c.lastSweepAt = clock.Now()

	done := make(chan error, 1)
	go func() {
		done <- c.connect(c.clientID, c.settings, true)
	}()

	buf := make([]byte, 256)
	n, err := serverConn.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0) // CONNECT frame received by "broker"

	_, err = serverConn.Write(connackBytes)
	require.NoError(t, err)

	require.NoError(t, <-done)
	c.closed.Store(false)

	return c, serverConn
}

func acceptedConnack() []byte { return []byte{0x20, 0x02, 0x00, 0x00} }

// stepUntilWork drives Step with allowSleep=false until it reports
// StepDidWork or returns an error. Step's first read is a best-effort,
// non-blocking poll, so a single call can legitimately race an
// in-flight write from the test's fake broker goroutine; retrying is
// the deterministic way to wait for "the write has been observed"
// without depending on real-time sleeps.
func stepUntilWork(t *testing.T, c *Client) (StepResult, error) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		res, err := c.Step(context.Background(), false)
		if err != nil || res == StepDidWork {
			return res, err
		}
	}
	t.Fatal("stepUntilWork: no work observed after 1000 attempts")
	return StepIdle, nil
}

func TestConnect_Accepted(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	assert.False(t, c.closed.Load())
}

func TestConnect_RefusedConnack(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	c := New("example.invalid", 1883)
	c.transport = &transport{conn: clientConn, timeout: time.Second}
	c.settings = DefaultConnectionSettings()

	done := make(chan error, 1)
	go func() {
		done <- c.connect(c.clientID, c.settings, true)
	}()

	buf := make([]byte, 256)
	_, err := serverConn.Read(buf)
	require.NoError(t, err)

	// byte[0]>>4 == 2 but byte[3] != 0: refused.
	_, err = serverConn.Write([]byte{0x20, 0x02, 0x00, 0x05})
	require.NoError(t, err)

	err = <-done
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

// TestConnect_InvariantOnlyConnackByte0And3Matter exercises spec.md
// §8 invariant 6: any 4-byte buffer other than byte[0]>>4==2 &&
// byte[3]==0 must fail.
func TestConnect_InvariantOnlyConnackByte0And3Matter(t *testing.T) {
	cases := [][]byte{
		{0x30, 0x02, 0x00, 0x00}, // wrong packet type
		{0x20, 0x02, 0x01, 0x01}, // right type, bad return code
		{0x20, 0x02, 0xFF, 0x00}, // flags byte garbage still fine if byte3==0... handled below
	}
	for i, buf := range cases {
		if i == 2 {
			continue // byte3==0 here is actually accepted; not a failure case
		}
		clientConn, serverConn := net.Pipe()
		c := New("example.invalid", 1883)
		c.transport = &transport{conn: clientConn, timeout: time.Second}
		c.settings = DefaultConnectionSettings()

		done := make(chan error, 1)
		go func() { done <- c.connect(c.clientID, c.settings, true) }()

		tmp := make([]byte, 256)
		_, err := serverConn.Read(tmp)
		require.NoError(t, err)
		_, err = serverConn.Write(buf)
		require.NoError(t, err)

		err = <-done
		assert.Error(t, err, "case %d: %v", i, buf)
		serverConn.Close()
	}
}

// TestPublish_QoS0 mirrors spec.md §8 S3 at the client-operation
// level: no pending record is created for QoS 0.
func TestPublish_QoS0(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		readDone <- buf[:n]
	}()

	require.NoError(t, c.Publish("a/b", []byte("hi"), AtMostOnce, false))

	got := <-readDone
	assert.Equal(t, []byte{0x30, 0x07, 0x00, 0x03, 'a', '/', 'b', 'h', 'i'}, got)
	assert.False(t, c.store.HasPendingMessageID(1))
}

// TestPublish_QoS1_RegistersPending mirrors spec.md §8 invariant 1:
// pending publish created, then removed exactly once on PUBACK.
func TestPublish_QoS1_RegistersPending(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		readDone <- buf[:n]
	}()

	require.NoError(t, c.Publish("x", []byte("y"), AtLeastOnce, true))
	<-readDone

	assert.True(t, c.store.HasPendingMessageID(1))

	writeDone := make(chan error, 1)
	go func() {
		_, err := server.Write([]byte{0x40, 0x02, 0x00, 0x01})
		writeDone <- err
	}()

	res, err := stepUntilWork(t, c)
	require.NoError(t, err)
	assert.Equal(t, StepDidWork, res)
	require.NoError(t, <-writeDone)

	assert.False(t, c.store.HasPendingMessageID(1))
}

// TestPuback_UnknownID_IsUnexpectedAck mirrors spec.md §3 invariant 2.
func TestPuback_UnknownID_IsUnexpectedAck(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	go server.Write([]byte{0x40, 0x02, 0x00, 0x09})

	_, err := stepUntilWork(t, c)
	var ackErr *UnexpectedAckError
	assert.ErrorAs(t, err, &ackErr)
	assert.Equal(t, "publish", ackErr.Context)
}

// TestInboundPublish_S6_Dispatch mirrors spec.md §8 S6 exactly.
func TestInboundPublish_S6_Dispatch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	var gotTopic string
	var gotPayload []byte
	calls := 0
	c.store.AddSubscription("t/1", func(msg Message) {
		calls++
		gotTopic = msg.Topic
		gotPayload = msg.Payload
	}, 0, AtMostOnce)

	frame := []byte{0x30, 0x07, 0x00, 0x03, 't', '/', '1', 'H', 'i'}
	go server.Write(frame)

	res, err := stepUntilWork(t, c)
	require.NoError(t, err)
	assert.Equal(t, StepDidWork, res)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "t/1", gotTopic)
	assert.Equal(t, []byte("Hi"), gotPayload)
}

// TestInboundPublish_QoS1_SendsPuback resolves spec.md §9 open
// question 5.
func TestInboundPublish_QoS1_SendsPuback(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	c.store.AddSubscription("t/1", func(Message) {}, 0, AtLeastOnce)

	frame := []byte{0x32, 0x09, 0x00, 0x03, 't', '/', '1', 0x00, 0x2A, 'H', 'i'}
	go server.Write(frame)

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		readDone <- buf[:n]
	}()

	_, err := stepUntilWork(t, c)
	require.NoError(t, err)

	got := <-readDone
	assert.Equal(t, []byte{0x40, 0x02, 0x00, 0x2A}, got)
}

func TestSubscribe_Suback_CountMismatch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
	}()
	require.NoError(t, c.Subscribe("t/1", func(Message) {}, AtLeastOnce))

	// SUBACK with 2 granted-qos bytes for a SUBSCRIBE that only
	// registered 1 filter.
	go server.Write([]byte{0x90, 0x04, 0x00, 0x01, 0x01, 0x01})

	_, err := stepUntilWork(t, c)
	var ackErr *UnexpectedAckError
	assert.ErrorAs(t, err, &ackErr)
	assert.Equal(t, "subscribe", ackErr.Context)
}

// TestSubscribe_RollsBackOnWriteFailure mirrors the rollback-on-write-
// failure policy DESIGN.md documents as uniform across
// Publish/Subscribe/Unsubscribe.
func TestSubscribe_RollsBackOnWriteFailure(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	server.Close()

	err := c.Subscribe("t/1", func(Message) {}, AtMostOnce)
	assert.Error(t, err)
	assert.Empty(t, c.store.SubscriptionsMatching("t/1"))
}

func TestKeepAlive_SuppressedByActivity(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	c.settings.KeepAlive = 10 * time.Second
	clock.advance(5 * time.Second)
	c.lastActivityAt = clock.Now()

	// No PINGREQ should be written within the window.
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Step(context.Background(), false)
		errCh <- err
	}()
	require.NoError(t, <-errCh)
}

func TestKeepAlive_PingreqAfterIdleWindow(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	c.settings.KeepAlive = 1 * time.Second
	c.lastActivityAt = clock.Now()
	clock.advance(2 * time.Second)

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		readDone <- buf[:n]
	}()

	_, err := c.Step(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xC0, 0x00}, <-readDone)
}

func TestClose_DisconnectsAndShutsDownWrite(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c, server := newPipedClient(t, clock, acceptedConnack())
	defer server.Close()

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		readDone <- buf[:n]
	}()

	require.NoError(t, c.Close())
	assert.Equal(t, []byte{0xE0, 0x00}, <-readDone)

	err := c.Publish("x", []byte("y"), AtMostOnce, false)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAllocatePacketID_WrapsAndSkipsInFlight(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newMemStore(clock)
	c := New("example.invalid", 1883, WithSessionStore(store), WithClock(clock))
	c.nextID = 65535

	// Both 65535 (the id about to be handed out) and 1 (what it wraps
	// to) are still in flight, so the first free id is 2.
	store.AddPendingPublish(65535, "t", nil, AtLeastOnce, false)
	store.AddPendingPublish(1, "t", nil, AtLeastOnce, false)

	id, err := c.allocatePacketID()
	require.NoError(t, err)
	assert.EqualValues(t, 2, id, "should wrap past 65535 to 1, then skip both in-flight ids")
}
