package carburetor

import (
	"bufio"
	"github.com/jd3nn1s/carburetor/sysstats"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"sync"
	"testing"
	"time"
)

type senderStub struct {
	mu     sync.Mutex
	speeds []Speed
}

func (s *senderStub) Send(speed Speed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speeds = append(s.speeds, speed)
}

func (s *senderStub) sent() []Speed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Speed(nil), s.speeds...)
}

type statsStub struct {
	mu   sync.Mutex
	mem  sysstats.MemInfo
	load float64
	err  error
}

func (s *statsStub) Memory() (sysstats.MemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem, s.err
}

func (s *statsStub) LoadAverage() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load, s.err
}

func (s *statsStub) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func testLogger() *log.Entry {
	return log.WithField("test", true)
}

type batteryStub struct {
	level int
}

func (b batteryStub) Level() (int, bool) {
	return b.level, true
}

type testServer struct {
	ch0, ch1 *senderStub
	stats    *statsStub
	addr     string
	ln       net.Listener
	done     chan error
}

func startTestServer(t *testing.T) *testServer {
	ts := &testServer{
		ch0:   &senderStub{},
		ch1:   &senderStub{},
		stats: &statsStub{mem: sysstats.MemInfo{Total: 1000, Free: 250}, load: 0.52},
		done:  make(chan error, 1),
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ts.ln = ln
	ts.addr = ln.Addr().String()

	s := NewServer([channelCount]SpeedSender{ts.ch0, ts.ch1}, ts.stats, batteryStub{level: 42})
	go func() {
		ts.done <- s.Serve(ln)
	}()
	t.Cleanup(func() {
		ln.Close()
		assert.NoError(t, <-ts.done)
	})
	return ts
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (ts *testServer) dial(t *testing.T) *client {
	conn, err := net.Dial("tcp", ts.addr)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(buf MessageBytes) {
	_, err := c.conn.Write(buf[:])
	require.NoError(c.t, err)
}

func (c *client) readLine() string {
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return line
}

// query round-trips a Query frame, which guarantees every earlier frame on
// the connection has been dispatched.
func (c *client) query() {
	c.send(Encode(Instruction{Kind: KindQuery}))
	assert.Equal(c.t, "Nice!\n", c.readLine())
}

func TestServerStatusReplies(t *testing.T) {
	ts := startTestServer(t)
	c := ts.dial(t)
	defer c.conn.Close()

	c.query()

	c.send(Encode(Instruction{Kind: KindBattery}))
	assert.Equal(t, "Battery: 42%\n", c.readLine())

	c.send(Encode(Instruction{Kind: KindMemory}))
	assert.Equal(t, "Memory: 75% (750 / 1000)\n", c.readLine())

	c.send(Encode(Instruction{Kind: KindCpu}))
	assert.Equal(t, "Cpu: 0.52\n", c.readLine())
}

func TestServerMotorRouting(t *testing.T) {
	ts := startTestServer(t)
	c := ts.dial(t)
	defer c.conn.Close()

	c.send(Encode(Motor(0, 0.5)))
	c.send(Encode(Motor(1, -0.25)))
	c.send(Encode(Motor(0, 1)))
	c.query()

	assert.Equal(t, []Speed{0.5, 1}, ts.ch0.sent())
	assert.Equal(t, []Speed{-0.25}, ts.ch1.sent())
}

func TestServerMalformedFrameKeepsConnection(t *testing.T) {
	ts := startTestServer(t)
	c := ts.dial(t)
	defer c.conn.Close()

	c.send(MessageBytes{0xff})
	assert.Equal(t, "Invalid message: [255, 0, 0, 0, 0, 0, 0, 0]\n", c.readLine())

	c.send(Encode(Motor(1, 0.75)))
	c.query()
	assert.Equal(t, []Speed{0.75}, ts.ch1.sent())
}

func TestServerUnknownChannelFrame(t *testing.T) {
	ts := startTestServer(t)
	c := ts.dial(t)
	defer c.conn.Close()

	c.send(motorFrame(7, 0.5))
	assert.Equal(t, "Invalid message: [16, 7, 63, 0, 0, 0, 0, 0]\n", c.readLine())
	c.query()

	assert.Empty(t, ts.ch0.sent())
	assert.Empty(t, ts.ch1.sent())
}

func TestDispatchUnknownChannel(t *testing.T) {
	ch0, ch1 := &senderStub{}, &senderStub{}
	s := NewServer([channelCount]SpeedSender{ch0, ch1}, &statsStub{}, nil)

	assert.NotPanics(t, func() {
		assert.NoError(t, s.dispatch(nil, Motor(7, 0.5), testLogger()))
	})
	assert.Empty(t, ch0.sent())
	assert.Empty(t, ch1.sent())
}

func TestServerNeutralOnClose(t *testing.T) {
	ts := startTestServer(t)

	first := ts.dial(t)
	first.send(Encode(Motor(0, 0.8)))
	first.query()
	require.NoError(t, first.conn.Close())

	// the server is sequential: a reply on the next connection means the
	// first one has been fully handled
	second := ts.dial(t)
	second.query()
	assert.Equal(t, []Speed{0.8, Neutral}, ts.ch0.sent())
	assert.Equal(t, []Speed{Neutral}, ts.ch1.sent())

	second.send(Encode(Motor(1, -1)))
	second.query()
	require.NoError(t, second.conn.Close())

	third := ts.dial(t)
	defer third.conn.Close()
	third.query()
	assert.Equal(t, []Speed{0.8, Neutral, Neutral}, ts.ch0.sent())
	assert.Equal(t, []Speed{Neutral, -1, Neutral}, ts.ch1.sent())
}

func TestServerPartialFrameIsClose(t *testing.T) {
	ts := startTestServer(t)

	c := ts.dial(t)
	_, err := c.conn.Write([]byte{0x10, 0x00, 0x3f})
	require.NoError(t, err)
	require.NoError(t, c.conn.Close())

	next := ts.dial(t)
	defer next.conn.Close()
	next.query()
	assert.Equal(t, []Speed{Neutral}, ts.ch0.sent())
	assert.Equal(t, []Speed{Neutral}, ts.ch1.sent())
}

func TestServerStatsFailureAbortsConnection(t *testing.T) {
	ts := startTestServer(t)
	ts.stats.fail(errors.New("fake stats error"))

	c := ts.dial(t)
	defer c.conn.Close()
	c.send(Encode(Instruction{Kind: KindMemory}))
	_, err := c.r.ReadString('\n')
	assert.Error(t, err, "no report is made and the connection is closed")

	ts.stats.fail(nil)
	next := ts.dial(t)
	defer next.conn.Close()
	next.query()
	assert.Equal(t, []Speed{Neutral}, ts.ch0.sent())
	assert.Equal(t, []Speed{Neutral}, ts.ch1.sent())
}

func TestServeStopsWhenListenerClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewServer([channelCount]SpeedSender{&senderStub{}, &senderStub{}}, &statsStub{}, nil)
	done := make(chan error)
	go func() {
		done <- s.Serve(ln)
	}()
	ln.Close()
	assert.NoError(t, <-done)
}
