package irc

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nettle-irc/nettle/internal/logger"
)

// Connection lifecycle timing.
const (
	dialTimeout    = 15 * time.Second
	keepAlive      = 10 * time.Second
	maxRTT         = 5 * time.Second
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second

	defaultPortTLS   = 6697
	defaultPortPlain = 6667
)

// State is the lifecycle state of a connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateNegotiating
	StateAuthenticating
	StateRegistered
	StateSyncing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "capability-negotiation"
	case StateAuthenticating:
		return "authenticating"
	case StateRegistered:
		return "registered"
	case StateSyncing:
		return "synchronizing-history"
	case StateReady:
		return "ready"
	}
	return "disconnected"
}

// Config describes one network endpoint and its credentials.
type Config struct {
	Server   string
	Port     int
	TLS      bool
	User     string
	Nick     string
	Password string
	RealName string

	// SASLMechanism selects the authentication mechanism when Password is
	// set; empty means PLAIN.
	SASLMechanism string

	// NetID and Name are set on bouncer satellite connections.
	NetID string
	Name  string
}

// Addr returns the dial address, applying the default port for the
// transport when none is configured.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		if c.TLS {
			port = defaultPortTLS
		} else {
			port = defaultPortPlain
		}
	}
	return fmt.Sprintf("%s:%d", c.Server, port)
}

// EventKind discriminates inbound events produced by connection read loops.
type EventKind int

const (
	EventMessage EventKind = iota
	EventConnected
	EventDisconnected
)

// Event is one item of the shared inbound queue consumed by the dispatcher.
type Event struct {
	Conn *Conn
	Kind EventKind
	Msg  Message
}

// rootPool is the process-wide TLS trust bundle, loaded once and shared
// read-only across connections.
var (
	rootPool     *x509.CertPool
	rootPoolOnce sync.Once
)

func trustedRoots() *x509.CertPool {
	rootPoolOnce.Do(func() {
		pool, err := x509.SystemCertPool()
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to load system trust bundle")
			pool = x509.NewCertPool()
		}
		rootPool = pool
	})
	return rootPool
}

// Conn maintains one live connection to an IRC server or bouncer. The read
// loop only parses lines into Events; all protocol semantics and state
// mutation happen on the dispatcher goroutine.
type Conn struct {
	Config Config

	queue   *WriteQueue
	inbound chan<- Event

	state   atomic.Int32
	closing atomic.Bool
	done    chan struct{}
	stopped chan struct{}

	mu   sync.Mutex
	sock net.Conn

	lastRead atomic.Int64 // unix nanos of the last full line received
}

// NewConn creates a connection bound to the shared write queue and inbound
// event channel. Call Run on its own goroutine to start it.
func NewConn(cfg Config, queue *WriteQueue, inbound chan<- Event) *Conn {
	return &Conn{
		Config:  cfg,
		queue:   queue,
		inbound: inbound,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Stopped is closed once Run has returned. After Close, waiting on it
// confirms the read loop is gone and no further events will arrive.
func (c *Conn) Stopped() <-chan struct{} {
	return c.stopped
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// SetState records a lifecycle state transition. The read loop drives the
// socket-level states; the dispatcher drives the protocol-level ones.
func (c *Conn) SetState(s State) {
	c.state.Store(int32(s))
}

// Close requests connection shutdown: no further reconnect attempts, and
// the read loop exits as soon as the socket unblocks.
func (c *Conn) Close() {
	if c.closing.Swap(true) {
		return
	}
	close(c.done)
	c.mu.Lock()
	if c.sock != nil {
		c.sock.Close()
	}
	c.mu.Unlock()
}

// Closing reports whether Close has been requested.
func (c *Conn) Closing() bool {
	return c.closing.Load()
}

// Send enqueues an outbound command on the shared write queue.
func (c *Conn) Send(cmd Command, params ...string) {
	c.queue.Push(c, NewMessage(cmd, params...).String())
}

// SendLine enqueues a prebuilt outbound command.
func (c *Conn) SendLine(l Line) {
	c.queue.Push(c, l.String())
}

// SendRaw enqueues a raw protocol line.
func (c *Conn) SendRaw(raw string) {
	c.queue.Push(c, raw)
}

// Run owns the reconnect loop: dial, read until failure, back off, retry.
// It exits only when Close is called.
func (c *Conn) Run() {
	defer close(c.stopped)
	backoff := initialBackoff
	for {
		if c.closing.Load() {
			return
		}
		c.SetState(StateConnecting)
		err := c.session(&backoff)
		c.SetState(StateDisconnected)
		c.inbound <- Event{Conn: c, Kind: EventDisconnected}
		if c.closing.Load() {
			return
		}
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("server", c.Config.Addr()).
				Dur("backoff", backoff).
				Msg("Connection lost, reconnecting")
		}
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

// nextBackoff doubles the reconnect delay, capped at maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Conn) session(backoff *time.Duration) error {
	sock, err := c.dial()
	if err != nil {
		return err
	}
	*backoff = initialBackoff

	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
	c.touch()

	c.SetState(StateNegotiating)
	c.inbound <- Event{Conn: c, Kind: EventConnected}
	c.register()

	stop := make(chan struct{})
	go c.keepalive(sock, stop)
	defer close(stop)

	r := bufio.NewReader(sock)
	for {
		if c.closing.Load() {
			sock.Close()
			return nil
		}
		sock.SetReadDeadline(c.readDeadline())
		line, err := r.ReadString('\n')
		if err != nil {
			sock.Close()
			return err
		}
		c.touch()
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		logger.Log.Debug().Str("server", c.Config.Addr()).Str("line", line).Msg("recv")
		msg, err := ParseMessage(line, time.Now())
		if err != nil {
			logger.Log.Warn().Err(err).Str("line", line).Msg("Dropped malformed line")
			continue
		}
		c.inbound <- Event{Conn: c, Kind: EventMessage, Msg: msg}
	}
}

func (c *Conn) dial() (net.Conn, error) {
	addr := c.Config.Addr()
	sock, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if !c.Config.TLS {
		return sock, nil
	}
	tlsConn := tls.Client(sock, &tls.Config{
		ServerName: c.Config.Server,
		RootCAs:    trustedRoots(),
	})
	sock.SetDeadline(time.Now().Add(dialTimeout))
	if err := tlsConn.Handshake(); err != nil {
		sock.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	sock.SetDeadline(time.Time{})
	return tlsConn, nil
}

// register sends the registration burst. Capability acknowledgements and
// SASL challenges are handled by the dispatcher; CAP END is sent here only
// when no authentication will happen.
func (c *Conn) register() {
	c.Send(CmdCap, "LS", "302")
	for _, name := range SupportedCaps {
		c.Send(CmdCap, "REQ", name)
	}
	c.Send(CmdNick, c.Config.Nick)
	c.Send(CmdUser, c.Config.User, "0", "*", c.Config.RealName)
	if c.Config.Password == "" {
		c.Send(CmdCap, "END")
	}
}

func (c *Conn) touch() {
	c.lastRead.Store(time.Now().UnixNano())
}

func (c *Conn) idle() time.Duration {
	return time.Since(time.Unix(0, c.lastRead.Load()))
}

func (c *Conn) readDeadline() time.Time {
	return time.Unix(0, c.lastRead.Load()).Add(keepAlive + maxRTT)
}

// keepalive pings the server once the read side has been idle for the
// keepalive interval. The read deadline kills the connection if nothing
// arrives within the additional round-trip allowance.
func (c *Conn) keepalive(sock net.Conn, stop <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	pinged := false
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			idle := c.idle()
			switch {
			case idle <= keepAlive:
				pinged = false
			case !pinged:
				c.Send(CmdPing, "nettle")
				pinged = true
			}
		}
	}
}

// socket returns the live socket for the writer goroutine, or nil while
// disconnected.
func (c *Conn) socket() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock
}
