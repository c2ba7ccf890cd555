package moonlapse

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/moonlapse/crypto"
	"github.com/opd-ai/moonlapse/mailbox"
	"github.com/opd-ai/moonlapse/packet"
	"github.com/opd-ai/moonlapse/transport"
	"github.com/sirupsen/logrus"
)

// connEnv holds the collaborators the server injects into every connection.
type connEnv struct {
	transport *transport.FrameTransport
	sessions  *crypto.SessionStore
	registry  *Registry
	users     UserStore
	capacity  int
}

// Connection is one accepted client socket together with its protocol state
// and its outbound mailboxes, one per recipient it owes packets to.
//
// Dispatch, Enqueue and Broadcast may be called concurrently from the
// connection's own read loop, its own tick and other connections' ticks.
type Connection struct {
	id   uint64
	conn net.Conn
	env  *connEnv

	mu       sync.Mutex
	state    *protocolState
	username string
	outbound map[*Connection]*mailbox.Mailbox[packet.Packet]

	writeMu   sync.Mutex
	connected atomic.Bool
	endOnce   sync.Once
}

func newConnection(id uint64, conn net.Conn, env *connEnv) *Connection {
	c := &Connection{
		id:       id,
		conn:     conn,
		env:      env,
		state:    newEntryState(env.users),
		outbound: make(map[*Connection]*mailbox.Mailbox[packet.Packet]),
	}
	c.connected.Store(true)
	return c
}

// ID returns the connection's identity, unique within the server process.
func (c *Connection) ID() uint64 {
	return c.id
}

// State reports the current protocol state.
func (c *Connection) State() StateKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.kind
}

// Username returns the name the client logged in with, or "" before login.
func (c *Connection) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Connected reports whether the socket is still live.
func (c *Connection) Connected() bool {
	return c.connected.Load()
}

// RemoteAddr returns the client's address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) login(username string) {
	c.mu.Lock()
	c.username = username
	c.state = newPlayState()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "login",
		"conn_id":  c.id,
		"username": username,
	}).Info("Connection entered Play state")
}

// Start sends the server's public key and then reads packets until the
// socket closes. It blocks; the connection is torn down when it returns.
func (c *Connection) Start() {
	defer c.end()

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"conn_id":  c.id,
		"remote":   c.conn.RemoteAddr().String(),
	}).Info("Connection started")

	hello := &packet.PublicRSAKey{Key: c.env.sessions.PublicKeyPEM()}
	if err := c.sendClient(hello, packet.Header{}); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Start",
			"conn_id":  c.id,
			"error":    err.Error(),
		}).Warn("Failed to send public key")
		return
	}

	c.listen()
}

func (c *Connection) listen() {
	for {
		p, err := c.env.transport.Receive(c.id, c.conn)
		if err != nil {
			if transport.IsConnectionClosed(err) {
				logrus.WithFields(logrus.Fields{
					"function": "listen",
					"conn_id":  c.id,
					"reason":   err.Error(),
				}).Debug("Read loop ended")
				return
			}
			if errors.Is(err, packet.ErrUnknownVariant) {
				err = fmt.Errorf("%w: %v", ErrUnknownMessageType, err)
			}
			c.logDispatchError(err)
			continue
		}

		if err := c.Dispatch(c, p); err != nil {
			c.logDispatchError(err)
		}
	}
}

func (c *Connection) logDispatchError(err error) {
	entry := logrus.WithFields(logrus.Fields{
		"function": "listen",
		"conn_id":  c.id,
		"error":    err.Error(),
	})
	switch {
	case errors.Is(err, ErrNotSubscribed), errors.Is(err, ErrUnknownMessageType),
		errors.Is(err, transport.ErrEncryptionRequired):
		entry.Warn("Dropped packet")
	default:
		entry.Error("Failed to handle packet")
	}
}

// Dispatch routes p to the current state's handler. sender is the
// connection p came from: c itself for packets read off c's socket.
func (c *Connection) Dispatch(sender *Connection, p packet.Packet) error {
	v := packet.VariantOf(p)
	if !v.Known() {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, v)
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	h, ok := state.handler(v)
	if !ok {
		return fmt.Errorf("%w: %s in %s state", ErrNotSubscribed, v, state.kind)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Dispatch",
		"conn_id":  c.id,
		"sender":   sender.id,
		"variant":  v.String(),
		"state":    state.kind.String(),
	}).Debug("Dispatching packet")

	return h(c, sender, p)
}

// Enqueue queues p for recipient. The mailbox is created on first use and
// discards its oldest packet when full.
func (c *Connection) Enqueue(recipient *Connection, p packet.Packet) {
	c.mu.Lock()
	box, ok := c.outbound[recipient]
	if !ok {
		box = mailbox.New[packet.Packet](c.env.capacity)
		c.outbound[recipient] = box
	}
	evicted := box.Enqueue(p)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Enqueue",
		"conn_id":   c.id,
		"recipient": recipient.id,
		"variant":   packet.VariantOf(p).String(),
		"evicted":   evicted,
	}).Debug("Queued packet")
}

// Broadcast queues p for every live connection, skipping c unless
// includeSelf is set.
func (c *Connection) Broadcast(p packet.Packet, includeSelf bool) {
	for _, peer := range c.env.registry.Snapshot() {
		if peer == c && !includeSelf {
			continue
		}
		c.Enqueue(peer, p)
	}
}

type outboundQueue struct {
	recipient *Connection
	box       *mailbox.Mailbox[packet.Packet]
}

// Tick delivers at most one packet from each outbound mailbox. Packets for
// c itself go out on c's socket; packets for other connections are handed
// to their Dispatch with c as the sender. Drained mailboxes are dropped.
func (c *Connection) Tick() {
	c.mu.Lock()
	queues := make([]outboundQueue, 0, len(c.outbound))
	for recipient, box := range c.outbound {
		queues = append(queues, outboundQueue{recipient: recipient, box: box})
	}
	c.mu.Unlock()

	for _, q := range queues {
		if !q.recipient.Connected() {
			c.dropMailbox(q, true)
			continue
		}

		p, err := q.box.Dequeue()
		if err == nil {
			c.deliver(q.recipient, p)
		}
		c.dropMailbox(q, false)
	}
}

// dropMailbox removes q's mailbox when it is empty, or unconditionally when
// force is set. Enqueue inserts under c.mu, so the emptiness check cannot
// race with a new packet.
func (c *Connection) dropMailbox(q outboundQueue, force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outbound[q.recipient] != q.box {
		return
	}
	if force || q.box.Len() == 0 {
		delete(c.outbound, q.recipient)
	}
}

func (c *Connection) deliver(recipient *Connection, p packet.Packet) {
	if recipient == c {
		if err := c.sendClient(p, packet.Header{}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "deliver",
				"conn_id":  c.id,
				"variant":  packet.VariantOf(p).String(),
				"error":    err.Error(),
			}).Warn("Failed to send packet")

			if transport.IsConnectionClosed(err) {
				c.end()
			}
		}
		return
	}

	if err := recipient.Dispatch(c, p); err != nil {
		recipient.logDispatchError(err)
	}
}

func (c *Connection) sendClient(p packet.Packet, header packet.Header) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.env.transport.Send(c.id, c.conn, p, header)
}

// Close tears the connection down. It is safe to call more than once.
func (c *Connection) Close() {
	c.end()
}

func (c *Connection) end() {
	c.endOnce.Do(func() {
		c.connected.Store(false)
		c.conn.Close()

		c.mu.Lock()
		clear(c.outbound)
		c.mu.Unlock()

		c.env.registry.Remove(c.id)
		c.env.sessions.RemoveSession(c.id)

		logrus.WithFields(logrus.Fields{
			"function": "end",
			"conn_id":  c.id,
			"username": c.Username(),
		}).Info("Connection closed")
	})
}
