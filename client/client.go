// Package client is a Go client for the Moonlapse protocol. It performs the
// RSA to AES key exchange and then exchanges packets with the server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/moonlapse/crypto"
	"github.com/opd-ai/moonlapse/packet"
	"github.com/opd-ai/moonlapse/transport"
	"github.com/sirupsen/logrus"
)

// ErrUnexpectedPacket is returned when the server opens with something other
// than its public key.
var ErrUnexpectedPacket = errors.New("unexpected packet")

// Client is one connection to a Moonlapse server. Sends are safe for
// concurrent use; Receive must be called from a single goroutine.
type Client struct {
	conn      net.Conn
	keys      *crypto.ClientKeyring
	transport *transport.FrameTransport

	writeMu sync.Mutex
}

// Dial connects to addr and completes the key exchange.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c, err := New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if err := c.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})

	return c, nil
}

// New wraps an established connection. Call Handshake before sending
// anything that needs encryption.
func New(conn net.Conn) (*Client, error) {
	keys, err := crypto.NewClientKeyring()
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:      conn,
		keys:      keys,
		transport: transport.NewFrameTransport(packet.ProtobufCodec{}, keys, nil),
	}, nil
}

// Handshake waits for the server's public key and answers with this
// client's session key, encrypted under it. The server acknowledges the key
// on a later tick; that Ok arrives through Receive.
func (c *Client) Handshake() error {
	p, err := c.Receive()
	if err != nil {
		return fmt.Errorf("failed to receive server key: %w", err)
	}

	hello, ok := p.(*packet.PublicRSAKey)
	if !ok {
		return fmt.Errorf("%w: %s before public key", ErrUnexpectedPacket, p.Variant())
	}
	if err := c.keys.SetServerKeyPEM(hello.Key); err != nil {
		return fmt.Errorf("failed to parse server key: %w", err)
	}

	if err := c.Send(&packet.AESKey{Key: c.keys.SessionKey()}); err != nil {
		return fmt.Errorf("failed to send session key: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Handshake",
		"server":   c.conn.RemoteAddr().String(),
	}).WithFields(crypto.SecureFieldHash(c.keys.SessionKey(), "session_key")).Debug("Session key sent")
	return nil
}

// Send writes p. Variants with an encryption mandate are encrypted
// accordingly; everything else goes out in the clear.
func (c *Client) Send(p packet.Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.Send(0, c.conn, p, packet.Header{})
}

// Login sends credentials.
func (c *Client) Login(username, password string) error {
	return c.Send(&packet.Login{Username: username, Password: password})
}

// Register asks the server to create an account.
func (c *Client) Register(username, password string) error {
	return c.Send(&packet.Register{Username: username, Password: password})
}

// SendChat sends a chat line to be broadcast to the other players.
func (c *Client) SendChat(name, message string) error {
	return c.Send(&packet.Chat{Name: name, Message: message})
}

// Receive blocks until the next packet arrives.
func (c *Client) Receive() (packet.Packet, error) {
	return c.transport.Receive(0, c.conn)
}

// SetReadDeadline bounds the next Receive calls.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
