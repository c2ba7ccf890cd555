package moonlapse

import (
	"context"
	"crypto/rsa"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/moonlapse/client"
	"github.com/opd-ai/moonlapse/crypto"
	"github.com/opd-ai/moonlapse/packet"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func sharedKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := crypto.GenerateRSAKey()
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

func newTestServer(t *testing.T, users UserStore) *Server {
	t.Helper()

	options := NewOptions()
	options.ListenAddr = "127.0.0.1:0"
	options.TickRate = 50
	options.PrivateKey = sharedKey(t)
	options.Users = users

	s, err := NewServer(options)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// startTestServer runs a server on a loopback port.
func startTestServer(t *testing.T, users UserStore) *Server {
	t.Helper()

	s := newTestServer(t, users)
	require.NoError(t, s.Listen())
	go s.Serve()
	return s
}

// attachPipe registers a connection over net.Pipe whose client end
// discards everything written to it.
func attachPipe(t *testing.T, s *Server) *Connection {
	t.Helper()

	serverEnd, clientEnd := net.Pipe()
	go io.Copy(io.Discard, clientEnd)
	t.Cleanup(func() { clientEnd.Close() })

	c := s.attach(serverEnd)
	t.Cleanup(c.Close)
	return c
}

// pending returns the packets c has queued for recipient, oldest first.
func (c *Connection) pending(recipient *Connection) []packet.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()

	box, ok := c.outbound[recipient]
	if !ok {
		return nil
	}
	return box.Items()
}

func dialClient(t *testing.T, s *Server) *client.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	expectOk(t, c, "AES key received")
	return c
}

func loginClient(t *testing.T, s *Server, username string) *client.Client {
	t.Helper()

	c := dialClient(t, s)
	require.NoError(t, c.Login(username, "password123"))
	expectOk(t, c, "Login successful")
	return c
}

func expectOk(t *testing.T, c *client.Client, message string) {
	t.Helper()

	p, err := c.Receive()
	require.NoError(t, err)
	require.Equal(t, &packet.Ok{Message: message}, p)
}

// expectSilence asserts that nothing arrives on c for a few ticks.
func expectSilence(t *testing.T, c *client.Client) {
	t.Helper()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	p, err := c.Receive()
	require.Error(t, err, "unexpected packet %v", p)
}
