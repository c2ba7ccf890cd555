package moonlapse

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/moonlapse/crypto"
	"github.com/opd-ai/moonlapse/mailbox"
	"github.com/opd-ai/moonlapse/packet"
	"github.com/opd-ai/moonlapse/transport"
	"github.com/sirupsen/logrus"
)

// Options configures a Server.
type Options struct {
	// ListenAddr is the TCP address to accept clients on.
	ListenAddr string
	// TickRate is the number of mailbox flushes per second.
	TickRate int
	// MailboxCapacity bounds every (sender, recipient) mailbox.
	MailboxCapacity int
	// KeysDir holds public.pem and private.pem. Empty keeps the key pair
	// in memory only.
	KeysDir string
	// PrivateKey, when set, is used instead of loading from KeysDir.
	PrivateKey *rsa.PrivateKey
	// Users enables credential checks and registration. Nil accepts
	// every login.
	Users UserStore
	// Codec serializes packets. Nil selects packet.ProtobufCodec.
	Codec packet.Codec
}

// NewOptions returns the default server options.
func NewOptions() *Options {
	return &Options{
		ListenAddr:      ":42523",
		TickRate:        5,
		MailboxCapacity: mailbox.DefaultCapacity,
		KeysDir:         "Keys",
	}
}

// Server accepts clients and runs the tick loop that flushes every
// connection's mailboxes.
type Server struct {
	options   *Options
	sessions  *crypto.SessionStore
	transport *transport.FrameTransport
	registry  *Registry
	env       *connEnv

	listener *transport.TCPListener
	nextID   atomic.Uint64
	cycles   atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewServer creates a server. Nothing is bound until Listen.
func NewServer(options *Options) (*Server, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.TickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", options.TickRate)
	}
	if options.MailboxCapacity <= 0 {
		return nil, fmt.Errorf("mailbox capacity must be positive, got %d", options.MailboxCapacity)
	}

	codec := options.Codec
	if codec == nil {
		codec = packet.ProtobufCodec{}
	}

	sessions := crypto.NewSessionStore()
	ft := transport.NewFrameTransport(codec, sessions, packet.NewPolicyCache())
	registry := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		options:   options,
		sessions:  sessions,
		transport: ft,
		registry:  registry,
		env: &connEnv{
			transport: ft,
			sessions:  sessions,
			registry:  registry,
			users:     options.Users,
			capacity:  options.MailboxCapacity,
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Listen installs the key pair and binds the listen address.
func (s *Server) Listen() error {
	if s.options.PrivateKey != nil {
		s.sessions.SetKeyPair(s.options.PrivateKey)
	} else if err := s.sessions.GenerateKeyPair(s.options.KeysDir); err != nil {
		return fmt.Errorf("failed to prepare key pair: %w", err)
	}

	listener, err := transport.NewTCPListener(s.options.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = listener

	logrus.WithFields(logrus.Fields{
		"function":  "Listen",
		"addr":      listener.Addr().String(),
		"tick_rate": s.options.TickRate,
	}).Info("Server listening")
	return nil
}

// Serve runs the tick loop and accepts clients until Close. It always
// returns a non-nil error; ErrServerClosed after Close.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}

	s.wg.Add(1)
	go s.tickLoop()

	err := s.listener.Serve(s.handleConn)
	if s.ctx.Err() != nil {
		return ErrServerClosed
	}
	if err == nil {
		err = ErrServerClosed
	}
	return err
}

// Start is Listen followed by Serve.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Registry returns the set of live connections.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Sessions returns the server's crypto session store.
func (s *Server) Sessions() *crypto.SessionStore {
	return s.sessions
}

func (s *Server) handleConn(conn net.Conn) {
	if s.ctx.Err() != nil {
		conn.Close()
		return
	}
	s.attach(conn).Start()
}

// attach wraps conn in a new Entry-state connection and registers it. A
// connection attached while Close is running is closed straight away so
// it cannot outlive the server.
func (s *Server) attach(conn net.Conn) *Connection {
	c := newConnection(s.nextID.Add(1), conn, s.env)
	s.registry.Add(c)
	if s.ctx.Err() != nil {
		c.Close()
	}
	return c
}

// Tick runs one cycle: every live connection ticks concurrently and Tick
// returns once all of them have finished.
func (s *Server) Tick() {
	s.cycles.Add(1)
	conns := s.registry.Snapshot()

	var wg sync.WaitGroup
	wg.Add(len(conns))
	for _, c := range conns {
		go func(c *Connection) {
			defer wg.Done()
			c.Tick()
		}(c)
	}
	wg.Wait()
}

func (s *Server) tickLoop() {
	defer s.wg.Done()

	period := time.Second / time.Duration(s.options.TickRate)
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		start := time.Now()
		s.Tick()
		elapsed := time.Since(start)

		if elapsed > period {
			logrus.WithFields(logrus.Fields{
				"function":    "tickLoop",
				"cycle":       s.cycles.Load(),
				"elapsed":     elapsed.String(),
				"period":      period.String(),
				"connections": s.registry.Len(),
			}).Warn("Tick exceeded its time budget")

			if s.ctx.Err() != nil {
				return
			}
			continue
		}

		timer.Reset(period - elapsed)
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// Close stops accepting, stops the tick loop and closes every live
// connection.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// cancel before the snapshot: attach re-checks ctx after Add.
		s.cancel()
		if s.listener != nil {
			err = s.listener.Close()
		}
		for _, c := range s.registry.Snapshot() {
			c.Close()
		}
		s.wg.Wait()

		logrus.WithFields(logrus.Fields{
			"function": "Close",
		}).Info("Server closed")
	})
	return err
}
