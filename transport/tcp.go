package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnHandler serves one accepted connection. It owns the connection and is
// responsible for closing it.
type ConnHandler func(conn net.Conn)

// TCPListener accepts TCP connections and hands each to a ConnHandler on its
// own goroutine.
type TCPListener struct {
	listener   net.Listener
	listenAddr net.Addr
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
}

// NewTCPListener binds listenAddr. A bind failure is returned immediately.
func NewTCPListener(listenAddr string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TCPListener{
		listener:   listener,
		listenAddr: listener.Addr(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Addr returns the local address the listener is bound to.
func (l *TCPListener) Addr() net.Addr {
	return l.listenAddr
}

// Serve accepts connections until the listener is closed. It returns nil
// after Close and the accept error otherwise.
func (l *TCPListener) Serve(handler ConnHandler) error {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return nil
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"function": "Serve",
				"addr":     l.listenAddr.String(),
				"error":    err.Error(),
			}).Warn("Accept failed")

			// Back off briefly on transient errors such as fd exhaustion
			time.Sleep(10 * time.Millisecond)
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function": "Serve",
			"remote":   conn.RemoteAddr().String(),
		}).Debug("Accepted connection")

		// Handle the connection in a new goroutine
		go handler(conn)
	}
}

// Close stops accepting connections. Connections already handed to the
// handler are unaffected.
func (l *TCPListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.cancel()
		err = l.listener.Close()
	})
	return err
}
