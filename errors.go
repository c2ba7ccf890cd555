package moonlapse

import "errors"

var (
	// ErrUnknownMessageType is returned when a packet carries no variant the
	// protocol knows. The packet is dropped and the connection stays open.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrNotSubscribed is returned when the current state registers no
	// handler for a known variant.
	ErrNotSubscribed = errors.New("handler not subscribed in this state")

	// ErrServerClosed is returned by Serve and Start after Close.
	ErrServerClosed = errors.New("server closed")
)
