package transport

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed reports that the underlying stream can no longer carry frames.
var ErrConnectionClosed = errors.New("connection closed")

// ErrEncryptionRequired reports a packet that arrived without the encryption
// its variant mandates. The frame is dropped; the stream stays usable.
var ErrEncryptionRequired = errors.New("packet arrived without its mandated encryption")

// IsConnectionClosed reports whether err ends the connection it came from.
func IsConnectionClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}

func closedError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrConnectionClosed, op, err)
}
