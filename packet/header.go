package packet

import "errors"

const (
	flagAsymmetric byte = 0b1000_0000
	flagSymmetric  byte = 0b0100_0000
	reservedMask   byte = 0b0011_1111
)

// ErrInvalidHeader is returned for a header with both encryption flags set.
var ErrInvalidHeader = errors.New("header sets both asymmetric and symmetric encryption")

// Header is the flags byte that precedes every frame payload.
//
//	bit 7    payload encrypted under the server's asymmetric key
//	bit 6    payload encrypted under the connection's session key
//	bits 5-0 reserved, carried through unchanged
type Header struct {
	Asymmetric bool
	Symmetric  bool
	Reserved   uint8
}

// HeaderFromByte decodes a header flags byte.
func HeaderFromByte(b byte) Header {
	return Header{
		Asymmetric: b&flagAsymmetric != 0,
		Symmetric:  b&flagSymmetric != 0,
		Reserved:   b & reservedMask,
	}
}

// Byte encodes the header. Reserved bits above bit 5 are dropped.
func (h Header) Byte() byte {
	b := h.Reserved & reservedMask
	if h.Asymmetric {
		b |= flagAsymmetric
	}
	if h.Symmetric {
		b |= flagSymmetric
	}
	return b
}

// Validate rejects headers that request both encryption schemes at once.
func (h Header) Validate() error {
	if h.Asymmetric && h.Symmetric {
		return ErrInvalidHeader
	}
	return nil
}

// Encryption returns the scheme h requests. It must only be called on a
// validated header.
func (h Header) Encryption() Encryption {
	switch {
	case h.Asymmetric:
		return EncryptionAsymmetric
	case h.Symmetric:
		return EncryptionSymmetric
	default:
		return EncryptionNone
	}
}
