// Package limits provides centralized frame size limits for the Moonlapse protocol.
// This ensures the transport, the codec and the crypto layer agree on bounds.
package limits

import (
	"errors"
	"fmt"
)

const (
	// LengthPrefixSize is the size of the big-endian payload length that starts every frame
	LengthPrefixSize = 4

	// FrameHeaderSize is the length prefix plus the one header flags byte
	FrameHeaderSize = LengthPrefixSize + 1

	// MaxFrameSize is the largest payload a single frame may carry (1MB)
	// This prevents memory exhaustion from a hostile length prefix
	MaxFrameSize = 1024 * 1024

	// RSAKeyBits is the modulus size of the server's asymmetric key pair
	RSAKeyBits = 2048

	// MaxAsymmetricPayload is the PKCS#1 v1.5 plaintext bound for RSAKeyBits
	// (modulus bytes minus 11 bytes of padding)
	MaxAsymmetricPayload = RSAKeyBits/8 - 11
)

var (
	// ErrFrameEmpty indicates a frame announced a zero-length payload
	ErrFrameEmpty = errors.New("empty frame")

	// ErrFrameTooLarge indicates a frame exceeds MaxFrameSize
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrPayloadTooLarge indicates a payload exceeds a caller-supplied bound
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ValidateFrameLength validates a decoded length prefix.
// Returns ErrFrameEmpty for zero and ErrFrameTooLarge above MaxFrameSize.
func ValidateFrameLength(length uint32) error {
	if length == 0 {
		return ErrFrameEmpty
	}
	if length > MaxFrameSize {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrFrameTooLarge, length, MaxFrameSize)
	}
	return nil
}

// ValidatePayloadSize validates an outbound payload against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidatePayloadSize(payload []byte, maxSize int) error {
	if len(payload) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPayloadTooLarge, len(payload), maxSize)
	}
	return nil
}
