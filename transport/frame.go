package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/opd-ai/moonlapse/limits"
	"github.com/opd-ai/moonlapse/packet"
	"github.com/sirupsen/logrus"
)

// Keyring encrypts and decrypts frame payloads for a connection.
// crypto.SessionStore and crypto.ClientKeyring both satisfy it.
type Keyring interface {
	EncryptSymmetric(id uint64, plaintext []byte) ([]byte, error)
	DecryptSymmetric(id uint64, ciphertext []byte) ([]byte, error)
	EncryptAsymmetric(id uint64, plaintext []byte) ([]byte, error)
	DecryptAsymmetric(id uint64, ciphertext []byte) ([]byte, error)
}

// FrameTransport reads and writes whole frames.
// It holds no per-stream state and is safe for concurrent use.
type FrameTransport struct {
	codec  packet.Codec
	keys   Keyring
	policy *packet.PolicyCache
}

// NewFrameTransport creates a frame transport.
func NewFrameTransport(codec packet.Codec, keys Keyring, policy *packet.PolicyCache) *FrameTransport {
	if policy == nil {
		policy = packet.NewPolicyCache()
	}
	return &FrameTransport{
		codec:  codec,
		keys:   keys,
		policy: policy,
	}
}

// Send writes p to w as a single frame. The header is resolved against the
// encryption policy before use, so mandated variants are always encrypted.
func (ft *FrameTransport) Send(id uint64, w io.Writer, p packet.Packet, header packet.Header) error {
	variant := packet.VariantOf(p)
	header = ft.policy.Apply(header, variant)
	if err := header.Validate(); err != nil {
		return err
	}

	data, err := ft.codec.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", variant, err)
	}

	payload, err := ft.seal(id, header, data)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", variant, err)
	}

	if err := WriteFrame(w, header, payload); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Send",
		"conn_id":  id,
		"variant":  variant.String(),
		"header":   fmt.Sprintf("%08b", header.Byte()),
		"size":     len(payload),
	}).Debug("Sent frame")
	return nil
}

// Receive reads one frame from r and decodes the packet it carries.
func (ft *FrameTransport) Receive(id uint64, r io.Reader) (packet.Packet, error) {
	header, payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}

	if err := header.Validate(); err != nil {
		return nil, err
	}

	data, err := ft.open(id, header, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt frame: %w", err)
	}

	p, err := ft.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize frame: %w", err)
	}

	if mandated := ft.policy.Mandated(p.Variant()); mandated != packet.EncryptionNone && mandated != header.Encryption() {
		return nil, fmt.Errorf("%w: %s sent %s, requires %s",
			ErrEncryptionRequired, p.Variant(), header.Encryption(), mandated)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Receive",
		"conn_id":  id,
		"variant":  p.Variant().String(),
		"header":   fmt.Sprintf("%08b", header.Byte()),
		"size":     len(payload),
	}).Debug("Received frame")
	return p, nil
}

func (ft *FrameTransport) seal(id uint64, header packet.Header, data []byte) ([]byte, error) {
	switch header.Encryption() {
	case packet.EncryptionSymmetric:
		return ft.keys.EncryptSymmetric(id, data)
	case packet.EncryptionAsymmetric:
		if err := limits.ValidatePayloadSize(data, limits.MaxAsymmetricPayload); err != nil {
			return nil, err
		}
		return ft.keys.EncryptAsymmetric(id, data)
	default:
		return data, nil
	}
}

func (ft *FrameTransport) open(id uint64, header packet.Header, payload []byte) ([]byte, error) {
	switch header.Encryption() {
	case packet.EncryptionAsymmetric:
		return ft.keys.DecryptAsymmetric(id, payload)
	case packet.EncryptionSymmetric:
		return ft.keys.DecryptSymmetric(id, payload)
	default:
		return payload, nil
	}
}

// WriteFrame writes the length prefix, header and payload in one call.
func WriteFrame(w io.Writer, header packet.Header, payload []byte) error {
	if len(payload) > limits.MaxFrameSize {
		return fmt.Errorf("%w: payload %d bytes", limits.ErrFrameTooLarge, len(payload))
	}

	frame := make([]byte, limits.FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:limits.LengthPrefixSize], uint32(len(payload)))
	frame[limits.LengthPrefixSize] = header.Byte()
	copy(frame[limits.FrameHeaderSize:], payload)

	if _, err := w.Write(frame); err != nil {
		return closedError("write", err)
	}
	return nil
}

// ReadFrame reads one raw frame. Every error it returns wraps ErrConnectionClosed.
func ReadFrame(r io.Reader) (packet.Header, []byte, error) {
	var prefix [limits.LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return packet.Header{}, nil, closedError("read length", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if err := limits.ValidateFrameLength(length); err != nil {
		return packet.Header{}, nil, closedError("frame length", err)
	}

	buf := make([]byte, 1+int(length))
	if _, err := io.ReadFull(r, buf); err != nil {
		return packet.Header{}, nil, closedError("read payload", err)
	}

	return packet.HeaderFromByte(buf[0]), buf[1:], nil
}
