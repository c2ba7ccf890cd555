package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/opd-ai/moonlapse/limits"
)

const (
	publicKeyPEMType  = "RSA PUBLIC KEY"
	privateKeyPEMType = "RSA PRIVATE KEY"
)

var (
	// ErrNoPrivateKey is returned for asymmetric decryption without a key pair.
	ErrNoPrivateKey = errors.New("no private key loaded")

	// ErrNoPublicKey is returned for asymmetric encryption without a public key.
	ErrNoPublicKey = errors.New("no public key loaded")

	// ErrInvalidPEM is returned when key material cannot be parsed.
	ErrInvalidPEM = errors.New("invalid PEM key material")
)

// GenerateRSAKey creates a fresh 2048-bit key pair.
func GenerateRSAKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, limits.RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return key, nil
}

// EncodePublicKeyPEM encodes pub as a PKCS#1 "RSA PUBLIC KEY" PEM block.
func EncodePublicKeyPEM(pub *rsa.PublicKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  publicKeyPEMType,
		Bytes: x509.MarshalPKCS1PublicKey(pub),
	})
}

// EncodePrivateKeyPEM encodes key as a PKCS#1 "RSA PRIVATE KEY" PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  privateKeyPEMType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// ParsePublicKeyPEM accepts a PKCS#1 or PKIX encoded RSA public key.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidPEM)
	}

	switch block.Type {
	case publicKeyPEMType:
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
		}
		return pub, nil
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPEM)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unexpected block type %q", ErrInvalidPEM, block.Type)
	}
}

// ParsePrivateKeyPEM decodes a PKCS#1 "RSA PRIVATE KEY" PEM block.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != privateKeyPEMType {
		return nil, fmt.Errorf("%w: expected %s block", ErrInvalidPEM, privateKeyPEMType)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	return key, nil
}

// EncryptRSA encrypts plaintext to pub with PKCS#1 v1.5 padding.
func EncryptRSA(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if pub == nil {
		return nil, ErrNoPublicKey
	}
	if err := limits.ValidatePayloadSize(plaintext, pub.Size()-11); err != nil {
		return nil, err
	}
	return rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
}

// DecryptRSA decrypts a PKCS#1 v1.5 ciphertext with key.
func DecryptRSA(key *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrNoPrivateKey
	}
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("RSA decrypt: %w", err)
	}
	return plaintext, nil
}
