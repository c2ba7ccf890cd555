package crypto

import (
	"crypto/rsa"
	"sync"
)

// ClientKeyring is the client's half of the key exchange: the server's public
// key and the client's own session key. Connection IDs are ignored since a
// client only ever talks to one server.
type ClientKeyring struct {
	mu         sync.RWMutex
	serverKey  *rsa.PublicKey
	sessionKey []byte
}

// NewClientKeyring creates a keyring with a fresh random session key.
func NewClientKeyring() (*ClientKeyring, error) {
	key, err := GenerateSessionKey()
	if err != nil {
		return nil, err
	}
	return &ClientKeyring{sessionKey: key}, nil
}

// SetServerKeyPEM installs the server's public key.
func (k *ClientKeyring) SetServerKeyPEM(data []byte) error {
	pub, err := ParsePublicKeyPEM(data)
	if err != nil {
		return err
	}

	k.mu.Lock()
	k.serverKey = pub
	k.mu.Unlock()
	return nil
}

// SessionKey returns a copy of the client's session key.
func (k *ClientKeyring) SessionKey() []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]byte(nil), k.sessionKey...)
}

// EncryptSymmetric encrypts plaintext under the session key.
func (k *ClientKeyring) EncryptSymmetric(_ uint64, plaintext []byte) ([]byte, error) {
	return EncryptCBC(k.SessionKey(), plaintext)
}

// DecryptSymmetric decrypts ciphertext under the session key.
func (k *ClientKeyring) DecryptSymmetric(_ uint64, ciphertext []byte) ([]byte, error) {
	return DecryptCBC(k.SessionKey(), ciphertext)
}

// EncryptAsymmetric encrypts plaintext to the server's public key.
func (k *ClientKeyring) EncryptAsymmetric(_ uint64, plaintext []byte) ([]byte, error) {
	k.mu.RLock()
	pub := k.serverKey
	k.mu.RUnlock()

	return EncryptRSA(pub, plaintext)
}

// DecryptAsymmetric always fails: the client holds no private key.
func (k *ClientKeyring) DecryptAsymmetric(_ uint64, _ []byte) ([]byte, error) {
	return nil, ErrNoPrivateKey
}
