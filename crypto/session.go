package crypto

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
)

// ErrNoSessionKey is returned for symmetric operations on a connection that
// has not completed the key exchange.
var ErrNoSessionKey = errors.New("no session key installed")

// SessionStore holds the server-wide RSA key pair and the AES session key of
// every connection, keyed by connection ID.
type SessionStore struct {
	mu        sync.RWMutex
	private   *rsa.PrivateKey
	publicPEM []byte
	keys      map[uint64][]byte
}

// NewSessionStore creates a store with no key pair and no sessions.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		keys: make(map[uint64][]byte),
	}
}

// GenerateKeyPair installs the server key pair. With a non-empty dir the pair
// is loaded from, or persisted to, PEM files in that directory; with an empty
// dir a fresh pair is generated in memory only.
func (s *SessionStore) GenerateKeyPair(dir string) error {
	var (
		key *rsa.PrivateKey
		err error
	)
	if dir == "" {
		key, err = GenerateRSAKey()
	} else {
		key, _, err = NewKeyFiles(dir).LoadOrGenerate()
	}
	if err != nil {
		return err
	}

	s.SetKeyPair(key)
	return nil
}

// SetKeyPair installs an existing key pair.
func (s *SessionStore) SetKeyPair(key *rsa.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.private = key
	s.publicPEM = EncodePublicKeyPEM(&key.PublicKey)
}

// PublicKeyPEM returns the server's public key in PEM form, or nil if no key
// pair has been installed.
func (s *SessionStore) PublicKeyPEM() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.publicPEM...)
}

// SetSessionKey installs the AES key for a connection, replacing any
// previous key.
func (s *SessionStore) SetSessionKey(id uint64, key []byte) error {
	if err := ValidateSessionKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	if old, ok := s.keys[id]; ok {
		clear(old)
	}
	s.keys[id] = append([]byte(nil), key...)
	s.mu.Unlock()

	newLogger("SetSessionKey").
		WithField("conn_id", id).
		WithFields(SecureFieldHash(key, "key")).
		Debug("Installed session key")
	return nil
}

// RemoveSession forgets and wipes the session key of a connection.
func (s *SessionStore) RemoveSession(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[id]; ok {
		clear(key)
		delete(s.keys, id)
	}
}

// HasSessionKey reports whether the connection completed the key exchange.
func (s *SessionStore) HasSessionKey(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[id]
	return ok
}

// Sessions returns the number of installed session keys.
func (s *SessionStore) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func (s *SessionStore) sessionKey(id uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: connection %d", ErrNoSessionKey, id)
	}
	return append([]byte(nil), key...), nil
}

// EncryptSymmetric encrypts plaintext under the connection's session key.
func (s *SessionStore) EncryptSymmetric(id uint64, plaintext []byte) ([]byte, error) {
	key, err := s.sessionKey(id)
	if err != nil {
		return nil, err
	}
	return EncryptCBC(key, plaintext)
}

// DecryptSymmetric decrypts ciphertext under the connection's session key.
func (s *SessionStore) DecryptSymmetric(id uint64, ciphertext []byte) ([]byte, error) {
	key, err := s.sessionKey(id)
	if err != nil {
		return nil, err
	}
	return DecryptCBC(key, ciphertext)
}

// EncryptAsymmetric encrypts plaintext to the server's own public key.
func (s *SessionStore) EncryptAsymmetric(_ uint64, plaintext []byte) ([]byte, error) {
	s.mu.RLock()
	key := s.private
	s.mu.RUnlock()

	if key == nil {
		return nil, ErrNoPublicKey
	}
	return EncryptRSA(&key.PublicKey, plaintext)
}

// DecryptAsymmetric decrypts ciphertext with the server's private key.
func (s *SessionStore) DecryptAsymmetric(_ uint64, ciphertext []byte) ([]byte, error) {
	s.mu.RLock()
	key := s.private
	s.mu.RUnlock()

	return DecryptRSA(key, ciphertext)
}
