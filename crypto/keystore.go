package crypto

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// PublicKeyFile is the file name of the persisted public key
	PublicKeyFile = "public.pem"
	// PrivateKeyFile is the file name of the persisted private key
	PrivateKeyFile = "private.pem"
)

// KeyFiles reads and writes the server key pair as PEM files in one directory.
type KeyFiles struct {
	dir string
}

// NewKeyFiles creates a key file store rooted at dir.
func NewKeyFiles(dir string) *KeyFiles {
	return &KeyFiles{dir: dir}
}

// LoadOrGenerate returns the persisted key pair, generating and saving a new
// one when no private key file exists yet.
func (kf *KeyFiles) LoadOrGenerate() (*rsa.PrivateKey, bool, error) {
	logger := newLogger("LoadOrGenerate").WithField("dir", kf.dir)

	key, err := kf.load()
	if err == nil {
		logger.Debug("Loaded existing RSA key pair")
		return key, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err, "load").Error("Existing RSA key pair is unreadable")
		return nil, false, err
	}

	key, err = GenerateRSAKey()
	if err != nil {
		return nil, false, err
	}
	if err := kf.save(key); err != nil {
		logger.WithError(err, "save").Error("Failed to persist RSA key pair")
		return nil, false, err
	}

	logger.Info("Generated new RSA key pair")
	return key, true, nil
}

func (kf *KeyFiles) load() (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(filepath.Join(kf.dir, PrivateKeyFile))
	if err != nil {
		return nil, err
	}
	return ParsePrivateKeyPEM(data)
}

func (kf *KeyFiles) save(key *rsa.PrivateKey) error {
	if err := os.MkdirAll(kf.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	// Public key first: a crash between the two writes leaves no private key,
	// so the next start regenerates both.
	if err := writeFileAtomic(filepath.Join(kf.dir, PublicKeyFile), EncodePublicKeyPEM(&key.PublicKey), 0o644); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(kf.dir, PrivateKeyFile), EncodePrivateKeyPEM(key), 0o600)
}

// writeFileAtomic writes data using a temporary file and rename.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpFile := path + ".tmp"

	if err := os.WriteFile(tmpFile, data, perm); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		// Clean up temporary file on error
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
