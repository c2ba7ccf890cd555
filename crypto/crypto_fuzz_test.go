package crypto

import (
	"bytes"
	"testing"
)

// FuzzEncryptDecryptCBC checks that any plaintext survives a round trip
func FuzzEncryptDecryptCBC(f *testing.F) {
	f.Add([]byte("Hello, World!"))
	f.Add([]byte(""))
	f.Add(make([]byte, 100))

	key := bytes.Repeat([]byte{0x11}, 16)

	f.Fuzz(func(t *testing.T, plaintext []byte) {
		if len(plaintext) > 10000 {
			return
		}

		ciphertext, err := EncryptCBC(key, plaintext)
		if err != nil {
			t.Fatalf("EncryptCBC failed: %v", err)
		}

		decrypted, err := DecryptCBC(key, ciphertext)
		if err != nil {
			t.Fatalf("DecryptCBC failed: %v", err)
		}

		if !bytes.Equal(plaintext, decrypted) {
			t.Errorf("Decryption mismatch: got %x, want %x", decrypted, plaintext)
		}
	})
}

// FuzzDecryptCBC feeds arbitrary ciphertext to the decrypter
func FuzzDecryptCBC(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, 16))
	f.Add(make([]byte, 32))
	f.Add(make([]byte, 33))

	key := bytes.Repeat([]byte{0x22}, 16)

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic; errors are expected for almost every input
		DecryptCBC(key, data)
	})
}

// FuzzPKCS7Unpad checks the unpadder never returns more bytes than it was given
func FuzzPKCS7Unpad(f *testing.F) {
	f.Add([]byte{})
	f.Add(bytes.Repeat([]byte{16}, 16))
	f.Add([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		out, err := pkcs7Unpad(data, 16)
		if err == nil && len(out) >= len(data) {
			t.Errorf("unpad returned %d bytes from %d", len(out), len(data))
		}
	})
}
