// Package crypto implements the Moonlapse key exchange and payload encryption.
//
// # Core Types
//
//   - [SessionStore]: the server side. Holds one RSA key pair for the whole
//     process and one AES session key per connection.
//   - [ClientKeyring]: the client side. Holds the server's public key and the
//     client's own session key.
//
// Both satisfy the method set the frame transport needs, so the same framing
// code runs on either end of a connection.
//
// # Handshake
//
// The server sends its PEM encoded public key in the clear. The client picks a
// random AES key, encrypts it to that public key with PKCS#1 v1.5 padding and
// sends it back. From then on both ends use the AES key:
//
//	store := crypto.NewSessionStore()
//	if err := store.GenerateKeyPair("Keys"); err != nil {
//	    log.Fatal(err)
//	}
//	key, err := store.DecryptAsymmetric(connID, ciphertext)
//	if err != nil {
//	    return err
//	}
//	err = store.SetSessionKey(connID, key)
//
// # Symmetric Scheme
//
// AES in CBC mode with PKCS#7 padding. Every call to EncryptCBC draws a fresh
// random IV and prepends it to the ciphertext:
//
//	[IV:16][ciphertext:16n]
//
// DecryptCBC splits the first block off as the IV.
//
// # Key Material on Disk
//
// GenerateKeyPair persists the pair as PKCS#1 PEM files, public.pem and
// private.pem, and reuses them on the next start so clients that pinned the
// public key keep working across restarts.
//
// # Thread Safety
//
// SessionStore is safe for concurrent use. ClientKeyring is safe for
// concurrent use once its keys are installed.
package crypto
