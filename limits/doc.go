// Package limits provides the size bounds enforced on the Moonlapse wire.
//
// # Frame Size Hierarchy
//
//   - FrameHeaderSize (5 bytes): the 4-byte big-endian length prefix plus the
//     1-byte header flags that precede every payload.
//
//   - MaxFrameSize (1MB): the largest payload a length prefix may announce.
//     A prefix above this bound cannot be honoured without allocating
//     attacker-controlled amounts of memory, and the stream cannot be
//     resynchronised after skipping it, so readers treat it as a closed
//     connection.
//
//   - MaxAsymmetricPayload (245 bytes): the largest plaintext that fits in one
//     PKCS#1 v1.5 block under a 2048-bit RSA key. Only the key exchange
//     travels asymmetrically, so this is checked by senders before encrypting.
//
// # Validation Functions
//
//	if err := limits.ValidateFrameLength(length); err != nil {
//	    // ErrFrameEmpty or ErrFrameTooLarge
//	}
package limits
