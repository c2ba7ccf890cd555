// Package transport moves Moonlapse packets over byte streams.
//
// # Frame Format
//
// Every packet travels as one frame:
//
//	[length:4 big-endian][header:1][payload:length]
//
// length counts payload bytes only. The header is a packet.Header flags
// byte; the payload is the codec-encoded packet, encrypted when the header
// says so. A zero length prefix is never valid and is treated like a closed
// stream.
//
// # Sending and Receiving
//
// FrameTransport applies the codec, the encryption policy and a Keyring:
//
//	ft := transport.NewFrameTransport(packet.ProtobufCodec{}, store, packet.NewPolicyCache())
//	err := ft.Send(connID, conn, &packet.Chat{Name: "John", Message: "hi"}, packet.Header{})
//	p, err := ft.Receive(connID, conn)
//
// Variants with a mandated encryption scheme are always sent with it,
// whatever header the caller passes.
//
// # Errors
//
// Any failure that leaves the stream unusable (short read, EOF, oversize or
// empty frame, failed write) is reported as ErrConnectionClosed. Every other
// error concerns a single frame; the stream is still aligned on the next
// frame boundary and the caller may keep reading.
//
// # Listening
//
// TCPListener accepts connections and hands each one to a handler on its own
// goroutine until it is closed.
package transport
