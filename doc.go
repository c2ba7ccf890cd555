// Package moonlapse implements the Moonlapse game server core: a stateful
// TCP protocol with an RSA to AES key exchange, a per-connection state
// machine and a fixed-rate tick that drains bounded outbound mailboxes.
//
// Every accepted socket becomes a Connection in the Entry state. The server
// first sends its public RSA key; the client answers with an AES session key
// encrypted under that key and then logs in, which moves the connection to
// the Play state. Chat sent by a Play connection is broadcast to every other
// live connection through their mailboxes, one message per mailbox per tick.
//
// Example:
//
//	options := moonlapse.NewOptions()
//	options.ListenAddr = ":42523"
//
//	server, err := moonlapse.NewServer(options)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer server.Close()
//
//	if err := server.Start(); err != nil && !errors.Is(err, moonlapse.ErrServerClosed) {
//		log.Fatal(err)
//	}
package moonlapse
