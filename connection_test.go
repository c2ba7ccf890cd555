package moonlapse

import (
	"bytes"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/moonlapse/crypto"
	"github.com/opd-ai/moonlapse/packet"
	"github.com/opd-ai/moonlapse/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginMovesEntryToPlay(t *testing.T) {
	s := newTestServer(t, nil)
	c := attachPipe(t, s)
	chat := &packet.Chat{Name: "John", Message: "hi"}

	assert.Equal(t, StateEntry, c.State())
	assert.ErrorIs(t, c.Dispatch(c, chat), ErrNotSubscribed)

	require.NoError(t, c.Dispatch(c, &packet.Login{Username: "john", Password: "pw"}))
	assert.Equal(t, StatePlay, c.State())
	assert.Equal(t, "john", c.Username())
	assert.Equal(t, []packet.Packet{&packet.Ok{Message: "Login successful"}}, c.pending(c))

	assert.NoError(t, c.Dispatch(c, chat))
}

func TestPlayStateIsNotSubscribedToEntryPackets(t *testing.T) {
	s := newTestServer(t, nil)
	c := attachPipe(t, s)
	require.NoError(t, c.Dispatch(c, &packet.Login{Username: "john"}))

	for _, p := range []packet.Packet{
		&packet.Login{Username: "john"},
		&packet.AESKey{Key: make([]byte, 16)},
		&packet.Ok{Message: "hello"},
	} {
		err := c.Dispatch(c, p)
		assert.ErrorIs(t, err, ErrNotSubscribed, "variant %s", p.Variant())
		assert.Contains(t, err.Error(), "Play")
	}
	assert.Equal(t, StatePlay, c.State())
}

func TestDispatchUnknownVariant(t *testing.T) {
	s := newTestServer(t, nil)
	c := attachPipe(t, s)

	assert.ErrorIs(t, c.Dispatch(c, nil), ErrUnknownMessageType)
	assert.Equal(t, StateEntry, c.State())
}

func TestRegisterNotOfferedWithoutUserStore(t *testing.T) {
	s := newTestServer(t, nil)
	c := attachPipe(t, s)

	err := c.Dispatch(c, &packet.Register{Username: "john", Password: "pw"})
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestAESKeyInstallsSessionKey(t *testing.T) {
	s := newTestServer(t, nil)
	c := attachPipe(t, s)

	key := bytes.Repeat([]byte{0x42}, 16)
	require.NoError(t, c.Dispatch(c, &packet.AESKey{Key: key}))

	assert.True(t, s.Sessions().HasSessionKey(c.ID()))
	assert.Equal(t, []packet.Packet{&packet.Ok{Message: "AES key received"}}, c.pending(c))
	assert.Equal(t, StateEntry, c.State())

	err := c.Dispatch(c, &packet.AESKey{Key: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, crypto.ErrInvalidKeySize)
}

func TestChatBroadcastSkipsSender(t *testing.T) {
	s := newTestServer(t, nil)
	a, b, c := attachPipe(t, s), attachPipe(t, s), attachPipe(t, s)
	for _, conn := range []*Connection{a, b, c} {
		require.NoError(t, conn.Dispatch(conn, &packet.Login{Username: "user"}))
	}

	chat := &packet.Chat{Name: "John", Message: "hi"}
	require.NoError(t, a.Dispatch(a, chat))

	assert.Equal(t, []packet.Packet{chat}, a.pending(b))
	assert.Equal(t, []packet.Packet{chat}, a.pending(c))
	assert.NotContains(t, a.pending(a), chat)
}

func TestRelayedChatIsQueuedForOwnClient(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := attachPipe(t, s), attachPipe(t, s)
	require.NoError(t, b.Dispatch(b, &packet.Login{Username: "jane"}))

	chat := &packet.Chat{Name: "John", Message: "hi"}
	require.NoError(t, b.Dispatch(a, chat))

	assert.Equal(t, chat, b.pending(b)[1])
	assert.Empty(t, b.pending(a))
}

func TestBroadcastIncludeSelf(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := attachPipe(t, s), attachPipe(t, s)

	chat := &packet.Chat{Name: "server", Message: "restarting"}
	a.Broadcast(chat, true)

	assert.Equal(t, []packet.Packet{chat}, a.pending(a))
	assert.Equal(t, []packet.Packet{chat}, a.pending(b))
}

func TestTickDeliversOnePacketPerMailbox(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := attachPipe(t, s), attachPipe(t, s)
	require.NoError(t, b.Dispatch(b, &packet.Login{Username: "jane"}))
	b.Tick()
	require.Empty(t, b.pending(b))

	first := &packet.Chat{Name: "John", Message: "one"}
	second := &packet.Chat{Name: "John", Message: "two"}
	a.Enqueue(b, first)
	a.Enqueue(b, second)

	a.Tick()
	assert.Equal(t, []packet.Packet{second}, a.pending(b))
	assert.Equal(t, []packet.Packet{first}, b.pending(b))

	a.Tick()
	assert.Nil(t, a.pending(b), "drained mailbox is dropped")
	assert.Equal(t, []packet.Packet{first, second}, b.pending(b))

	b.Tick()
	b.Tick()
	assert.Nil(t, b.pending(b))
}

func TestMailboxKeepsLastPackets(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := attachPipe(t, s), attachPipe(t, s)

	var want []packet.Packet
	for i := 0; i < 15; i++ {
		p := &packet.Chat{Name: "John", Message: fmt.Sprint(i)}
		a.Enqueue(b, p)
		if i >= 5 {
			want = append(want, p)
		}
	}
	assert.Equal(t, want, a.pending(b))
}

func TestTickDropsMailboxOfClosedRecipient(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := attachPipe(t, s), attachPipe(t, s)
	require.Equal(t, 2, s.Registry().Len())

	a.Enqueue(b, &packet.Chat{Name: "John", Message: "hi"})
	b.Close()

	assert.False(t, b.Connected())
	assert.Equal(t, 1, s.Registry().Len())

	a.Tick()
	assert.Nil(t, a.pending(b))
}

func TestCloseRemovesSessionKey(t *testing.T) {
	s := newTestServer(t, nil)
	c := attachPipe(t, s)
	require.NoError(t, c.Dispatch(c, &packet.AESKey{Key: make([]byte, 16)}))
	require.True(t, s.Sessions().HasSessionKey(c.ID()))

	c.Close()
	c.Close()

	assert.False(t, s.Sessions().HasSessionKey(c.ID()))
	_, ok := s.Registry().Get(c.ID())
	assert.False(t, ok)
}

func TestDispatchTypedNilPacket(t *testing.T) {
	s := newTestServer(t, nil)
	c := attachPipe(t, s)

	for _, p := range []packet.Packet{(*packet.Login)(nil), (*packet.AESKey)(nil), (*packet.Register)(nil)} {
		assert.NotPanics(t, func() {
			assert.ErrorIs(t, c.Dispatch(c, p), ErrUnknownMessageType)
		})
	}
	assert.Equal(t, StateEntry, c.State())
	assert.Nil(t, c.pending(c))
}

func TestReadLoopSurvivesDecryptFailure(t *testing.T) {
	s := startTestServer(t, nil)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	keys, err := crypto.NewClientKeyring()
	require.NoError(t, err)
	ft := transport.NewFrameTransport(packet.ProtobufCodec{}, keys, nil)

	p, err := ft.Receive(0, conn)
	require.NoError(t, err)
	hello, ok := p.(*packet.PublicRSAKey)
	require.True(t, ok)
	require.NoError(t, keys.SetServerKeyPEM(hello.Key))

	garbage := bytes.Repeat([]byte{0xa5}, 48)
	symmetric := packet.Header{Symmetric: true}
	login := &packet.Login{Username: "john", Password: "123"}
	data, err := packet.ProtobufCodec{}.Marshal(login)
	require.NoError(t, err)

	// No session key yet, then a plaintext login, then the real key.
	require.NoError(t, transport.WriteFrame(conn, symmetric, garbage))
	require.NoError(t, transport.WriteFrame(conn, packet.Header{}, data))
	require.NoError(t, ft.Send(0, conn, &packet.AESKey{Key: keys.SessionKey()}, packet.Header{}))

	// Session key installed, ciphertext that fails authentication.
	require.NoError(t, transport.WriteFrame(conn, symmetric, garbage))
	require.NoError(t, ft.Send(0, conn, login, packet.Header{}))

	for _, want := range []string{"AES key received", "Login successful"} {
		p, err := ft.Receive(0, conn)
		require.NoError(t, err)
		assert.Equal(t, &packet.Ok{Message: want}, p)
	}

	conns := s.Registry().Snapshot()
	require.Len(t, conns, 1)
	assert.True(t, conns[0].Connected())
	assert.Equal(t, StatePlay, conns[0].State())
	assert.Equal(t, "john", conns[0].Username())
}
