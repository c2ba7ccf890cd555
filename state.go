package moonlapse

import (
	"errors"
	"fmt"

	"github.com/opd-ai/moonlapse/packet"
	"github.com/opd-ai/moonlapse/userstore"
	"github.com/sirupsen/logrus"
)

// StateKind identifies a connection's protocol state.
type StateKind uint8

const (
	// StateEntry is the initial state: key exchange, registration and login.
	StateEntry StateKind = iota
	// StatePlay is entered on a successful login and never left.
	StatePlay
)

func (k StateKind) String() string {
	switch k {
	case StateEntry:
		return "Entry"
	case StatePlay:
		return "Play"
	default:
		return fmt.Sprintf("StateKind(%d)", uint8(k))
	}
}

// handlerFunc handles one packet addressed to c. sender is c itself for
// packets read from c's own socket, or the relaying connection for packets
// delivered by another connection's tick.
type handlerFunc func(c, sender *Connection, p packet.Packet) error

// protocolState is a fixed table of variant handlers. States are built once
// per transition and never mutated afterwards.
type protocolState struct {
	kind     StateKind
	handlers map[packet.Variant]handlerFunc
}

func (s *protocolState) handler(v packet.Variant) (handlerFunc, bool) {
	h, ok := s.handlers[v]
	return h, ok
}

// newEntryState builds the Entry table. With a nil store every login succeeds
// and registration is not offered.
func newEntryState(users UserStore) *protocolState {
	s := &protocolState{
		kind: StateEntry,
		handlers: map[packet.Variant]handlerFunc{
			packet.VariantLogin:  loginHandler(users),
			packet.VariantAESKey: handleAESKey,
		},
	}
	if users != nil {
		s.handlers[packet.VariantRegister] = registerHandler(users)
	}
	return s
}

func newPlayState() *protocolState {
	return &protocolState{
		kind: StatePlay,
		handlers: map[packet.Variant]handlerFunc{
			packet.VariantChat: handleChat,
		},
	}
}

func loginHandler(users UserStore) handlerFunc {
	return func(c, _ *Connection, p packet.Packet) error {
		login := p.(*packet.Login)

		if users != nil {
			user, err := users.FindByUsername(login.Username)
			if err != nil || !users.VerifyCredentials(user, login.Password) {
				logrus.WithFields(logrus.Fields{
					"function": "loginHandler",
					"conn_id":  c.id,
					"username": login.Username,
				}).Warn("Login rejected")

				c.Enqueue(c, &packet.Deny{Reason: "Incorrect username or password"})
				return nil
			}

			if err := users.RecordLogin(user); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "loginHandler",
					"conn_id":  c.id,
					"username": login.Username,
					"error":    err.Error(),
				}).Warn("Failed to record login")
			}
		}

		c.login(login.Username)
		c.Enqueue(c, &packet.Ok{Message: "Login successful"})
		return nil
	}
}

func registerHandler(users UserStore) handlerFunc {
	return func(c, _ *Connection, p packet.Packet) error {
		reg := p.(*packet.Register)

		if _, err := users.Create(reg.Username, reg.Password); err != nil {
			reason := "Registration failed"
			if errors.Is(err, userstore.ErrUserExists) {
				reason = "Username already taken"
			}

			logrus.WithFields(logrus.Fields{
				"function": "registerHandler",
				"conn_id":  c.id,
				"username": reg.Username,
				"error":    err.Error(),
			}).Warn("Registration rejected")

			c.Enqueue(c, &packet.Deny{Reason: reason})
			return nil
		}

		c.Enqueue(c, &packet.Ok{Message: "Registration successful"})
		return nil
	}
}

func handleAESKey(c, _ *Connection, p packet.Packet) error {
	key := p.(*packet.AESKey)
	if err := c.env.sessions.SetSessionKey(c.id, key.Key); err != nil {
		return fmt.Errorf("failed to install session key: %w", err)
	}

	c.Enqueue(c, &packet.Ok{Message: "AES key received"})
	return nil
}

// handleChat broadcasts chat typed by c's own client and forwards chat
// relayed by other connections to c's client.
func handleChat(c, sender *Connection, p packet.Packet) error {
	if sender == c {
		c.Broadcast(p, false)
		return nil
	}
	c.Enqueue(c, p)
	return nil
}
