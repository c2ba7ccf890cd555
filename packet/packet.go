package packet

import "fmt"

// Variant identifies one arm of the Packet union. Values match the protobuf
// field numbers of the oneof.
type Variant uint8

const (
	// VariantNone means no recognised arm was populated.
	VariantNone Variant = iota
	VariantOk
	VariantDeny
	VariantLogin
	VariantRegister
	VariantChat
	VariantPublicRSAKey
	VariantAESKey
)

var variantNames = [...]string{
	VariantNone:         "none",
	VariantOk:           "ok",
	VariantDeny:         "deny",
	VariantLogin:        "login",
	VariantRegister:     "register",
	VariantChat:         "chat",
	VariantPublicRSAKey: "public_rsa_key",
	VariantAESKey:       "aes_key",
}

// String returns the schema name of the variant.
func (v Variant) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// Known reports whether v is one of the compiled-in variants.
func (v Variant) Known() bool {
	return v > VariantNone && int(v) < len(variantNames)
}

// VariantByName returns the variant with the given schema name.
func VariantByName(name string) (Variant, bool) {
	for v, n := range variantNames {
		if n == name && Variant(v) != VariantNone {
			return Variant(v), true
		}
	}
	return VariantNone, false
}

// Packet is the sealed union of all Moonlapse messages.
type Packet interface {
	Variant() Variant
	isPacket()
}

// Ok acknowledges a request.
type Ok struct {
	Message string
}

// Deny refuses a request.
type Deny struct {
	Reason string
}

// Login carries credentials for an existing account.
type Login struct {
	Username string
	Password string
}

// Register asks for a new account.
type Register struct {
	Username string
	Password string
}

// Chat is a line of chat text attributed to Name.
type Chat struct {
	Name    string
	Message string
}

// PublicRSAKey carries the server's PEM encoded public key.
type PublicRSAKey struct {
	Key []byte
}

// AESKey carries the client's symmetric session key.
type AESKey struct {
	Key []byte
}

func (*Ok) Variant() Variant           { return VariantOk }
func (*Deny) Variant() Variant         { return VariantDeny }
func (*Login) Variant() Variant        { return VariantLogin }
func (*Register) Variant() Variant     { return VariantRegister }
func (*Chat) Variant() Variant         { return VariantChat }
func (*PublicRSAKey) Variant() Variant { return VariantPublicRSAKey }
func (*AESKey) Variant() Variant       { return VariantAESKey }

func (*Ok) isPacket()           {}
func (*Deny) isPacket()         {}
func (*Login) isPacket()        {}
func (*Register) isPacket()     {}
func (*Chat) isPacket()         {}
func (*PublicRSAKey) isPacket() {}
func (*AESKey) isPacket()       {}

// VariantOf returns p's variant, or VariantNone for a nil packet, including
// a typed nil such as (*Login)(nil).
func VariantOf(p Packet) Variant {
	if isNil(p) {
		return VariantNone
	}
	return p.Variant()
}

func isNil(p Packet) bool {
	switch m := p.(type) {
	case nil:
		return true
	case *Ok:
		return m == nil
	case *Deny:
		return m == nil
	case *Login:
		return m == nil
	case *Register:
		return m == nil
	case *Chat:
		return m == nil
	case *PublicRSAKey:
		return m == nil
	case *AESKey:
		return m == nil
	}
	return false
}
