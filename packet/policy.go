package packet

import "sync"

// Encryption names the scheme a frame payload is protected with.
type Encryption uint8

const (
	EncryptionNone Encryption = iota
	EncryptionSymmetric
	EncryptionAsymmetric
)

func (e Encryption) String() string {
	switch e {
	case EncryptionSymmetric:
		return "symmetric"
	case EncryptionAsymmetric:
		return "asymmetric"
	default:
		return "none"
	}
}

// mandatedEncryption is the compiled-in schema metadata. Credentials always
// travel under the session key; the session key itself travels under the
// server's public key.
var mandatedEncryption = map[Variant]Encryption{
	VariantLogin:    EncryptionSymmetric,
	VariantRegister: EncryptionSymmetric,
	VariantAESKey:   EncryptionAsymmetric,
}

// PolicyCache memoizes the mandated encryption of each variant, keyed by
// variant name. It is safe for concurrent use; when two lookups race the
// first stored value wins.
type PolicyCache struct {
	entries sync.Map // string -> Encryption
}

// NewPolicyCache creates an empty cache.
func NewPolicyCache() *PolicyCache {
	return &PolicyCache{}
}

// Mandated returns the scheme v must be sent with, or EncryptionNone if the
// sender may choose.
func (c *PolicyCache) Mandated(v Variant) Encryption {
	name := v.String()
	if cached, ok := c.entries.Load(name); ok {
		return cached.(Encryption)
	}
	actual, _ := c.entries.LoadOrStore(name, mandatedEncryption[v])
	return actual.(Encryption)
}

// MandatesEncryption reports whether the named variant must be sent under
// the session key. It covers the symmetric mandate only: aes_key is declared
// encrypted in the schema but travels under the server's RSA key, so it
// reports false here and true from Encrypted. Unknown names never mandate
// encryption.
func (c *PolicyCache) MandatesEncryption(name string) bool {
	v, ok := VariantByName(name)
	if !ok {
		return false
	}
	return c.Mandated(v) == EncryptionSymmetric
}

// Encrypted reports the schema's encrypted flag for the named variant: true
// when any scheme is mandated.
func (c *PolicyCache) Encrypted(name string) bool {
	v, ok := VariantByName(name)
	if !ok {
		return false
	}
	return c.Mandated(v) != EncryptionNone
}

// Apply resolves the header a packet of variant v is sent with. A mandated
// scheme overrides the caller's encryption flags; reserved bits are kept.
func (c *PolicyCache) Apply(h Header, v Variant) Header {
	switch c.Mandated(v) {
	case EncryptionSymmetric:
		h.Symmetric = true
		h.Asymmetric = false
	case EncryptionAsymmetric:
		h.Asymmetric = true
		h.Symmetric = false
	}
	return h
}
