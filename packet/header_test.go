package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderByteRoundTripAllValues(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		h := HeaderFromByte(b)
		assert.Equal(t, h, HeaderFromByte(h.Byte()), "byte %08b", b)
		assert.Equal(t, b, h.Byte(), "byte %08b", b)
	}
}

func TestHeaderFlags(t *testing.T) {
	assert.Equal(t, Header{Asymmetric: true}, HeaderFromByte(0x80))
	assert.Equal(t, Header{Symmetric: true}, HeaderFromByte(0x40))
	assert.Equal(t, Header{Reserved: 0x15}, HeaderFromByte(0x15))
	assert.Equal(t, byte(0), Header{}.Byte())
}

func TestHeaderValidate(t *testing.T) {
	assert.NoError(t, Header{}.Validate())
	assert.NoError(t, Header{Asymmetric: true}.Validate())
	assert.NoError(t, Header{Symmetric: true, Reserved: 0x3f}.Validate())
	assert.ErrorIs(t, HeaderFromByte(0xc0).Validate(), ErrInvalidHeader)
}

func TestHeaderEncryption(t *testing.T) {
	assert.Equal(t, EncryptionNone, Header{}.Encryption())
	assert.Equal(t, EncryptionSymmetric, Header{Symmetric: true}.Encryption())
	assert.Equal(t, EncryptionAsymmetric, Header{Asymmetric: true}.Encryption())
}
