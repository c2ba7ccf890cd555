package main

import (
	"testing"

	"github.com/opd-ai/moonlapse/packet"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "John: hi", format(&packet.Chat{Name: "John", Message: "hi"}))
	assert.Equal(t, "[server] Login successful", format(&packet.Ok{Message: "Login successful"}))
	assert.Equal(t, "[server] denied: nope", format(&packet.Deny{Reason: "nope"}))
	assert.Equal(t, "[server] public_rsa_key", format(&packet.PublicRSAKey{}))
}
