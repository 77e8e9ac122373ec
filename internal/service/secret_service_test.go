package service

import (
	"testing"

	"paygate/pkg/protocol"

	"github.com/stretchr/testify/assert"
)

func TestHKDFSecretService_Derive(t *testing.T) {
	svc := NewHKDFSecretService("master")

	a := svc.Derive("alice")
	assert.Len(t, a, 64)
	assert.Equal(t, a, svc.Derive("alice"))
	assert.NotEqual(t, a, svc.Derive("bob"))
	assert.NotEqual(t, a, NewHKDFSecretService("other-master").Derive("alice"))
}

func TestHKDFSecretService_Verify(t *testing.T) {
	svc := NewHKDFSecretService("master")
	payload := protocol.CanonicalString("alice", 1700000000, "n-1")
	sig := protocol.Sign(svc.Derive("alice"), payload)

	assert.True(t, svc.Verify("alice", payload, sig))
	assert.False(t, svc.Verify("bob", payload, sig))
	assert.False(t, NewHKDFSecretService("").Verify("alice", payload, protocol.Sign(NewHKDFSecretService("").Derive("alice"), payload)))
}
