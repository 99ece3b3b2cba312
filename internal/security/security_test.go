package security

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBUIDFixture(t *testing.T) {
	props := DeviceProperties{
		AppKey:     "123",
		APIVersion: "4.0.0",
		Platform:   "plat",
		LibVersion: "1.5.0",
	}
	assert.Equal(t, "234A32BB4341EAFD91FC8D0395F4E66F", BUID(props))
}

func TestValidAPIKeyFormat(t *testing.T) {
	assert.True(t, ValidAPIKeyFormat("abcdef0123456789abcdef01"))
	assert.False(t, ValidAPIKeyFormat("not-hex"))
	assert.False(t, ValidAPIKeyFormat(""))
	assert.False(t, ValidAPIKeyFormat("ABCDEF0123456789ABCDEF01"))
}

func TestRSAVerifierRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	sig, err := Sign(key, `{"application":"app"}`)
	require.NoError(t, err)

	verifier := NewRSAVerifier(&key.PublicKey)
	assert.True(t, verifier.Verify(`{"application":"app"}`, sig))
	assert.False(t, verifier.Verify(`{"application":"tampered"}`, sig))
}

func TestStateFingerprintStableAcrossOrder(t *testing.T) {
	props := DeviceProperties{Platform: "C", AppKey: "key"}
	a := SortedJoin([]string{"b", "a", "c"})
	b := SortedJoin([]string{"c", "b", "a"})
	assert.Equal(t, a, b)
	assert.Equal(t, StateFingerprint(props, a, "", ""), StateFingerprint(props, b, "", ""))
}
