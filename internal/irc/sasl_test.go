package irc

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainPayload(t *testing.T) {
	auth, err := NewSASL("PLAIN", "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", auth.Mechanism())
	assert.False(t, auth.Completed())

	payload, err := auth.Respond("+")
	require.NoError(t, err)
	assert.True(t, auth.Completed())

	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, "alice\x00alice\x00hunter2", string(decoded))
}

func TestPlainRejectsNonEmptyChallenge(t *testing.T) {
	auth, err := NewSASL("", "alice", "hunter2")
	require.NoError(t, err)

	_, err = auth.Respond(base64.StdEncoding.EncodeToString([]byte("surprise")))
	assert.Error(t, err)
}

func TestUnsupportedMechanism(t *testing.T) {
	_, err := NewSASL("EXTERNAL", "alice", "")
	assert.Error(t, err)
}

func TestSCRAMClientFirst(t *testing.T) {
	auth, err := NewSASL("SCRAM-SHA-256", "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-256", auth.Mechanism())

	payload, err := auth.Respond("+")
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)

	first := string(decoded)
	require.True(t, strings.HasPrefix(first, "n,,n=alice,r="), "client-first %q", first)
	nonce := strings.TrimPrefix(first, "n,,n=alice,r=")
	assert.NotEmpty(t, nonce)
	assert.False(t, auth.Completed())
}

func TestSCRAMRejectsForeignNonce(t *testing.T) {
	a, err := NewSASL("SCRAM-SHA-256", "alice", "hunter2")
	require.NoError(t, err)
	_, err = a.Respond("+")
	require.NoError(t, err)

	serverFirst := "r=completely-different-nonce,s=" +
		base64.StdEncoding.EncodeToString([]byte("salt")) + ",i=4096"
	_, err = a.Respond(base64.StdEncoding.EncodeToString([]byte(serverFirst)))
	assert.Error(t, err)
	assert.False(t, a.Completed())
}

func TestParseSCRAMAttrs(t *testing.T) {
	attrs := parseSCRAMAttrs("r=abc,s=c2FsdA==,i=4096")
	assert.Equal(t, "abc", attrs["r"])
	assert.Equal(t, "c2FsdA==", attrs["s"])
	assert.Equal(t, "4096", attrs["i"])
}
