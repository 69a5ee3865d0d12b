package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nettle.scfg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
address irc.libera.chat
nickname alice
`))
	require.NoError(t, err)
	assert.Equal(t, "irc.libera.chat", cfg.Addr)
	assert.Equal(t, "alice", cfg.Nick)
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, "alice", cfg.Real)
	assert.True(t, cfg.TLS)
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
address irc.libera.chat:6697
nickname alice
username alice-user
realname "Alice Liddell"
password hunter2
channel #go-nuts #irc
sasl SCRAM-SHA-256
tls true
debug true
`))
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", cfg.Real)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, []string{"#go-nuts", "#irc"}, cfg.Channels)
	assert.Equal(t, "SCRAM-SHA-256", cfg.SASLMechanism)
	assert.True(t, cfg.Debug)
}

func TestLoadAddrSchemes(t *testing.T) {
	cfg, err := Load(writeConfig(t, "address ircs://irc.libera.chat\nnickname alice\n"))
	require.NoError(t, err)
	assert.Equal(t, "irc.libera.chat", cfg.Addr)
	assert.True(t, cfg.TLS)

	cfg, err = Load(writeConfig(t, "address irc+insecure://localhost:6667\nnickname alice\n"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:6667", cfg.Addr)
	assert.False(t, cfg.TLS)
}

func TestLoadRejectsMissingFields(t *testing.T) {
	_, err := Load(writeConfig(t, "nickname alice\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "address irc.libera.chat\n"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDirective(t *testing.T) {
	_, err := Load(writeConfig(t, "address a\nnickname n\nbogus x\n"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownSASLMechanism(t *testing.T) {
	_, err := Load(writeConfig(t, "address a\nnickname n\nsasl EXTERNAL\n"))
	assert.Error(t, err)
}

func TestPasswordCmdWinsOverPassword(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
address irc.libera.chat
nickname alice
password not-this-one
password-cmd echo from-command
`))
	require.NoError(t, err)
	assert.Equal(t, "from-command", cfg.Password)
}

func TestHostPortDefaults(t *testing.T) {
	cfg := Config{Addr: "irc.libera.chat", TLS: true}
	host, port := cfg.HostPort()
	assert.Equal(t, "irc.libera.chat", host)
	assert.Equal(t, 6697, port)

	cfg = Config{Addr: "localhost:6000", TLS: false}
	host, port = cfg.HostPort()
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 6000, port)

	cfg = Config{Addr: "localhost", TLS: false}
	_, port = cfg.HostPort()
	assert.Equal(t, 6667, port)
}
