package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"hpackCodec/internal/hpack"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  address: "127.0.0.1:9000"
codec:
  header_table_size: 256
  huffman: never
sessions:
  ttl: 60
blacklist:
  - 10.0.0.1
logger:
  level: debug
  file: hpack.log
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", config.Server.Address)
	assert.Equal(t, uint32(256), config.Codec.HeaderTableSize)
	assert.Equal(t, uint32(hpack.DefaultMaxHeaderListSize), config.Codec.MaxHeaderListSize)
	assert.Equal(t, time.Minute, config.SessionTTL())
	assert.Equal(t, uint32(16384), config.Sessions.MaxFrameSize)
	assert.Equal(t, []string{"10.0.0.1"}, config.Blacklist)
	assert.False(t, config.TLSEnabled())

	opts := config.SessionOptions()
	assert.Equal(t, hpack.HuffmanNever, opts.Huffman)
	assert.Equal(t, uint32(256), opts.HeaderTableSize)
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
address = "0.0.0.0:8443"
cert_file = "server.crt"
key_file = "server.key"

[codec]
huffman = "always"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8443", config.Server.Address)
	assert.True(t, config.TLSEnabled())
	assert.Equal(t, "always", config.Codec.Huffman)
	assert.Equal(t, 300, config.Sessions.TTL)
	assert.Equal(t, "info", config.Logger.Level)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "empty.yaml", "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *config)
}

func TestLoadConfigZeroTTLGetsDefault(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "zero.yaml", "sessions:\n  ttl: 0\ncodec:\n  header_table_size: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, config.SessionTTL())
	assert.Equal(t, uint32(hpack.DefaultMaxDynamicTableSize), config.Codec.HeaderTableSize)

	_, err = LoadConfig(writeConfig(t, "negative.yaml", "sessions:\n  ttl: -5\n"))
	assert.ErrorContains(t, err, "sessions ttl must be positive")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	config := DefaultConfig()
	config.Server.Address = "no-port"
	config.Server.CertFile = "server.crt"
	config.Codec.Huffman = "sometimes"
	config.Sessions.MaxFrameSize = 1024
	config.Blacklist = []string{"not-an-ip"}
	config.Logger.Level = "loud"

	err := config.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 6)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "broken.yaml", "server: ["))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "invalid.yaml", "codec:\n  huffman: sometimes\n"))
	assert.ErrorContains(t, err, "unknown huffman policy")
}
