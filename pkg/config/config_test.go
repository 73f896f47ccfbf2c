package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	return path
}

func TestLoadConfig(t *testing.T) {
	const file = `
[server]
bind_address = "127.0.0.1"
port = 7979
public_url = "https://pods.example.org"

[cache]
ttl = "12h"

[tokens]
youtube = "yt-api-key"
`

	config, err := LoadConfig(writeConfig(t, file))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.BindAddress)
	assert.Equal(t, 7979, config.Server.Port)
	assert.Equal(t, "https://pods.example.org", config.Server.PublicURL)
	assert.Equal(t, 12*time.Hour, config.Cache.TTL.Duration)
	assert.Equal(t, "yt-api-key", config.Tokens.YouTube)
}

func TestLoadConfig_Defaults(t *testing.T) {
	const file = `
[server]
public_url = "https://pods.example.org"
`

	config, err := LoadConfig(writeConfig(t, file))
	require.NoError(t, err)

	assert.Equal(t, "*", config.Server.BindAddress)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 24*time.Hour, config.Cache.TTL.Duration)
	assert.Empty(t, config.Tokens.YouTube)
}

func TestLoadConfig_MissingPublicURL(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[server]\nport = 8080\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.public_url is required")
}

func TestLoadConfig_InvalidPublicURL(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[server]\npublic_url = \"not a url\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.public_url is not a valid URL")
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	const file = `
[server]
port = 99999
public_url = "https://pods.example.org"
`

	_, err := LoadConfig(writeConfig(t, file))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port: 99999")
}

func TestLoadConfig_NegativeTTL(t *testing.T) {
	const file = `
[server]
public_url = "https://pods.example.org"

[cache]
ttl = "-1h"
`

	_, err := LoadConfig(writeConfig(t, file))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.ttl must be positive")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}
