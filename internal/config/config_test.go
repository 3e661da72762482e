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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	c, err := Parse("test", []string{"--config", writeConfig(t, "{}")})
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Listen)
	assert.Zero(t, c.PageSize)
	assert.Equal(t, 3*time.Second, c.NotificationTTL)
	assert.Equal(t, "http://localhost:8000/api", c.ModelBackend().APIURL())
}

func TestFileValues(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
page_size: 25
notification_ttl: 5s
csrf_key: "0123456789abcdef0123456789abcdef"
backend:
  scheme: https
  host: api.club.test
  api_prefix: /v1
resources:
  accounts:
    server_filtering: false
    page_size: 20
`)
	c, err := Parse("test", []string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Listen)
	assert.Equal(t, 25, c.PageSize)
	assert.Equal(t, 5*time.Second, c.NotificationTTL)
	assert.Equal(t, "https://api.club.test:443/v1", c.ModelBackend().APIURL())
	require.Contains(t, c.Resources, "accounts")
	require.NotNil(t, c.Resources["accounts"].ServerFiltering)
	assert.False(t, *c.Resources["accounts"].ServerFiltering)
	assert.Equal(t, 20, c.Resources["accounts"].PageSize)
}

func TestFlagsWin(t *testing.T) {
	path := writeConfig(t, "listen: \":9000\"\npage_size: 25\n")
	c, err := Parse("test", []string{"--config", path, "--listen", ":7000", "--backend", "http://127.0.0.1:3000/api"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", c.Listen)
	assert.Equal(t, 25, c.PageSize)
	assert.Equal(t, "http://127.0.0.1:3000/api", c.ModelBackend().APIURL())
}

func TestPageSizeFlag(t *testing.T) {
	path := writeConfig(t, "page_size: 25\n")
	c, err := Parse("test", []string{"--config", path, "--page-size", "50"})
	require.NoError(t, err)
	assert.Equal(t, 50, c.PageSize)
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv(TokenEnv, "static-token")
	c, err := Parse("test", []string{"--config", writeConfig(t, "{}")})
	require.NoError(t, err)
	assert.Equal(t, "static-token", c.ModelBackend().Token)
}

func TestErrors(t *testing.T) {
	_, err := Parse("test", []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = Parse("test", []string{"--config", writeConfig(t, "listen: [")})
	assert.Error(t, err)

	_, err = Parse("test", []string{"--config", writeConfig(t, "{}"), "--backend", "ftp://x"})
	assert.Error(t, err)

	_, err = Parse("test", []string{"--bogus"})
	assert.Error(t, err)
}

func TestParseBackendURL(t *testing.T) {
	b, err := ParseBackendURL("https://api.club.test:8443/api")
	require.NoError(t, err)
	assert.Equal(t, BackendConfig{Scheme: "https", Host: "api.club.test", Port: 8443, APIPrefix: "/api"}, b)

	_, err = ParseBackendURL("https:///api")
	assert.Error(t, err)
}
