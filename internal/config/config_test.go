package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTOML(t, `
[database]
url = "user:pass@tcp(127.0.0.1:3306)/geobeacon"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, 7, cfg.Geo.H3Resolution)
	assert.Equal(t, 100, cfg.Database.MaxOpenConns)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeTOML(t, `
[database]
url = "user:pass@tcp(127.0.0.1:3306)/geobeacon"

[http]
port = 9000

[geo]
h3_resolution = 9
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(9000), cfg.HTTP.Port)
	assert.Equal(t, 9, cfg.Geo.H3Resolution)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	path := writeTOML(t, `[http]
port = 8080
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidH3Resolution(t *testing.T) {
	path := writeTOML(t, `
[database]
url = "dsn"

[geo]
h3_resolution = 99
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}
