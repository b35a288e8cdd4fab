package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "barterly.db", cfg.Database.Path)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 1024, cfg.Boost.CacheSize)
	assert.Equal(t, 20, cfg.Ranking.PortfolioCap)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade-engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "9090"

[database]
path = "custom.db"

[ranking]
portfolio_cap = 5
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "custom.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Ranking.PortfolioCap)
	// Settings absent from the file keep their defaults
	assert.Equal(t, 1024, cfg.Boost.CacheSize)
}

func TestLoad_PortEnvOverride(t *testing.T) {
	t.Setenv("PORT", "7000")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)

	path := filepath.Join(t.TempDir(), "trade-engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[server]
port = "9090"
`), 0o600))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
