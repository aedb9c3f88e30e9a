package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, int64(10<<20), c.Server.MaxBodyBytes)
	require.Equal(t, 15*time.Second, c.Server.ReadTimeout)
	require.Equal(t, "sqlite", c.Database.Driver)
	require.Equal(t, "readdeck.db", c.Database.Path)
	require.True(t, c.Poller.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readdeck.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = "127.0.0.1:9000"
idle_timeout = "2m"

[database]
driver = "postgres"
dsn = "postgres://localhost/readdeck?sslmode=disable"

[poller]
enabled = false
`), 0o644))
	t.Setenv("READDECK_SERVER_ADDR", ":9999")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", c.Server.Addr)
	require.Equal(t, 2*time.Minute, c.Server.IdleTimeout)
	require.Equal(t, "postgres", c.Database.Driver)
	require.Equal(t, "postgres://localhost/readdeck?sslmode=disable", c.Database.DSN)
	require.False(t, c.Poller.Enabled)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := Config{
		Server:   ServerConfig{Addr: ":8080", MaxBodyBytes: 1},
		Database: DatabaseConfig{Driver: "sqlite", Path: "x.db"},
	}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Database = DatabaseConfig{Driver: "postgres"}
	require.ErrorContains(t, bad.Validate(), "dsn")

	bad = ok
	bad.Database.Driver = "mysql"
	require.ErrorContains(t, bad.Validate(), "mysql")

	bad = ok
	bad.Server.Addr = ""
	require.Error(t, bad.Validate())
}
