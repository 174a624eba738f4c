package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizhub/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Postgres struct {
		Addr    string
		Timeout time.Duration
	}
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("postgres:\n  addr: db:5432\n  timeout: 5s\n"), 0o600))

	var c testConfig
	c.HTTP.Port = 8080
	c.Postgres.Timeout = time.Second

	require.NoError(t, config.Load(file, &c))

	require.Equal(t, int32(8080), c.HTTP.Port, "default should be kept")
	require.Equal(t, "db:5432", c.Postgres.Addr)
	require.Equal(t, 5*time.Second, c.Postgres.Timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("http:\n  port: 9000\n"), 0o600))
	t.Setenv("HTTP_PORT", "9100")

	var c testConfig
	require.NoError(t, config.Load(file, &c))
	require.Equal(t, int32(9100), c.HTTP.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	var c testConfig
	require.Error(t, config.Load(filepath.Join(t.TempDir(), "missing.yaml"), &c))
}
