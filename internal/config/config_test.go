package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:9090/jsonrpc", cfg.HostURL)
	assert.Equal(t, "8099", cfg.HTTPPort)
	assert.Equal(t, "offsetpilot.json", cfg.StateFile)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_RejectsNonWebSocketURL(t *testing.T) {
	t.Setenv("HOST_URL", "http://127.0.0.1:8080/jsonrpc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws://")
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("HOST_URL", "wss://htpc.local:9090/jsonrpc")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://htpc.local:9090/jsonrpc", cfg.HostURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("CONNECT_TIMEOUT", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONNECT_TIMEOUT")
}
