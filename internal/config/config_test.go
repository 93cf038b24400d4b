package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STATION_URL", "http://station.local")
	t.Setenv("CALLSIGN", "X1ABC")
	t.Setenv("CACHE_DIR", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 10*time.Second, cfg.ReachabilityInterval)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 50, cfg.PageLimit)
	assert.Equal(t, 200, cfg.CursorLimit)
	assert.Equal(t, int64(3*1024*1024), cfg.AutoDownloadMaxBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.AutoDownloadMaxAge)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxAttachmentBytes)
	assert.NotEmpty(t, cfg.DeviceName, "device name should default to hostname")
}

func TestLoad_MissingStationURL(t *testing.T) {
	t.Setenv("STATION_URL", "")
	t.Setenv("CALLSIGN", "X1ABC")
	t.Setenv("CACHE_DIR", t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATION_URL")
}

func TestLoad_MissingCallsign(t *testing.T) {
	t.Setenv("STATION_URL", "http://station.local")
	t.Setenv("CALLSIGN", "")
	t.Setenv("CACHE_DIR", t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLSIGN")
}

func TestLoad_RejectsNonHTTPURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STATION_URL", "ws://station.local")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")
}

func TestLoad_RejectsZeroIntervals(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "0s")

	_, err := Load()
	require.Error(t, err)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		station string
		want    string
	}{
		{"http://station.local", "ws://station.local/ws"},
		{"https://station.example.org", "wss://station.example.org/ws"},
		{"http://10.0.0.1:8080/", "ws://10.0.0.1:8080/ws"},
	}
	for _, tt := range tests {
		cfg := &Config{StationURL: tt.station}
		assert.Equal(t, tt.want, cfg.WebSocketURL())
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Environment: "production"}).IsProduction())
	assert.False(t, (&Config{Environment: "development"}).IsProduction())
}
