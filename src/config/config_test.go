package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

const validYAML = `
name: "hypersync"
host: "127.0.0.1"
port: 8600
log_level: "INFO"
feed:
  url: "wss://api.hyperliquid.xyz/ws"
  default_symbols: ["BTC", "ETH"]
exchange:
  info_url: "https://api.hyperliquid.xyz/info"
  timeout: 10
  retries: 3
storage:
  db_path: "candles.db"
account:
  address: "0xabc"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfig_LoadsAndDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "hypersync", cfg.Name)
	assert.Equal(t, 8600, cfg.Port)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Feed.DefaultSymbols)

	// Omitted optionals are defaulted.
	assert.Equal(t, []string{"day", "week", "month", "allTime"}, cfg.Timeframes)
	assert.Equal(t, 30, cfg.Account.PollIntervalSeconds)
	assert.Equal(t, 1000, cfg.Account.EquityHistorySize)
	assert.Equal(t, 30, cfg.Storage.RetentionDays)
}

func TestNewConfig_MissingFile(t *testing.T) {
	_, err := NewConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestValidate_RejectsBadPort(t *testing.T) {
	bad := `
name: "hypersync"
host: "127.0.0.1"
port: 80
feed:
  url: "wss://x"
  default_symbols: ["BTC"]
exchange:
  info_url: "https://x"
  timeout: 10
storage:
  db_path: "c.db"
account:
  address: "0xabc"
`
	_, err := NewConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestValidate_RejectsNonWebsocketFeedURL(t *testing.T) {
	bad := `
name: "hypersync"
host: "127.0.0.1"
port: 8600
feed:
  url: "https://api.hyperliquid.xyz/ws"
  default_symbols: ["BTC"]
exchange:
  info_url: "https://x"
  timeout: 10
storage:
  db_path: "c.db"
account:
  address: "0xabc"
`
	_, err := NewConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws://")
}

func TestValidate_RejectsUnknownTimeframe(t *testing.T) {
	bad := validYAML + `
timeframes: ["day", "fortnight"]
`
	_, err := NewConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fortnight")
}

func TestValidate_RejectsMissingAddress(t *testing.T) {
	bad := `
name: "hypersync"
host: "127.0.0.1"
port: 8600
feed:
  url: "wss://x"
  default_symbols: ["BTC"]
exchange:
  info_url: "https://x"
  timeout: 10
storage:
  db_path: "c.db"
`
	_, err := NewConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address")
}

// -----------------------------------------------------------------------------

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded, err := NewConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, reloaded.Name)
	assert.Equal(t, cfg.Feed.URL, reloaded.Feed.URL)
	assert.Equal(t, cfg.Timeframes, reloaded.Timeframes)
}
