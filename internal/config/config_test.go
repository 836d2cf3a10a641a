package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/stock-tracker/internal/market"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 10000.0, c.StartingCash)
	assert.Equal(t, ":8080", c.Server.ListenAddr)
	assert.Equal(t, 4.0, c.Aggregator.DefaultUSDRate)
	assert.Equal(t, 380000.0, c.Aggregator.CryptoLastResort)
	assert.Equal(t, 5000, c.Monitor.CryptoIntervalMs)
	assert.Equal(t, 60000, c.Monitor.FxIntervalMs)
	assert.Equal(t, 1000, c.Monitor.SimIntervalMs)
	require.NoError(t, c.Validate())

	listings, err := c.Listings()
	require.NoError(t, err)
	assert.Len(t, listings, 25)
	assert.Equal(t, "WIG20", listings[0].Symbol)
	assert.Equal(t, 2400.0, listings[0].Seed)
	assert.Equal(t, market.ClassCrypto, listings[1].Class)
}

func TestLoadFile(t *testing.T) {
	c, err := Load("testdata/stocktracker.yaml")
	require.NoError(t, err)

	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 25000.0, c.StartingCash)
	assert.Equal(t, "127.0.0.1:9090", c.Server.ListenAddr)
	assert.Equal(t, "http://localhost:8091", c.Sources.Stooq.BaseURL)
	assert.Equal(t, 1500, c.Sources.Stooq.TimeoutMs)
	assert.Equal(t, 2, c.Sources.Binance.MaxAttempts)
	assert.Equal(t, 3.95, c.Aggregator.DefaultUSDRate)
	assert.Equal(t, 2500, c.Monitor.CryptoIntervalMs)
	assert.Equal(t, 2000, c.Monitor.CryptoDelayMs, "unset fields keep defaults")
	require.Len(t, c.Roster, 3)
	assert.Equal(t, "USD/PLN", c.Roster[2].Symbol)
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load("testdata/bad_class.yaml")
	assert.ErrorContains(t, err, "unknown asset class")

	_, err = Load("testdata/duplicate.yaml")
	assert.ErrorContains(t, err, "duplicate symbol PKO_BP")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STOCKTRACKER_LOG_LEVEL", "warn")
	t.Setenv("STOCKTRACKER_LISTEN_ADDR", ":9999")
	t.Setenv("STOCKTRACKER_STARTING_CASH", "5000,50")
	t.Setenv("STOCKTRACKER_SLACK_WEBHOOK", "https://hooks.example.com/x")
	t.Setenv("STOCKTRACKER_REDIS_ADDR", "localhost:6379")

	c := Default()
	require.NoError(t, c.ApplyEnv())

	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, ":9999", c.Server.ListenAddr)
	assert.Equal(t, 5000.5, c.StartingCash)
	assert.True(t, c.Slack.Enabled)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
}

func TestApplyEnvBadCashKeepsDefault(t *testing.T) {
	for _, v := range []string{"-1", "0", "abc", "NaN"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("STOCKTRACKER_STARTING_CASH", v)
			t.Setenv("STOCKTRACKER_LISTEN_ADDR", ":9998")
			c := Default()
			require.NoError(t, c.ApplyEnv())
			assert.Equal(t, 10000.0, c.StartingCash)
			assert.Equal(t, ":9998", c.Server.ListenAddr, "other overrides still apply")
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("STOCKTRACKER_LISTEN_ADDR", "")
	os.Unsetenv("STOCKTRACKER_LISTEN_ADDR")
	t.Setenv("STOCKTRACKER_STARTING_CASH", "999")

	require.NoError(t, LoadDotEnv("testdata/test.env", "testdata/absent.env"))
	t.Cleanup(func() { os.Unsetenv("STOCKTRACKER_LISTEN_ADDR") })

	c := Default()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, ":7070", c.Server.ListenAddr)
	assert.Equal(t, 999.0, c.StartingCash, "existing variables win over the file")
}
