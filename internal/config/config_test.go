package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
	assert.Error(t, cfg.ValidateSecurity())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REPORT_TIMEZONE", "")
	t.Setenv("LOW_STOCK_SCAN_INTERVAL", "")
	t.Setenv("ENFORCE_CATALOG_PRICE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.ReportLocation)
	assert.Equal(t, 15*time.Minute, cfg.LowStockScanInterval)
	assert.False(t, cfg.EnforceCatalogPrice)
	assert.Equal(t, ":8080", Config{Port: "8080"}.Address())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("REPORT_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REPORT_TIMEZONE", "UTC")
	t.Setenv("ENFORCE_CATALOG_PRICE", "sometimes")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateSecurityAcceptsStrongSecret(t *testing.T) {
	cfg := Config{AuthSecret: "0123456789abcdef0123456789abcdef", AllowedOrigin: "https://pos.example.com"}
	assert.NoError(t, cfg.ValidateSecurity())

	cfg.AllowedOrigin = "*"
	assert.Error(t, cfg.ValidateSecurity())
}
