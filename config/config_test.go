package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_DRIVER", "DATABASE_URL", "TIMEZONE", "ERROR_STATUS_MODE", "ACTOR_HEADER", "CORS_ORIGINS", "DEMO_ENABLED", "ENFORCE_CATALOG_PRICES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "cantina.db", cfg.DBURL)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location.String())
	assert.Equal(t, StatusModeLegacy, cfg.StatusMode)
	assert.Equal(t, "X-Actor-ID", cfg.ActorHeader)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.DemoEnabled)
	assert.False(t, cfg.EnforceCatalogPrices)
}

func TestLoad_EnvThenFlags(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_DRIVER", "postgresql")
	t.Setenv("DATABASE_URL", "postgres://localhost/cantina")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("ERROR_STATUS_MODE", "Strict")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DEMO_ENABLED", "yes")
	t.Setenv("ENFORCE_CATALOG_PRICES", "1")

	cfg, err := Load([]string{"-port", "3000"})
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port, "flag wins over env")
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/cantina", cfg.DBURL)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, StatusModeStrict, cfg.StatusMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.DemoEnabled)
	assert.True(t, cfg.EnforceCatalogPrices)
}

func TestLoad_MemoryDriver(t *testing.T) {
	cfg, err := Load([]string{"-driver", "Memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DBDriver)
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("TIMEZONE", "Mars/Olympus")
		_, err := Load(nil)
		assert.Error(t, err)
	})
	t.Run("bad status mode", func(t *testing.T) {
		t.Setenv("ERROR_STATUS_MODE", "loose")
		_, err := Load(nil)
		assert.Error(t, err)
	})
	t.Run("bad driver", func(t *testing.T) {
		_, err := Load([]string{"-driver", "oracle"})
		assert.Error(t, err)
	})
}
