package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/config"
)

type testConfig struct {
	Host    string        `env:"CFGTEST_HOST" envDefault:"localhost"`
	Port    int           `env:"CFGTEST_PORT" envDefault:"8080"`
	Timeout time.Duration `env:"CFGTEST_TIMEOUT" envDefault:"30s"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("CFGTEST_HOST", "db.internal")
		t.Setenv("CFGTEST_PORT", "9000")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "db.internal", cfg.Host)
		assert.Equal(t, 9000, cfg.Port)
	})

	t.Run("nil destination", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		require.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("CFGTEST_PORT", "not-a-number")

		var cfg testConfig
		err := config.Load(&cfg)
		require.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
