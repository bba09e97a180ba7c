package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purchasekit/purchasekit/pkg/config"
)

func TestLoad(t *testing.T) {
	type testConfig struct {
		Name    string `env:"TEST_CONFIG_NAME" envDefault:"default-name"`
		Count   int    `env:"TEST_CONFIG_COUNT" envDefault:"3"`
		Require string `env:"TEST_CONFIG_REQUIRED,required"`
	}

	t.Run("reads values and defaults from the environment", func(t *testing.T) {
		t.Setenv("TEST_CONFIG_NAME", "from-env")
		t.Setenv("TEST_CONFIG_REQUIRED", "present")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "from-env", cfg.Name)
		assert.Equal(t, 3, cfg.Count)
		assert.Equal(t, "present", cfg.Require)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		var cfg testConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer fails", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("MustLoad panics on failure", func(t *testing.T) {
		assert.Panics(t, func() {
			var cfg testConfig
			config.MustLoad(&cfg)
		})
	})
}
