package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Addr     string `env:"ARCADE_TEST_ADDR" envDefault:":5555"`
	MaxRooms int    `env:"ARCADE_TEST_MAX_ROOMS" envDefault:"256"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg sample
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, ":5555", cfg.Addr)
	assert.Equal(t, 256, cfg.MaxRooms)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("ARCADE_TEST_MAX_ROOMS", "3")
	var cfg sample
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 3, cfg.MaxRooms)
}

func TestParseEnvRejectsBadValue(t *testing.T) {
	t.Setenv("ARCADE_TEST_MAX_ROOMS", "many")
	var cfg sample
	assert.Error(t, ParseEnv(&cfg))
}
