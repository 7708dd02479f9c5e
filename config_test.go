/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func validConfig() Config {
	return Config{
		bind:           "0.0.0.0",
		codeLength:     4,
		musicAPI:       defaultMusicAPI,
		port:           8080,
		rateBurst:      20,
		rateLimit:      10,
		sessionTimeout: time.Hour,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    string
	}{
		{"defaults", func(*Config) {}, ""},
		{"half tls", func(c *Config) { c.tlsCert = "cert.pem" }, "both --tls-cert and --tls-key must be provided together"},
		{"full tls", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, ""},
		{"port zero", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"short codes", func(c *Config) { c.codeLength = 3 }, "invalid room code length"},
		{"long codes", func(c *Config) { c.codeLength = 9 }, "invalid room code length"},
		{"negative rate", func(c *Config) { c.rateLimit = -1 }, "invalid rate limit"},
		{"no burst", func(c *Config) { c.rateBurst = 0 }, "invalid rate burst"},
		{"limiter off", func(c *Config) { c.rateLimit, c.rateBurst = 0, 0 }, ""},
		{"negative timeout", func(c *Config) { c.sessionTimeout = -time.Second }, "invalid session timeout"},
		{"relative music url", func(c *Config) { c.musicAPI = "/search" }, "invalid music api url"},
		{"music off", func(c *Config) { c.musicAPI = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestScheme(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PARTYHUB_PORT", "9090")
	t.Setenv("PARTYHUB_CODE_LENGTH", "6")
	t.Setenv("PARTYHUB_RATE_LIMIT", "2.5")
	t.Setenv("PARTYHUB_SESSION_TIMEOUT", "15m")
	t.Setenv("PARTYHUB_VERBOSE", "true")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 6, cfg.codeLength)
	assert.InDelta(t, 2.5, cfg.rateLimit, 0.0001)
	assert.Equal(t, 15*time.Minute, cfg.sessionTimeout)
	assert.True(t, cfg.verbose)
	assert.Equal(t, "0.0.0.0", cfg.bind)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PARTYHUB_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{"--port", "7070", "--prefix", "/party"}))

	assert.Equal(t, 7070, cfg.port)
	assert.Equal(t, "/party", cfg.prefix)
}

func TestWatchCommandRegistered(t *testing.T) {
	cmd := newCmd(&Config{})

	watch, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)
	assert.Equal(t, "watch", watch.Name())
	assert.NotNil(t, watch.Flags().Lookup("code"))
}

func TestNewLogger(t *testing.T) {
	quiet, err := newLogger(false)
	require.NoError(t, err)
	assert.False(t, quiet.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, quiet.Desugar().Core().Enabled(zapcore.ErrorLevel))

	loud, err := newLogger(true)
	require.NoError(t, err)
	assert.True(t, loud.Desugar().Core().Enabled(zapcore.InfoLevel))

	assert.NotPanics(t, func() { logf(&Config{}, "SERVE: %d", 1) })
}
