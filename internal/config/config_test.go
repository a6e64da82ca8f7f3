package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/miniquic/internal/engine"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, engine.DefaultMaxFramesPerPacket, cfg.MaxFramesPerPacket)
	assert.Equal(t, engine.DefaultAckTimeout, cfg.AckTimeout)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miniquic.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"max_frames_per_packet: 7\n"+
			"max_retries: 1\n"+
			"ack_timeout: 500ms\n"+
			"debug: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxFramesPerPacket)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.AckTimeout)
	assert.True(t, cfg.Debug)

	// Untouched knobs keep their defaults.
	assert.Equal(t, engine.DefaultMinChunkSize, cfg.MinChunkSize)
	assert.Equal(t, engine.DefaultMaxChunkSize, cfg.MaxChunkSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MINIQUIC_MAX_RETRIES", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxRetries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidKnobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"seven frames pass", func(c *Config) { c.MaxFramesPerPacket = 7 }, false},
		{"zero frames", func(c *Config) { c.MaxFramesPerPacket = 0 }, true},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, true},
		{"negative timeout", func(c *Config) { c.AckTimeout = -time.Second }, true},
		{"zero min chunk", func(c *Config) { c.MinChunkSize = 0 }, true},
		{"max chunk below min", func(c *Config) { c.MaxChunkSize = c.MinChunkSize - 1 }, true},
		{"zero receive buffer", func(c *Config) { c.MaxReceiveBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.MaxFramesPerPacket = 7
	cfg.AckTimeout = time.Second

	opts := cfg.EngineOptions()
	assert.Equal(t, 7, opts.MaxFramesPerPacket)
	assert.Equal(t, time.Second, opts.AckTimeout)
	assert.Equal(t, engine.DefaultMaxRetries, opts.MaxRetries)
}
