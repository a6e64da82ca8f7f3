// Package config loads the protocol knob overrides used by the cmd binaries.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/1ureka/miniquic/internal/engine"
)

// Config mirrors the engine knobs plus CLI-level settings. Values come from
// the compiled defaults, then an optional YAML file, then the MINIQUIC_*
// environment, in that order.
type Config struct {
	MaxFramesPerPacket int           `mapstructure:"max_frames_per_packet"`
	MaxRetries         int           `mapstructure:"max_retries"`
	AckTimeout         time.Duration `mapstructure:"ack_timeout"`
	MinChunkSize       int           `mapstructure:"min_chunk_size"`
	MaxChunkSize       int           `mapstructure:"max_chunk_size"`
	MaxReceiveBytes    int           `mapstructure:"max_receive_bytes"`
	Debug              bool          `mapstructure:"debug"`
}

// Default returns the compiled-in knob values.
func Default() Config {
	return Config{
		MaxFramesPerPacket: engine.DefaultMaxFramesPerPacket,
		MaxRetries:         engine.DefaultMaxRetries,
		AckTimeout:         engine.DefaultAckTimeout,
		MinChunkSize:       engine.DefaultMinChunkSize,
		MaxChunkSize:       engine.DefaultMaxChunkSize,
		MaxReceiveBytes:    engine.DefaultMaxReceiveBytes,
	}
}

// Load reads the config file at path over the defaults. An empty path skips
// the file but still honors the environment.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("max_frames_per_packet", def.MaxFramesPerPacket)
	v.SetDefault("max_retries", def.MaxRetries)
	v.SetDefault("ack_timeout", def.AckTimeout)
	v.SetDefault("min_chunk_size", def.MinChunkSize)
	v.SetDefault("max_chunk_size", def.MaxChunkSize)
	v.SetDefault("max_receive_bytes", def.MaxReceiveBytes)
	v.SetDefault("debug", false)

	v.SetEnvPrefix("MINIQUIC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if path != "" {
		filename := filepath.Base(path)
		fileExt := filepath.Ext(filename)

		v.SetConfigName(strings.TrimSuffix(filename, fileExt))
		v.SetConfigType(strings.TrimPrefix(fileExt, "."))
		v.AddConfigPath(filepath.Dir(path))

		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects knob combinations the protocol cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MaxFramesPerPacket < 1:
		return errors.Errorf("max_frames_per_packet must be at least 1, got %d", c.MaxFramesPerPacket)
	case c.MaxRetries < 1:
		return errors.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	case c.AckTimeout <= 0:
		return errors.Errorf("ack_timeout must be positive, got %s", c.AckTimeout)
	case c.MinChunkSize < 1:
		return errors.Errorf("min_chunk_size must be at least 1, got %d", c.MinChunkSize)
	case c.MaxChunkSize < c.MinChunkSize:
		return errors.Errorf("max_chunk_size (%d) must not be below min_chunk_size (%d)",
			c.MaxChunkSize, c.MinChunkSize)
	case c.MaxReceiveBytes < 1:
		return errors.Errorf("max_receive_bytes must be at least 1, got %d", c.MaxReceiveBytes)
	}
	return nil
}

// EngineOptions converts the knobs into engine options.
func (c Config) EngineOptions() engine.Options {
	return engine.Options{
		MaxFramesPerPacket: c.MaxFramesPerPacket,
		MaxRetries:         c.MaxRetries,
		AckTimeout:         c.AckTimeout,
		MinChunkSize:       c.MinChunkSize,
		MaxChunkSize:       c.MaxChunkSize,
		MaxReceiveBytes:    c.MaxReceiveBytes,
	}
}
