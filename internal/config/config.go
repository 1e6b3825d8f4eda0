// Package config provides configuration management for camstreamd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultReconnectDelay     = 5 * time.Second
	defaultIOTimeout          = 5 * time.Second
	defaultCopySegmentSecs    = 0 // muxer default
	defaultEncodeSegmentSecs  = 4
	defaultCopyKeepMinutes    = 0 // unbounded
	defaultEncodeKeepMinutes  = 1
	defaultEncoderPreset      = "veryfast"
	defaultEncoderTune        = "zerolatency"
	defaultEncoderThreadsPerQ = 0 // libav auto
)

// Config holds all configuration for the application.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Output  OutputConfig  `mapstructure:"output"`
	Encode  EncodeConfig  `mapstructure:"encode"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig describes the single input this process consumes.
type SourceConfig struct {
	URL            string        `mapstructure:"url"`
	ForceTCP       bool          `mapstructure:"force_tcp"`       // rtsp_transport=tcp
	IOTimeout      time.Duration `mapstructure:"io_timeout"`      // socket/read timeout
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"` // 0 = no reconnect (finite sources only)
}

// OutputConfig describes the on-disk HLS contract.
type OutputConfig struct {
	Path string `mapstructure:"path"` // playlist path or directory

	// Passthrough (remux) variant settings. SegmentSeconds 0 leaves the
	// muxer's own default in place; KeepMinutes 0 keeps every segment.
	CopySegmentSeconds int `mapstructure:"copy_segment_seconds"`
	CopyKeepMinutes    int `mapstructure:"copy_keep_minutes"`
}

// EncodeConfig describes the re-encoded rendition set.
type EncodeConfig struct {
	// Ladder entries are "name:WxH:bitrate", e.g. "low:426x240:400000".
	// Empty means the built-in low/mid/high ladder.
	Ladder []string `mapstructure:"ladder"`

	SegmentSeconds int    `mapstructure:"segment_seconds"`
	KeepMinutes    int    `mapstructure:"keep_minutes"`
	Preset         string `mapstructure:"preset"`
	Tune           string `mapstructure:"tune"`
	Threads        int    `mapstructure:"threads"` // per encoder, 0 = auto
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`   // optional log file, empty = stdout only
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CAMSTREAMD_ and use underscores
// for nesting. Example: CAMSTREAMD_SOURCE_URL=rtsp://cam/stream.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/camstreamd")
		v.AddConfigPath("$HOME/.camstreamd")
	}

	// Environment variable settings
	v.SetEnvPrefix("CAMSTREAMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.url", "")
	v.SetDefault("source.force_tcp", false)
	v.SetDefault("source.io_timeout", defaultIOTimeout)
	v.SetDefault("source.reconnect_delay", defaultReconnectDelay)

	// Output defaults
	v.SetDefault("output.path", "")
	v.SetDefault("output.copy_segment_seconds", defaultCopySegmentSecs)
	v.SetDefault("output.copy_keep_minutes", defaultCopyKeepMinutes)

	// Encode defaults
	v.SetDefault("encode.ladder", []string{})
	v.SetDefault("encode.segment_seconds", defaultEncodeSegmentSecs)
	v.SetDefault("encode.keep_minutes", defaultEncodeKeepMinutes)
	v.SetDefault("encode.preset", defaultEncoderPreset)
	v.SetDefault("encode.tune", defaultEncoderTune)
	v.SetDefault("encode.threads", defaultEncoderThreadsPerQ)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.IOTimeout < 0 {
		return fmt.Errorf("source.io_timeout must not be negative")
	}
	if c.Source.ReconnectDelay < 0 {
		return fmt.Errorf("source.reconnect_delay must not be negative")
	}

	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if c.Output.CopySegmentSeconds < 0 {
		return fmt.Errorf("output.copy_segment_seconds must not be negative")
	}
	if c.Output.CopyKeepMinutes < 0 {
		return fmt.Errorf("output.copy_keep_minutes must not be negative")
	}

	if c.Encode.SegmentSeconds < 1 {
		return fmt.Errorf("encode.segment_seconds must be at least 1")
	}
	if c.Encode.KeepMinutes < 0 {
		return fmt.Errorf("encode.keep_minutes must not be negative")
	}
	if c.Encode.Threads < 0 {
		return fmt.Errorf("encode.threads must not be negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
