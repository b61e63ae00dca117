// Package config provides configuration structures and defaults for TDOA Tracker
package config

import (
	"fmt"
	"time"

	"tdoa-tracker/internal/tdoa"
)

// Config represents the complete application configuration
type Config struct {
	Tracker  TrackerConfig  `yaml:"tracker" mapstructure:"tracker"`   // Localization parameters
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`     // Dataset location
	Playback PlaybackConfig `yaml:"playback" mapstructure:"playback"` // Point-by-point reveal
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`     // Export settings
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`       // Revealed point publishing
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`   // Logging configuration
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`   // Prometheus endpoint
	Tracing  TracingConfig  `yaml:"tracing" mapstructure:"tracing"`   // OpenTelemetry spans
}

// TrackerConfig contains the localization constants
type TrackerConfig struct {
	SignalSpeed   float64 `yaml:"signal_speed" mapstructure:"signal_speed"`     // Propagation speed in distance units per second
	ErrorFraction float64 `yaml:"error_fraction" mapstructure:"error_fraction"` // Fractional range error (0-1)
	Padding       float64 `yaml:"padding" mapstructure:"padding"`               // Viewport margin in distance units
	Algorithm     string  `yaml:"algorithm" mapstructure:"algorithm"`           // closed-form, least-squares or refine
}

// SourceConfig describes where the dataset comes from
type SourceConfig struct {
	Location  string        `yaml:"location" mapstructure:"location"`     // File path or http(s) URL
	NMEATrack string        `yaml:"nmea_track" mapstructure:"nmea_track"` // Optional NMEA log replacing transmitterCoords
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`       // Fetch timeout for URLs
}

// PlaybackConfig controls the staggered reveal of path points
type PlaybackConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`   // Reveal points one at a time
	Interval time.Duration `yaml:"interval" mapstructure:"interval"` // Delay between points
}

// OutputConfig contains export parameters
type OutputConfig struct {
	Format string  `yaml:"format" mapstructure:"format"` // geojson, kml, csv, svg or empty for none
	Dir    string  `yaml:"dir" mapstructure:"dir"`       // Output directory
	Size   float64 `yaml:"size" mapstructure:"size"`     // SVG surface size in pixels
}

// RedisConfig contains the point publisher settings
type RedisConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"` // Publish revealed points
	Addr    string        `yaml:"addr" mapstructure:"addr"`       // host:port
	DB      int           `yaml:"db" mapstructure:"db"`           // Database index
	Key     string        `yaml:"key" mapstructure:"key"`         // List key and channel name
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`         // Expiry of the list key
}

// LoggingConfig contains logging configuration parameters
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // Log level (debug, info, warn, error)
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// TracingConfig contains OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter    string  `yaml:"exporter" mapstructure:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			SignalSpeed:   1000,                    // 1000 distance units per second
			ErrorFraction: 0.01,                    // 1% range error
			Padding:       1000,                    // 1000 distance units around the plot
			Algorithm:     string(tdoa.ClosedForm), // Closed-form trilateration
		},
		Source: SourceConfig{
			Location:  "./api.json",     // Dataset next to the binary
			NMEATrack: "",               // Use transmitterCoords from the dataset
			Timeout:   10 * time.Second, // 10 second fetch timeout
		},
		Playback: PlaybackConfig{
			Enabled:  false,       // Print the whole path at once
			Interval: time.Second, // One point per second when enabled
		},
		Output: OutputConfig{
			Format: "",               // No export by default
			Dir:    "./tdoa-results", // Results directory
			Size:   800,              // 800x800 px SVG
		},
		Redis: RedisConfig{
			Enabled: false,            // Publishing disabled
			Addr:    "localhost:6379", // Local Redis
			DB:      0,
			Key:     "tdoa:path",
			TTL:     10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info", // Info level logging
			Format: "text", // Human-readable output
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9000",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			SampleRatio: 1.0,
		},
	}
}

// Validate checks the configuration for values the tracker cannot run with
func (c *Config) Validate() error {
	if c.Tracker.SignalSpeed <= 0 {
		return fmt.Errorf("%w: signal_speed must be positive, got %g", tdoa.ErrInvalidParameter, c.Tracker.SignalSpeed)
	}
	if c.Tracker.ErrorFraction < 0 || c.Tracker.ErrorFraction > 1 {
		return fmt.Errorf("%w: error_fraction must be between 0.0 and 1.0, got %g", tdoa.ErrInvalidParameter, c.Tracker.ErrorFraction)
	}
	if c.Tracker.Padding < 0 {
		return fmt.Errorf("%w: padding must be non-negative, got %g", tdoa.ErrInvalidParameter, c.Tracker.Padding)
	}
	if _, err := tdoa.ParseAlgorithm(c.Tracker.Algorithm); err != nil {
		return err
	}
	if c.Source.Location == "" {
		return fmt.Errorf("source location not specified")
	}

	switch c.Output.Format {
	case "", "geojson", "kml", "csv", "svg":
	default:
		return fmt.Errorf("invalid output format: %s (must be 'geojson', 'kml', 'csv' or 'svg')", c.Output.Format)
	}
	if c.Output.Format == "svg" && c.Output.Size <= 0 {
		return fmt.Errorf("svg size must be positive, got %g", c.Output.Size)
	}

	if c.Playback.Enabled && c.Playback.Interval < 0 {
		return fmt.Errorf("playback interval must not be negative, got %v", c.Playback.Interval)
	}
	if c.Redis.Enabled && !c.Playback.Enabled {
		return fmt.Errorf("redis publishing requires playback to be enabled")
	}
	if c.Redis.Enabled && (c.Redis.Addr == "" || c.Redis.Key == "") {
		return fmt.Errorf("redis addr and key are required when publishing is enabled")
	}
	if c.Tracing.Enabled && (c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1) {
		return fmt.Errorf("tracing sample_ratio must be between 0.0 and 1.0, got %g", c.Tracing.SampleRatio)
	}
	return nil
}
