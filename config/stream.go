package config

import (
	"time"

	"github.com/kbukum/streamkit/validation"
)

// StreamConfig is the configuration of the streamkit CLI.
type StreamConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Pipeline      PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Telemetry     TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// PipelineConfig bounds pipeline evaluation.
type PipelineConfig struct {
	// MaxElements caps how many elements a terminal may pull. Zero disables the cap.
	MaxElements int `yaml:"max_elements" mapstructure:"max_elements" validate:"gte=0"`
	// Workers is the concurrency of parallel stages.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=256"`
	// ChunkSize is the default size for Chunk stages.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=1"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	// SampleRate is the fraction of runs traced. Unset means every run; 0 turns sampling off.
	SampleRate *float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1"`
}

// Sampling returns the configured sample rate.
func (t TelemetryConfig) Sampling() float64 {
	if t.SampleRate == nil {
		return DefaultSampleRate
	}
	return *t.SampleRate
}

// Default values for StreamConfig.
const (
	DefaultWorkers    = 4
	DefaultChunkSize  = 64
	DefaultEndpoint   = "localhost:4318"
	DefaultInterval   = 15 * time.Second
	DefaultSampleRate = 1.0
)

// ApplyDefaults fills empty fields.
func (c *StreamConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = DefaultWorkers
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = DefaultChunkSize
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = DefaultEndpoint
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = DefaultInterval
	}
	if c.Telemetry.SampleRate == nil {
		rate := DefaultSampleRate
		c.Telemetry.SampleRate = &rate
	}
}

// Validate checks the service fields first, then the struct tags.
func (c *StreamConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	return validation.Validate(c)
}
