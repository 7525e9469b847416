// Package config loads and validates YAML configuration for the client
// commands.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Client   ClientConfig   `yaml:"client"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ClientConfig holds connection settings.
type ClientConfig struct {
	// URL is the WebSocket endpoint.
	URL string `yaml:"url"`

	// RequestTimeout bounds connect and per-request waits. Negative
	// disables per-request timeouts entirely.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig bounds reconnect delays.
type BackoffConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// DBConfig holds the Postgres connection for the recorder.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds stream archiving settings.
type RecorderConfig struct {
	// Stream is the message category the recorder archives.
	Stream        string        `yaml:"stream"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
