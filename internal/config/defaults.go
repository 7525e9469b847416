package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultURL                 = "wss://ws01.casinocoin.org:4443"
	DefaultRequestTimeout      = 30 * time.Second
	DefaultBackoffInitialDelay = 1 * time.Second
	DefaultBackoffMaxDelay     = 30 * time.Second
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultStream              = "ledgerClosed"
	DefaultBatchSize           = 500
	DefaultFlushInterval       = 1 * time.Second
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
)

func (c *Config) applyDefaults() {
	// Client defaults
	if c.Client.URL == "" {
		c.Client.URL = DefaultURL
	}
	if c.Client.RequestTimeout == 0 {
		c.Client.RequestTimeout = DefaultRequestTimeout
	}
	if c.Client.Backoff.InitialDelay == 0 {
		c.Client.Backoff.InitialDelay = DefaultBackoffInitialDelay
	}
	if c.Client.Backoff.MaxDelay == 0 {
		c.Client.Backoff.MaxDelay = DefaultBackoffMaxDelay
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Recorder defaults
	if c.Recorder.Stream == "" {
		c.Recorder.Stream = DefaultStream
	}
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
