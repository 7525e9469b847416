package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Client.URL == "" {
		return errors.New("client.url is required")
	}
	if c.Client.Backoff.InitialDelay <= 0 {
		return errors.New("client.backoff.initial_delay must be > 0")
	}
	if c.Client.Backoff.MaxDelay <= 0 {
		return errors.New("client.backoff.max_delay must be > 0")
	}
	if c.Client.Backoff.InitialDelay > c.Client.Backoff.MaxDelay {
		return fmt.Errorf("client.backoff.initial_delay (%v) cannot exceed max_delay (%v)",
			c.Client.Backoff.InitialDelay, c.Client.Backoff.MaxDelay)
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.FlushInterval <= 0 {
		return errors.New("recorder.flush_interval must be > 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

// ValidateDatabase checks the database section. Only the recorder needs a
// database, so this is separate from Validate.
func (c *Config) ValidateDatabase() error {
	db := &c.Database
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.Name == "" {
		return errors.New("database.name is required")
	}
	if db.User == "" {
		return errors.New("database.user is required")
	}
	if db.Password == "" {
		return errors.New("database.password is required")
	}
	if db.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if db.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns)
	}
	return nil
}
