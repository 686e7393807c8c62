/*
Copyright 2025 The Wire Server Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package threadbudget

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/q3k/wire-server/pkg/util/env"
)

// Default configuration values.
const (
	// DefaultLimit is the default ceiling on concurrently live tasks.
	DefaultLimit = 300
	// DefaultReaperInterval is the default cadence of the background reaper.
	DefaultReaperInterval = 1 * time.Second
	// DefaultShutdownGracePeriod is the default time Shutdown waits for
	// cancelled tasks to finish before returning.
	DefaultShutdownGracePeriod = 5 * time.Second
)

// Environment variables for LoadConfigFromEnv.
const (
	EnvLimit               = "THREAD_BUDGET_LIMIT"
	EnvReaperInterval      = "THREAD_BUDGET_REAPER_INTERVAL"
	EnvShutdownGracePeriod = "THREAD_BUDGET_SHUTDOWN_GRACE_PERIOD"
)

// Config holds the configuration for a Budget.
type Config struct {
	// Limit is the maximum number of tasks that may be live simultaneously.
	// Required: must be at least 1. Immutable once the Budget is created.
	Limit int

	// ReaperInterval is the cadence at which the reaper sweeps the live set
	// for finished tasks and publishes the live-count gauge.
	// Optional: defaults to DefaultReaperInterval.
	ReaperInterval time.Duration

	// ShutdownGracePeriod bounds how long Shutdown waits for cancelled tasks
	// to drain before giving up.
	// Optional: defaults to DefaultShutdownGracePeriod.
	ShutdownGracePeriod time.Duration
}

// ConfigOption is a functional option for configuring a Budget.
type ConfigOption func(*Config)

// NewConfig creates a new Config with the given options, applying defaults
// and validation.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	c := &Config{
		Limit:               DefaultLimit,
		ReaperInterval:      DefaultReaperInterval,
		ShutdownGracePeriod: DefaultShutdownGracePeriod,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithLimit sets the ceiling on concurrently live tasks.
func WithLimit(n int) ConfigOption {
	return func(c *Config) {
		c.Limit = n
	}
}

// WithReaperInterval sets the reaper cadence.
func WithReaperInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ReaperInterval = d
	}
}

// WithShutdownGracePeriod sets the bounded wait applied during Shutdown.
func WithShutdownGracePeriod(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ShutdownGracePeriod = d
	}
}

// LoadConfigFromEnv builds a Config from environment variables. Unset,
// unparseable, or out-of-range values fall back to the defaults with a log
// line; the returned Config is always valid.
func LoadConfigFromEnv(logger logr.Logger) *Config {
	c := &Config{
		Limit:               env.GetInt(EnvLimit, DefaultLimit, logger),
		ReaperInterval:      env.GetDuration(EnvReaperInterval, DefaultReaperInterval, logger),
		ShutdownGracePeriod: env.GetDuration(EnvShutdownGracePeriod, DefaultShutdownGracePeriod, logger),
	}

	if c.Limit < 1 {
		logger.Info("Invalid thread budget limit, using default value",
			"value", c.Limit, "defaultValue", DefaultLimit)
		c.Limit = DefaultLimit
	}
	if c.ReaperInterval <= 0 {
		logger.Info("Invalid reaper interval, using default value",
			"value", c.ReaperInterval, "defaultValue", DefaultReaperInterval)
		c.ReaperInterval = DefaultReaperInterval
	}
	if c.ShutdownGracePeriod <= 0 {
		logger.Info("Invalid shutdown grace period, using default value",
			"value", c.ShutdownGracePeriod, "defaultValue", DefaultShutdownGracePeriod)
		c.ShutdownGracePeriod = DefaultShutdownGracePeriod
	}
	return c
}

// validate checks the configuration for validity.
func (c *Config) validate() error {
	if c.Limit < 1 {
		return fmt.Errorf("Limit must be at least 1, but got %d", c.Limit)
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("ReaperInterval must be positive, but got %v", c.ReaperInterval)
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("ShutdownGracePeriod must be positive, but got %v", c.ShutdownGracePeriod)
	}
	return nil
}
