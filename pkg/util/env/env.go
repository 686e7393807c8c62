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

// Package env reads typed configuration values from environment variables,
// falling back to defaults when a variable is unset or unparseable.
package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
)

// lookup resolves one environment variable through the given parser. A
// missing or malformed value yields defaultVal; each resolution emits a log
// line so a misconfigured deployment is diagnosable from startup output.
func lookup[T any](key string, defaultVal T, parser func(string) (T, error), logger logr.Logger) T {
	raw, present := os.LookupEnv(key)
	if !present {
		logger.Info("Environment variable unset, falling back to default", "name", key, "default", defaultVal)
		return defaultVal
	}

	parsed, err := parser(raw)
	if err != nil {
		logger.Info(fmt.Sprintf("Environment variable does not parse as %T, falling back to default", defaultVal),
			"name", key, "raw", raw, "error", err, "default", defaultVal)
		return defaultVal
	}

	logger.Info("Loaded configuration from environment", "name", key, "value", parsed)
	return parsed
}

// GetInt reads key as an int, returning defaultVal when unset or invalid.
func GetInt(key string, defaultVal int, logger logr.Logger) int {
	return lookup(key, defaultVal, strconv.Atoi, logger)
}

// GetFloat reads key as a float64, returning defaultVal when unset or
// invalid.
func GetFloat(key string, defaultVal float64, logger logr.Logger) float64 {
	parser := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	return lookup(key, defaultVal, parser, logger)
}

// GetDuration reads key as a time.Duration, returning defaultVal when unset
// or invalid.
func GetDuration(key string, defaultVal time.Duration, logger logr.Logger) time.Duration {
	return lookup(key, defaultVal, time.ParseDuration, logger)
}

// GetString reads key, returning defaultVal when unset.
func GetString(key string, defaultVal string, logger logr.Logger) string {
	parser := func(s string) (string, error) { return s, nil }
	return lookup(key, defaultVal, parser, logger)
}

// GetBool reads key as a bool, returning defaultVal when unset or invalid.
func GetBool(key string, defaultVal bool, logger logr.Logger) bool {
	return lookup(key, defaultVal, strconv.ParseBool, logger)
}
