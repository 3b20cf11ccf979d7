/*
 * Copyright 2026 Guestflow, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log output for the service.
type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// DefaultConfig builds a Config from the standard environment knobs.
func DefaultConfig() *Config {
	return &Config{
		Level:      getEnvOrDefault("LOG_LEVEL", "info"),
		Debug:      getEnvBoolOrDefault("DEBUG", false),
		Output:     getEnvOrDefault("LOG_OUTPUT", "stdout"),
		TimeFormat: getEnvOrDefault("LOG_TIME_FORMAT", ""),
	}
}

// NewLogger builds a zerolog-backed Logger from config. The component name
// is stamped on every event so multi-service log streams stay attributable.
func NewLogger(config *Config, component string) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	zl := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return &zerologAdapter{logger: zl}, nil
}

type zerologAdapter struct {
	logger zerolog.Logger
}

func (z *zerologAdapter) Trace() *zerolog.Event { return z.logger.Trace() }
func (z *zerologAdapter) Debug() *zerolog.Event { return z.logger.Debug() }
func (z *zerologAdapter) Info() *zerolog.Event  { return z.logger.Info() }
func (z *zerologAdapter) Warn() *zerolog.Event  { return z.logger.Warn() }
func (z *zerologAdapter) Error() *zerolog.Event { return z.logger.Error() }
func (z *zerologAdapter) Fatal() *zerolog.Event { return z.logger.Fatal() }
func (z *zerologAdapter) With() zerolog.Context { return z.logger.With() }

func (z *zerologAdapter) WithComponent(component string) zerolog.Logger {
	return z.logger.With().Str("component", component).Logger()
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvBoolOrDefault(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}
