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

// Package config loads the pairing service configuration from a JSON file
// with environment overrides for the common deployment knobs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/guestflow/pairing/pkg/db"
	"github.com/guestflow/pairing/pkg/logger"
)

// ErrDatabaseURLRequired indicates the config names no Postgres target.
var ErrDatabaseURLRequired = errors.New("config: database.url is required")

// NATSConfig enables the optional cross-process fan-out relay.
type NATSConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix"`
}

// Config is the full service configuration.
type Config struct {
	ListenAddr string         `json:"listen_addr"`
	APIKey     string         `json:"api_key"`
	Database   db.Config      `json:"database"`
	Logging    *logger.Config `json:"logging"`
	NATS       NATSConfig     `json:"nats"`
}

// Load reads the config file at path (optional), applies environment
// overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file '%s': %w", path, err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Database.URL == "" {
		return nil, ErrDatabaseURLRequired
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}

	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.Enabled = true
		c.NATS.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}

	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "pairing"
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if c.Database.ApplicationName == "" {
		c.Database.ApplicationName = "pairing"
	}
}
