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

// Package db implements the durable stores for the pairing service on top
// of a pgx connection pool: the device directory, assignments, and the
// signature write-through to the contract table owned by the check-in
// application.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guestflow/pairing/pkg/logger"
)

// Config holds the Postgres connection settings.
type Config struct {
	URL               string        `json:"url"`
	MaxConnections    int32         `json:"max_connections"`
	MinConnections    int32         `json:"min_connections"`
	MaxConnLifetime   time.Duration `json:"max_conn_lifetime"`
	HealthCheckPeriod time.Duration `json:"health_check_period"`
	ApplicationName   string        `json:"application_name"`
}

// NewPool dials Postgres and returns a pgx pool verified with one ping.
func NewPool(ctx context.Context, cfg *Config, log logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("db: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	if cfg.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("db: failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping failed: %w", err)
	}

	log.Info().
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to Postgres")

	return pool, nil
}
