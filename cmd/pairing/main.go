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

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/guestflow/pairing/pkg/api"
	"github.com/guestflow/pairing/pkg/config"
	"github.com/guestflow/pairing/pkg/db"
	"github.com/guestflow/pairing/pkg/hub"
	"github.com/guestflow/pairing/pkg/logger"
	"github.com/guestflow/pairing/pkg/relay"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to pairing config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logr, err := logger.NewLogger(cfg.Logging, "pairing")
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, &cfg.Database, logr)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	store := db.NewStore(pool, logr)
	h := hub.New(store, logr)

	if cfg.NATS.Enabled {
		r, err := relay.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, h, logr)
		if err != nil {
			return err
		}
		defer r.Close()

		h.SetRelay(r)
	}

	server := api.NewServer(h, store, logr, api.WithAPIKey(cfg.APIKey))

	if err := server.Run(ctx, cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logr.Info().Msg("Pairing service stopped")

	return nil
}
