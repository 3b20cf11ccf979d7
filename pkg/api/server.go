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

// Package api provides the HTTP surface of the pairing service: the
// WebSocket endpoint the devices attach to, plus a small REST surface for
// the admin console (roster, assignments, explicit device removal).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/guestflow/pairing/pkg/db"
	"github.com/guestflow/pairing/pkg/hub"
	"github.com/guestflow/pairing/pkg/logger"
)

// Server wires the hub and the durable stores into an http.Handler.
type Server struct {
	hub    *hub.Hub
	store  db.Service
	logger logger.Logger
	router *mux.Router
	apiKey string
}

// Option configures the server.
type Option func(*Server)

// WithAPIKey guards the REST surface with an X-API-Key check. The
// WebSocket endpoint and health check stay open.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// NewServer creates the API server and installs its routes.
func NewServer(h *hub.Hub, store db.Service, log logger.Logger, options ...Option) *Server {
	s := &Server{
		hub:    h,
		store:  store,
		logger: log,
		router: mux.NewRouter(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.hub.ServeWS)

	rest := s.router.PathPrefix("/api").Subrouter()
	rest.Use(apiKeyMiddleware(s.apiKey, s.logger))
	rest.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	rest.HandleFunc("/devices/{id}", s.handleDeleteDevice).Methods(http.MethodDelete)
	rest.HandleFunc("/assignments", s.handleListAssignments).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", addr).Msg("API server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	hotelID := r.URL.Query().Get("hotel_id")
	if hotelID == "" {
		writeError(w, "hotel_id is required", http.StatusBadRequest)
		return
	}

	roster, err := s.hub.Roster(r.Context(), hotelID)
	if err != nil {
		s.logger.Error().Err(err).Str("hotel_id", hotelID).Msg("Roster query failed")
		writeError(w, "failed to list devices", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": roster})
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	// Drop the live connection entry first so the device cannot linger
	// in the roster after its directory row is gone.
	if entry, ok := s.hub.Registry().Remove(deviceID); ok {
		defer s.hub.BroadcastRoster(r.Context(), entry.HotelID)
	}

	if err := s.store.DeleteDevice(r.Context(), deviceID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "device not found", http.StatusNotFound)
			return
		}

		s.logger.Error().Err(err).Str("device_id", deviceID).Msg("Device delete failed")
		writeError(w, "failed to delete device", http.StatusInternalServerError)

		return
	}

	s.logger.Info().Str("device_id", deviceID).Msg("Device removed from directory")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	hotelID := r.URL.Query().Get("hotel_id")
	if hotelID == "" {
		writeError(w, "hotel_id is required", http.StatusBadRequest)
		return
	}

	assignments, err := s.store.ListAssignmentsByHotel(r.Context(), hotelID)
	if err != nil {
		s.logger.Error().Err(err).Str("hotel_id", hotelID).Msg("Assignment query failed")
		writeError(w, "failed to list assignments", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
