// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/logging"
)

// Server runs the HTTP listener as a supervised service.
type Server struct {
	srv *http.Server
}

// NewServer builds the listener around the assembled router.
func NewServer(handler http.Handler, cfg *config.ServerConfig) *Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// String names the service in supervisor logs.
func (s *Server) String() string { return "http-server" }

// Serve runs the listener until ctx is cancelled, then shuts down
// gracefully with a bounded drain window.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logging.Err(err).Msg("HTTP server shutdown failed")
		return err
	}
	logging.Info().Msg("HTTP server stopped")
	return ctx.Err()
}
