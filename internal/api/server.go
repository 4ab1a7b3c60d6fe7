// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/basinlabs/cuid/internal/logging"
)

var log = logging.For("api")

// shutdownGrace bounds how long in-flight HTTP requests get to finish
// once shutdown begins.
const shutdownGrace = 5 * time.Second

// Server wraps the HTTP listener with the control plane's graceful
// shutdown sequence: stop accepting new connections, drain in-flight
// requests, then return.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a Server bound to host:port serving router.
func NewServer(host string, port int, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, port),
			Handler: router,
		},
	}
}

// ListenAndServe blocks serving HTTP until the server is shut down;
// http.ErrServerClosed is not treated as a failure.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP listener within shutdownGrace, then returns.
// Callers are responsible for flushing their own databases after this
// returns, since the server itself owns no storage.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	log.Info().Msg("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
