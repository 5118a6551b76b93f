// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/clashops/internal/logging"
)

// defaultDrain bounds shutdown when the caller gives no window.
const defaultDrain = 10 * time.Second

// HTTPServerService runs the API server under suture.
//
// Analyze requests can block until a category's wait deadline, so stopping
// the service first stops accepting connections and then waits up to the
// drain window for those requests to answer. Requests still running after
// the window have their connections closed.
type HTTPServerService struct {
	server   *http.Server
	listener net.Listener
	drain    time.Duration
}

// HTTPOption configures an HTTPServerService.
type HTTPOption func(*HTTPServerService)

// WithListener serves on ln instead of listening on server.Addr.
func WithListener(ln net.Listener) HTTPOption {
	return func(h *HTTPServerService) { h.listener = ln }
}

// NewHTTPServerService wraps server. A non-positive drain means 10s.
func NewHTTPServerService(server *http.Server, drain time.Duration, opts ...HTTPOption) *HTTPServerService {
	if drain <= 0 {
		drain = defaultDrain
	}
	h := &HTTPServerService{server: server, drain: drain}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve implements suture.Service. A bind failure is returned so suture
// retries with backoff. A server closed from outside cannot be served
// again and is not restarted.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	ln := h.listener
	if ln == nil {
		addr := h.server.Addr
		if addr == "" {
			addr = ":http"
		}
		var err error
		if ln, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
	}

	served := make(chan error, 1)
	go func() { served <- h.server.Serve(ln) }()
	logging.Info().Str("addr", ln.Addr().String()).Msg("API listening")

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return suture.ErrDoNotRestart
		}
		return fmt.Errorf("serve API: %w", err)

	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.drain)
	defer cancel()
	logging.Info().Dur("drain", h.drain).Msg("API draining in-flight requests")

	start := time.Now()
	if err := h.server.Shutdown(drainCtx); err != nil {
		_ = h.server.Close()
		<-served
		logging.Warn().Err(err).Msg("API drain window exceeded, connections closed")
		return fmt.Errorf("drain API: %w", err)
	}
	<-served
	logging.Info().Dur("took", time.Since(start)).Msg("API drained")
	return ctx.Err()
}

func (h *HTTPServerService) String() string {
	return "http-server"
}
