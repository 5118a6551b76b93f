// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS server for single-node deployments.
type EmbeddedServer struct {
	srv *server.Server
}

// StartEmbeddedServer starts a core NATS server on localhost. port -1 picks
// a free port.
func StartEmbeddedServer(port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "clashops-events",
		Host:       "127.0.0.1",
		Port:       port,
		NoSigs:     true,
		NoLog:      true,
		MaxPayload: 1 << 20,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server not ready within 10s")
	}
	return &EmbeddedServer{srv: ns}, nil
}

// ClientURL is the nats:// URL clients should dial.
func (s *EmbeddedServer) ClientURL() string {
	return s.srv.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.srv.Shutdown()
	s.srv.WaitForShutdown()
}
