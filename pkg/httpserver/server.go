/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
)

var logger = log.New("httpserver")

// Handler pairs an HTTP handler with the path it is served on.
type Handler struct {
	Path    string
	Handler http.Handler
}

// Server implements the operational HTTP server, serving the metrics and
// health check endpoints.
type Server struct {
	httpServer *http.Server
	started    uint32
}

// New returns a new HTTP server.
func New(addr string, idleTimeout, readHeaderTimeout time.Duration, handlers ...Handler) *Server {
	router := http.NewServeMux()

	for _, handler := range handlers {
		logger.Info("Registering handler", logfields.WithServiceName(handler.Path))

		router.Handle(handler.Path, handler.Handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start starts the HTTP server in a separate Go routine.
func (s *Server) Start() error {
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return fmt.Errorf("server already started")
	}

	go func() {
		logger.Info("Listening for requests", logfields.WithAddress(s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("Failed to start server on [%s]: %s", s.httpServer.Addr, err))
		}

		atomic.StoreUint32(&s.started, 0)

		logger.Info("Server has stopped")
	}()

	return nil
}

// Stop stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&s.started, 1, 0) {
		return fmt.Errorf("cannot stop HTTP server since it hasn't been started")
	}

	return s.httpServer.Shutdown(ctx)
}
