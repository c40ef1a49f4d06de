/*
Copyright 2024 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package healthcheck

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/dataflowassess/dfa/pkg/common/status"

	"github.com/heptiolabs/healthcheck"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const maxGoroutines = 10000

// Server serves /live and /ready on a listener of its own
type Server struct {
	ListenAddress  string
	Logger         logger.Logger
	StatusProvider status.Provider
	Handler        healthcheck.Handler
}

func NewServer(parentLogger logger.Logger, statusProvider status.Provider, listenAddress string) *Server {
	server := &Server{
		ListenAddress:  listenAddress,
		Logger:         parentLogger.GetChild("healthcheck.server"),
		StatusProvider: statusProvider,
		Handler:        healthcheck.NewHandler(),
	}

	server.Handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	server.Handler.AddLivenessCheck("status", server.checkNotFailed)
	server.Handler.AddReadinessCheck("status", server.checkReady)

	return server
}

// Listen binds the listen address. the returned listener is handed to Serve
func (s *Server) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.ListenAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to listen on %s", s.ListenAddress)
	}

	return listener, nil
}

// Serve serves on listener until ctx is done
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	s.Logger.InfoWithCtx(ctx, "Listening", "listenAddress", listener.Addr().String())

	select {
	case err := <-errChan:
		return errors.Wrapf(err, "Failed to serve on %s", listener.Addr().String())
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) checkReady() error {
	if currentStatus := s.StatusProvider.GetStatus(); currentStatus != status.Ready {
		return errors.Errorf("Status is %s", currentStatus)
	}

	return nil
}

func (s *Server) checkNotFailed() error {
	if currentStatus := s.StatusProvider.GetStatus(); currentStatus.OneOf(status.Error) {
		return errors.Errorf("Status is %s", currentStatus)
	}

	return nil
}
