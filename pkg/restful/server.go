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

package restful

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/dataflowassess/dfa/pkg/registry"
	"github.com/dataflowassess/dfa/pkg/restful/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

type Server interface {

	// InstallMiddleware installs server specific middlewares on the root router
	InstallMiddleware(router chi.Router) error
}

type AbstractServer struct {
	Logger           logger.Logger
	ListenAddress    string
	Router           chi.Router
	resourceRegistry *registry.Registry
	server           Server
}

func NewAbstractServer(parentLogger logger.Logger,
	resourceRegistry *registry.Registry,
	server Server,
	listenAddress string) (*AbstractServer, error) {

	newServer := &AbstractServer{
		Logger:           parentLogger.GetChild("server"),
		ListenAddress:    listenAddress,
		resourceRegistry: resourceRegistry,
		server:           server,
		Router:           chi.NewRouter(),
	}

	if err := newServer.InstallMiddleware(newServer.Router); err != nil {
		return nil, errors.Wrap(err, "Failed to install middleware")
	}

	if err := server.InstallMiddleware(newServer.Router); err != nil {
		return nil, errors.Wrap(err, "Failed to install server middleware")
	}

	// create the resources registered
	for _, resourceName := range newServer.resourceRegistry.GetKinds() {
		resourceInstance, _ := newServer.resourceRegistry.Get(resourceName)

		resourceRouter, err := resourceInstance.(*AbstractResource).Initialize(newServer.Logger, server)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to create resource router for %s", resourceName)
		}

		newServer.Router.Mount("/"+resourceName, resourceRouter)

		newServer.Logger.DebugWith("Registered resource", "name", resourceName)
	}

	return newServer, nil
}

// InstallMiddleware installs the middlewares every server gets
func (s *AbstractServer) InstallMiddleware(router chi.Router) error {
	router.Use(middleware.RequestID)
	router.Use(middleware.AlignRequestIDKeyToLogger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.StripSlashes)
	router.Use(middleware.RequestResponseLogger(s.Logger))

	return nil
}

// Listen binds the listen address. the returned listener is handed to Serve
func (s *AbstractServer) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.ListenAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to listen on %s", s.ListenAddress)
	}

	return listener, nil
}

// Serve serves on listener until ctx is done, then shuts down gracefully
func (s *AbstractServer) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: readHeaderTimeout,
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
		s.Logger.InfoWithCtx(ctx, "Shutting down", "listenAddress", s.ListenAddress)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "Failed to shut down gracefully")
		}

		return nil
	}
}
