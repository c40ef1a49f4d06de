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

package app

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/common/healthcheck"
	"github.com/dataflowassess/dfa/pkg/common/status"
	"github.com/dataflowassess/dfa/pkg/dashboard"
	"github.com/dataflowassess/dfa/pkg/diagram"
	"github.com/dataflowassess/dfa/pkg/errgroup"
	"github.com/dataflowassess/dfa/pkg/i18n"
	"github.com/dataflowassess/dfa/pkg/policy"
	"github.com/dataflowassess/dfa/pkg/session"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/v3io/version-go"
)

type Options struct {
	ListenAddress        string
	HealthListenAddress  string
	SessionDir           string
	SessionTTL           time.Duration
	SweepInterval        time.Duration
	MonitorInterval      time.Duration
	MaxConsecutiveErrors int
	AllowedOrigins       []string
	Verbose              bool
}

type Dashboard struct {
	logger logger.Logger
	lock   sync.Mutex
	status status.Status
}

// Run serves the dashboard until ctx is done
func Run(ctx context.Context, options *Options) error {
	rootLogger, err := createLogger(options.Verbose)
	if err != nil {
		return errors.Wrap(err, "Failed to create logger")
	}

	dashboardInstance := &Dashboard{
		logger: rootLogger,
		status: status.Initializing,
	}

	return dashboardInstance.run(ctx, options)
}

func (d *Dashboard) GetStatus() status.Status {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.status
}

func (d *Dashboard) SetStatus(newStatus status.Status) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.status != newStatus {
		d.logger.InfoWith("Updating server healthiness",
			"currentStatus", d.status.String(),
			"desiredStatus", newStatus.String())
	}

	d.status = newStatus
}

// MonitorStore marks the dashboard as failed once the session store errs maxConsecutiveErrors times in a row
func (d *Dashboard) MonitorStore(ctx context.Context,
	interval time.Duration,
	maxConsecutiveErrors int,
	store session.Store) {

	if interval <= 0 {
		return
	}

	consecutiveErrors := maxConsecutiveErrors
	storeTicker := time.NewTicker(interval)
	defer storeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.DebugWith("Stopping session store monitor")
			return
		case <-storeTicker.C:
			if d.GetStatus().OneOf(status.Error) {

				// do not monitor while status is error
				// let the orchestrator restart the process
				continue
			}

			if _, err := store.List(ctx); err == nil {
				consecutiveErrors = maxConsecutiveErrors
				continue
			}

			consecutiveErrors--
			if consecutiveErrors == 0 {
				d.SetStatus(status.Error)
				d.logger.ErrorWith("Failed to list sessions, store might be unhealthy",
					"maxConsecutiveErrors", maxConsecutiveErrors)
			}
		}
	}
}

func (d *Dashboard) run(ctx context.Context, options *Options) error {
	d.logger.InfoWith("Starting dashboard",
		"version", version.Get(),
		"listenAddress", options.ListenAddress,
		"healthListenAddress", options.HealthListenAddress,
		"sessionDir", options.SessionDir,
		"sessionTTL", options.SessionTTL.String())

	questionnaire, err := assessment.NewDefaultQuestionnaire()
	if err != nil {
		return errors.Wrap(err, "Failed to load questionnaire")
	}

	translator, err := i18n.NewTranslator()
	if err != nil {
		return errors.Wrap(err, "Failed to load translations")
	}

	store, err := createStore(d.logger, options.SessionDir)
	if err != nil {
		return errors.Wrap(err, "Failed to create session store")
	}

	sessionManager := session.NewManager(d.logger, store, questionnaire, &session.ManagerOptions{
		TTL:           options.SessionTTL,
		SweepInterval: options.SweepInterval,
	})

	server, err := dashboard.NewServer(d.logger,
		questionnaire,
		translator,
		sessionManager,
		policy.NewGenerator(d.logger),
		diagram.NewGenerator(translator),
		&dashboard.Options{
			ListenAddress:  options.ListenAddress,
			AllowedOrigins: options.AllowedOrigins,
		})
	if err != nil {
		return errors.Wrap(err, "Failed to create server")
	}

	if err := sessionManager.Start(ctx); err != nil {
		return errors.Wrap(err, "Failed to start session manager")
	}

	defer sessionManager.Stop()

	// bind before serving, so ready is only reported once connections are accepted
	apiListener, err := server.Listen()
	if err != nil {
		return errors.Wrap(err, "Failed to start api server")
	}

	var healthCheckServer *healthcheck.Server
	var healthListener net.Listener

	if options.HealthListenAddress != "" {
		healthCheckServer = healthcheck.NewServer(d.logger, d, options.HealthListenAddress)

		if healthListener, err = healthCheckServer.Listen(); err != nil {
			apiListener.Close() // nolint: errcheck
			return errors.Wrap(err, "Failed to start health server")
		}
	}

	errGroup, errGroupCtx := errgroup.WithContext(ctx, d.logger)

	errGroup.Go("api server", func() error {
		return server.Serve(errGroupCtx, apiListener)
	})

	if healthCheckServer != nil {
		errGroup.Go("health server", func() error {
			return healthCheckServer.Serve(errGroupCtx, healthListener)
		})
	}

	errGroup.Go("store monitor", func() error {
		d.MonitorStore(errGroupCtx, options.MonitorInterval, options.MaxConsecutiveErrors, store)
		return nil
	})

	d.SetStatus(status.Ready)

	err = errGroup.Wait()

	d.SetStatus(status.Stopped)

	if err != nil {
		return errors.Wrap(err, "Dashboard stopped unexpectedly")
	}

	d.logger.InfoWith("Dashboard stopped")

	return nil
}

func createStore(parentLogger logger.Logger, sessionDir string) (session.Store, error) {
	if sessionDir == "" {
		return session.NewMemoryStore(), nil
	}

	return session.NewFileStore(parentLogger, sessionDir)
}

func createLogger(verbose bool) (logger.Logger, error) {
	loggerLevel := nucliozap.InfoLevel
	if verbose {
		loggerLevel = nucliozap.DebugLevel
	}

	return nucliozap.NewNuclioZapCmd("dashboard", loggerLevel, common.GetRedactorInstance(os.Stdout))
}
