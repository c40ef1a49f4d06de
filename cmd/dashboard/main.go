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

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dataflowassess/dfa/cmd/dashboard/app"
	"github.com/dataflowassess/dfa/pkg/common"
	_ "github.com/dataflowassess/dfa/pkg/dashboard/resource"
	"github.com/dataflowassess/dfa/pkg/session"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func main() {
	if err := newDashboardCommand().Execute(); err != nil {
		errors.PrintErrorStack(os.Stderr, err, 5)

		os.Exit(1)
	}

	os.Exit(0)
}

func newDashboardCommand() *cobra.Command {
	options := &app.Options{}

	cmd := &cobra.Command{
		Use:           "dashboard",
		Short:         "Serve the data flow assessment dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return app.Run(ctx, options)
		},
	}

	allowedOriginsDefault := lo.Filter(strings.Split(common.GetEnvOrDefaultString("DFA_DASHBOARD_ALLOWED_ORIGINS", "*"), ","),
		func(origin string, _ int) bool {
			return strings.TrimSpace(origin) != ""
		})

	cmd.Flags().StringVar(&options.ListenAddress,
		"listen-addr",
		common.GetEnvOrDefaultString("DFA_DASHBOARD_LISTEN_ADDR", ":8501"),
		"IP/port on which the dashboard listens (env: DFA_DASHBOARD_LISTEN_ADDR)")
	cmd.Flags().StringVar(&options.HealthListenAddress,
		"health-listen-addr",
		common.GetEnvOrDefaultString("DFA_DASHBOARD_HEALTH_LISTEN_ADDR", ":8082"),
		"IP/port of the liveness and readiness probes, empty to disable (env: DFA_DASHBOARD_HEALTH_LISTEN_ADDR)")
	cmd.Flags().StringVar(&options.SessionDir,
		"session-dir",
		common.GetEnvOrDefaultString("DFA_DASHBOARD_SESSION_DIR", ""),
		"Directory to persist sessions in, kept in memory when empty (env: DFA_DASHBOARD_SESSION_DIR)")
	cmd.Flags().DurationVar(&options.SessionTTL,
		"session-ttl",
		common.GetEnvOrDefaultDuration("DFA_DASHBOARD_SESSION_TTL", session.DefaultTTL),
		"Idle time after which sessions are deleted (env: DFA_DASHBOARD_SESSION_TTL)")
	cmd.Flags().DurationVar(&options.SweepInterval,
		"sweep-interval",
		common.GetEnvOrDefaultDuration("DFA_DASHBOARD_SWEEP_INTERVAL", session.DefaultSweepInterval),
		"Interval between expired session sweeps (env: DFA_DASHBOARD_SWEEP_INTERVAL)")
	cmd.Flags().DurationVar(&options.MonitorInterval,
		"store-monitor-interval",
		common.GetEnvOrDefaultDuration("DFA_DASHBOARD_STORE_MONITOR_INTERVAL", 30*time.Second),
		"Interval between session store health checks")
	cmd.Flags().IntVar(&options.MaxConsecutiveErrors,
		"store-max-consecutive-errors",
		common.GetEnvOrDefaultInt("DFA_DASHBOARD_STORE_MAX_CONSECUTIVE_ERRORS", 5),
		"Failed store health checks after which the dashboard reports itself unhealthy")
	cmd.Flags().StringSliceVar(&options.AllowedOrigins,
		"allowed-origins",
		allowedOriginsDefault,
		"CORS allowed origins (env: DFA_DASHBOARD_ALLOWED_ORIGINS, comma separated)")
	cmd.Flags().BoolVarP(&options.Verbose,
		"verbose",
		"v",
		common.GetEnvOrDefaultBool("DFA_DASHBOARD_VERBOSE", false),
		"Verbose output")

	return cmd
}
