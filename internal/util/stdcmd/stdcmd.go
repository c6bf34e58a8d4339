// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package stdcmd contains a template for building a standard CLI
// command with an optional metrics endpoint.
package stdcmd

import (
	"context"
	"net"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers.
	"runtime/debug"
	"time"

	"github.com/cockroachdb/field-eng-powertools/stopper"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// MetricsAddrFlag is a global flag that will start an HTTP server.
const MetricsAddrFlag = "metricsAddr"

// Config is our standard protocol for configuration objects.
type Config interface {
	Bind(set *pflag.FlagSet)
	Preflight() error
}

// A Template contains the input for [New].
type Template struct {
	// Passed to [cobra.Command.Args].
	Args cobra.PositionalArgs
	// An optional object for CLI flag registration. Its Preflight
	// method is called before Run.
	Config Config
	// An optional health check reported by the metrics server.
	Health func() error
	// An optional default value for [MetricsAddrFlag].
	Metrics string
	// Run performs the work of the command. The context is stopped
	// when the process receives an interrupt.
	Run func(ctx *stopper.Context, cmd *cobra.Command, args []string) error
	// Passed to [cobra.Command.Short].
	Short string
	// Passed to [cobra.Command.Use].
	Use string
	// Called once the metrics server, if any, is running.
	testCallback func(addr net.Addr)
}

// New constructs a standard command.
func New(t *Template) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Args:  t.Args,
		Short: t.Short,
		Use:   t.Use,
		RunE: func(cmd *cobra.Command, args []string) error {
			if t.Config != nil {
				if err := t.Config.Preflight(); err != nil {
					return err
				}
			}
			// Print build info on startup so we always have a place
			// to start debugging from.
			if bi, ok := debug.ReadBuildInfo(); ok {
				info := make(log.Fields, len(bi.Settings))
				for _, s := range bi.Settings {
					info[s.Key] = s.Value
				}
				log.WithFields(info).Debug("runpoll starting")
			}

			ctx := stopper.WithContext(cmd.Context())
			defer ctx.Stop(time.Second)

			if metricsAddr != "" {
				addr, cancelServer, err := MetricsServer(metricsAddr, t.Health)
				if err != nil {
					return err
				}
				defer cancelServer()
				if t.testCallback != nil {
					t.testCallback(addr)
				}
			}
			return t.Run(ctx, cmd, args)
		},
	}
	if t.Config != nil {
		t.Config.Bind(cmd.Flags())
	}
	cmd.Flags().StringVar(&metricsAddr, MetricsAddrFlag, t.Metrics,
		"a host:port on which to serve metrics and diagnostics")
	return cmd
}

// AddHandlers populates the ServeMux with diagnostic endpoints.
func AddHandlers(mux *http.ServeMux, health func() error) {
	// The pprof handlers attach themselves to the system-default mux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.HandleFunc("/_/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				log.WithError(err).Warn("health check failed")
				http.Error(w, "health check failed", http.StatusInternalServerError)
				return
			}
		}
		http.Error(w, "OK", http.StatusOK)
	})
	mux.Handle("/_/varz", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				ErrorLog:          log.StandardLogger().WithField("promhttp", "true"),
			})))
	mux.Handle("/_/", http.NotFoundHandler()) // Reserve all under /_/
}

// MetricsServer starts a trivial HTTP server which runs until canceled.
// It returns the address that the server is bound to.
func MetricsServer(bindAddr string, health func() error) (net.Addr, func(), error) {
	mux := &http.ServeMux{}
	AddHandlers(mux, health)
	mux.Handle("/", http.NotFoundHandler())

	l, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	srv := &http.Server{
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("metrics server bound to %s", l.Addr())
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics server exited")
		}
	}()
	return l.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
