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

// Package main contains the runpoll command, which discovers completed
// runs in an object store and processes each of them once.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/runpoll/internal/cmd/poll"
	"github.com/cockroachdb/runpoll/internal/cmd/version"
	"github.com/cockroachdb/runpoll/internal/cmd/watch"
	"github.com/cockroachdb/runpoll/internal/util/logfmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var opts logfmt.Options
	root := &cobra.Command{
		Use:           "runpoll",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cleanup, err := logfmt.Setup(&opts)
			if err != nil {
				return err
			}
			log.DeferExitHandler(cleanup)
			return nil
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.Format, "logFormat", "text", "choose log output format [ fluent, text ]")
	f.StringVar(&opts.Destination, "logDestination", "", "write logs to a file, instead of stdout")
	f.CountVarP(&opts.Verbosity, "verbose", "v", "increase logging verbosity to debug; repeat for trace")

	root.AddCommand(
		poll.Command(),
		version.Command(),
		watch.Command(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	log.DeferExitHandler(cancel)

	if err := root.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("exited")
		log.Exit(1)
	}
	log.Exit(0)
}
