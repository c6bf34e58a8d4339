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

// Package poll contains the command that performs a single polling
// cycle.
package poll

import (
	"github.com/cockroachdb/field-eng-powertools/stopper"
	"github.com/cockroachdb/runpoll/internal/poller"
	"github.com/cockroachdb/runpoll/internal/util/stdcmd"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Command returns the poll command.
func Command() *cobra.Command {
	var cfg Config
	return stdcmd.New(&stdcmd.Template{
		Args:   cobra.ExactArgs(2),
		Config: &cfg,
		Run: func(ctx *stopper.Context, cmd *cobra.Command, args []string) error {
			bucketName, prefix := args[0], args[1]
			s, err := cfg.Open(ctx, bucketName)
			if err != nil {
				return err
			}
			defer s.Close()
			report, err := cfg.Cycle(ctx, s, bucketName, prefix)
			if report != nil {
				Log(report)
			}
			return err
		},
		Short: "poll a bucket once for completed runs and process them",
		Use:   "poll <bucket> <prefix>",
	})
}

// Log writes a summary of the cycle.
func Log(report *poller.CycleReport) {
	logger := log.WithFields(log.Fields{
		"bucket":     report.Bucket,
		"cycle":      report.CycleID,
		"discovered": report.Discovered,
		"processed":  report.Processed,
	})
	if len(report.FailedRunIDs) > 0 {
		logger.WithField("failed", report.FailedRunIDs).
			Warnf("%d of %d runs failed", report.Failed(), report.Discovered)
		return
	}
	logger.Infof("processed %d new runs", report.Processed)
}
