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

package poller

import (
	"context"
	"time"

	"github.com/cockroachdb/field-eng-powertools/stopper"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Watch runs a cycle immediately and then once per configured
// interval until the context is stopped. Cycles never overlap. A fatal
// cycle error is logged and the next cycle proceeds as scheduled,
// except for a checkpoint that cannot be loaded, which halts the loop
// and is returned. Each cycle is bounded by the configured timeout.
// The report callback, if non-nil, receives the result of every cycle;
// the report is nil if the cycle failed before processing any runs.
func (d *Driver) Watch(
	ctx *stopper.Context,
	location, bucketName, prefix string,
	lookback time.Duration,
	report func(*CycleReport, error),
) error {
	logger := log.WithField("bucket", bucketName)
	logger.Infof("watching %q every %s", prefix, d.config.Interval)
	for {
		rep, err := d.timedCycle(ctx, location, bucketName, prefix, lookback)
		if report != nil {
			report(rep, err)
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrCheckpointLoad):
			return err
		case ctx.IsStopping():
			return nil
		default:
			logger.WithError(err).Error("polling cycle failed; will retry")
		}

		select {
		case <-ctx.Stopping():
			return nil
		case <-time.After(d.config.Interval):
		}
	}
}

func (d *Driver) timedCycle(
	ctx context.Context, location, bucketName, prefix string, lookback time.Duration,
) (*CycleReport, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}
	return d.RunOneCycle(ctx, location, bucketName, prefix, lookback)
}
