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

// Package watch contains the command that polls a bucket on an
// interval.
package watch

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/field-eng-powertools/stopper"
	"github.com/cockroachdb/runpoll/internal/cmd/poll"
	"github.com/cockroachdb/runpoll/internal/poller"
	"github.com/cockroachdb/runpoll/internal/util/stdcmd"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type config struct {
	poll.Config
	// MaxAge is the longest time since a successful cycle before the
	// health check fails.
	MaxAge time.Duration
}

func (c *config) Bind(f *pflag.FlagSet) {
	c.Config.Bind(f)
	c.Poller.BindWatch(f)
	f.DurationVar(&c.MaxAge, "healthMaxAge", 0,
		"report unhealthy if no cycle has succeeded for this long; defaults to three intervals")
}

func (c *config) Preflight() error {
	if err := c.Config.Preflight(); err != nil {
		return err
	}
	if c.MaxAge < 0 {
		return errors.New("healthMaxAge must not be negative")
	}
	if c.MaxAge == 0 {
		c.MaxAge = 3 * c.Poller.Interval
	}
	return nil
}

// health tracks the time of the last successful cycle. Until a cycle
// succeeds, the age is measured from the time the watch started.
type health struct {
	maxAge  atomic.Int64 // A time.Duration.
	started atomic.Pointer[time.Time]
	last    atomic.Pointer[time.Time]
	lastErr atomic.Pointer[error]
}

func (h *health) start(maxAge time.Duration) {
	h.maxAge.Store(int64(maxAge))
	now := time.Now()
	h.started.Store(&now)
}

func (h *health) record(err error) {
	if err != nil {
		h.lastErr.Store(&err)
		return
	}
	now := time.Now()
	h.last.Store(&now)
	h.lastErr.Store(nil)
}

func (h *health) check() error {
	since := h.last.Load()
	if since == nil {
		if since = h.started.Load(); since == nil {
			return nil
		}
	}
	if age := time.Since(*since); age > time.Duration(h.maxAge.Load()) {
		if err := h.lastErr.Load(); err != nil {
			return errors.Wrapf(*err, "no successful cycle in %s", age)
		}
		return errors.Errorf("no successful cycle in %s", age)
	}
	return nil
}

// Command returns the watch command.
func Command() *cobra.Command {
	var cfg config
	h := &health{}
	return stdcmd.New(&stdcmd.Template{
		Args:   cobra.ExactArgs(2),
		Config: &cfg,
		Health: h.check,
		Run: func(ctx *stopper.Context, cmd *cobra.Command, args []string) error {
			h.start(cfg.MaxAge)
			bucketName, prefix := args[0], args[1]
			s, err := cfg.Open(ctx, bucketName)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Driver.Watch(ctx, s.Location, bucketName, prefix, cfg.Poller.Lookback,
				func(report *poller.CycleReport, err error) {
					h.record(err)
					if report != nil {
						poll.Log(report)
					}
				})
		},
		Short: "poll a bucket on an interval for completed runs and process them",
		Use:   "watch <bucket> <prefix>",
	})
}
