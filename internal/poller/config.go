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
	"strconv"
	"time"

	"github.com/cockroachdb/runpoll/internal/scanner"
	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Defaults for Config.
const (
	DefaultInterval = time.Minute
	DefaultLookback = time.Hour
)

// Config controls the Driver.
type Config struct {
	// Interval between the start of two cycles in watch mode.
	Interval time.Duration
	// Lookback is the recency window applied by the scanner.
	Lookback time.Duration
	// PersistEach saves the checkpoint after every successful run, in
	// addition to the save at the end of the cycle.
	PersistEach bool
	// Scanner configuration. Now, if set, is also used for the last
	// poll timestamp.
	Scanner scanner.Config
	// Timeout bounds a single cycle started by Watch or by the CLI.
	Timeout time.Duration
	// Workers bounds the number of runs processed concurrently.
	Workers int
}

// hours is a flag value that accepts a fractional number of hours.
type hours time.Duration

var _ pflag.Value = (*hours)(nil)

func (h *hours) Set(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "could not parse %q as hours", s)
	}
	*h = hours(f * float64(time.Hour))
	return nil
}

func (h *hours) String() string {
	return strconv.FormatFloat(time.Duration(*h).Hours(), 'f', -1, 64)
}

func (h *hours) Type() string { return "hours" }

// Bind adds flags to the set.
func (c *Config) Bind(f *pflag.FlagSet) {
	c.Lookback = DefaultLookback
	f.Var((*hours)(&c.Lookback), "lookback",
		"only consider runs that completed within this many hours")
	f.BoolVar(&c.PersistEach, "persistEach", false,
		"save the checkpoint after each successful run, not only at the end of a cycle")
	f.IntVar(&c.Scanner.PageSize, "pageSize", bucket.DefaultPageSize,
		"the number of object keys requested per listing call")
	f.DurationVar(&c.Scanner.RetryInitialInterval, "retryInitial", scanner.DefaultRetryInitialInterval,
		"initial time to wait before retrying a listing that failed because of a transient error")
	f.DurationVar(&c.Scanner.RetryMaxTime, "retryMax", scanner.DefaultRetryMaxTime,
		"maximum time allowed for retrying a listing that failed because of a transient error")
	f.DurationVar(&c.Timeout, "timeout", 0,
		"the maximum duration of a polling cycle; zero for no limit")
	f.IntVar(&c.Workers, "workers", 1,
		"the number of runs to process concurrently")
}

// BindWatch adds the flags used only in watch mode.
func (c *Config) BindWatch(f *pflag.FlagSet) {
	f.DurationVar(&c.Interval, "interval", DefaultInterval,
		"the time between the start of two polling cycles")
}

// Preflight updates the configuration with sane defaults or returns an
// error if a value cannot be used.
func (c *Config) Preflight() error {
	if c.Lookback < 0 {
		return errors.New("lookback must not be negative")
	}
	if c.Lookback == 0 {
		c.Lookback = DefaultLookback
	}
	if c.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.Scanner.PageSize < 0 {
		return errors.New("pageSize must not be negative")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}

func (c *Config) now() time.Time {
	if c.Scanner.Now != nil {
		return c.Scanner.Now()
	}
	return time.Now()
}
