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

package poll

import (
	"context"

	"github.com/cockroachdb/runpoll/internal/checkpoint"
	"github.com/cockroachdb/runpoll/internal/poller"
	"github.com/cockroachdb/runpoll/internal/processor"
	"github.com/cockroachdb/runpoll/internal/source/objstore"
	"github.com/spf13/pflag"
)

// DefaultCheckpoint is the checkpoint location used if none is given.
const DefaultCheckpoint = ".quarry-s3-checkpoint.json"

// Config contains the settings shared by the poll and watch commands.
type Config struct {
	// BufferSize bounds the length of a record read by the default
	// processor.
	BufferSize int
	// Checkpoint is a file path or a URL; see checkpoint.Open.
	Checkpoint string
	// Exec, if set, is the program and arguments run for each run
	// instead of summarizing it.
	Exec   []string
	Poller poller.Config
	Store  objstore.Config
}

// Bind adds flags to the set.
func (c *Config) Bind(f *pflag.FlagSet) {
	c.Poller.Bind(f)
	c.Store.Bind(f)
	f.IntVar(&c.BufferSize, "bufferSize", processor.DefaultBufferSize,
		"the maximum length of an event record")
	f.StringVar(&c.Checkpoint, "checkpoint", DefaultCheckpoint,
		"where to store the checkpoint: a file path, s3://bucket/key, or a postgres:// URL "+
			"with optional table and key parameters")
	f.StringArrayVar(&c.Exec, "exec", nil,
		"a command to run for each completed run, instead of logging a summary; "+
			"repeat the flag once per argument, e.g. --exec sh --exec -c --exec 'load.sh \"$RUNPOLL_KEY\"'; "+
			"the run is described by RUNPOLL_* environment variables")
}

// Preflight updates the configuration with sane defaults or returns an
// error if there are missing options for which a default cannot be
// provided.
func (c *Config) Preflight() error {
	if err := c.Poller.Preflight(); err != nil {
		return err
	}
	if err := c.Store.Preflight(); err != nil {
		return err
	}
	if c.Checkpoint == "" {
		c.Checkpoint = DefaultCheckpoint
	}
	if c.BufferSize <= 0 {
		c.BufferSize = processor.DefaultBufferSize
	}
	return nil
}

// A Session holds the resources needed to poll a bucket.
type Session struct {
	Driver   *poller.Driver
	Location string // The checkpoint key within its store.
	store    *checkpoint.Store
}

// Close releases the resources held by the session.
func (s *Session) Close() { s.store.Close() }

// Open connects to the checkpoint store and the object store. The
// configuration must have passed Preflight.
func (c *Config) Open(ctx context.Context, bucketName string) (*Session, error) {
	open := objstore.Opener(&c.Store)
	b, err := open(bucketName)
	if err != nil {
		return nil, err
	}
	store, location, err := checkpoint.Open(ctx, c.Checkpoint, &checkpoint.OpenOptions{
		OpenBucket: open,
	})
	if err != nil {
		return nil, err
	}

	var proc processor.Processor
	if len(c.Exec) > 0 {
		proc = &processor.Exec{Command: c.Exec}
	} else {
		proc = &processor.Summarize{Reader: b, BufferSize: c.BufferSize}
	}
	return &Session{
		Driver:   poller.New(&c.Poller, store, poller.OpenBucket(open), proc),
		Location: location,
		store:    store,
	}, nil
}

// Cycle runs one polling cycle, bounded by the configured timeout.
func (c *Config) Cycle(
	ctx context.Context, s *Session, bucketName, prefix string,
) (*poller.CycleReport, error) {
	if c.Poller.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Poller.Timeout)
		defer cancel()
	}
	return s.Driver.RunOneCycle(ctx, s.Location, bucketName, prefix, c.Poller.Lookback)
}
