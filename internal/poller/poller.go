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

// Package poller drives polling cycles: load the checkpoint, scan the
// bucket for new runs, process each run, then persist the checkpoint.
package poller

import (
	"context"
	"time"

	"github.com/cockroachdb/runpoll/internal/checkpoint"
	"github.com/cockroachdb/runpoll/internal/processor"
	"github.com/cockroachdb/runpoll/internal/scanner"
	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// OpenBucket returns a reader for the named bucket.
type OpenBucket func(name string) (bucket.Bucket, error)

// A Driver runs polling cycles. The checkpoint is owned by the driver
// for the duration of a cycle; processors never see it.
type Driver struct {
	config    *Config
	open      OpenBucket
	processor processor.Processor
	store     *checkpoint.Store
}

// New constructs a Driver. The configuration must have passed
// Preflight.
func New(
	config *Config, store *checkpoint.Store, open OpenBucket, proc processor.Processor,
) *Driver {
	return &Driver{
		config:    config,
		open:      open,
		processor: proc,
		store:     store,
	}
}

// cycle holds the state of a single call to RunOneCycle.
type cycle struct {
	cp       *checkpoint.Checkpoint
	location string
	logger   *log.Entry
	report   *CycleReport
}

// RunOneCycle performs a single polling cycle against the checkpoint
// at the given location.
//
// Runs that fail to process are reported in the CycleReport and are
// not added to the checkpoint, so they will be discovered again by the
// next cycle. Failures to load the checkpoint, list the bucket, or
// save the checkpoint are fatal and are returned as errors matching
// ErrCheckpointLoad, ErrScan, or ErrCheckpointSave. The checkpoint is
// not written if it could not be loaded or if the scan failed. If the
// final save fails, the report is returned along with the error.
func (d *Driver) RunOneCycle(
	ctx context.Context, location, bucketName, prefix string, lookback time.Duration,
) (*CycleReport, error) {
	start := time.Now()
	c := &cycle{
		location: location,
		report: &CycleReport{
			Bucket:  bucketName,
			CycleID: uuid.New(),
			Prefix:  prefix,
		},
	}
	c.logger = log.WithFields(log.Fields{
		"bucket": bucketName,
		"cycle":  c.report.CycleID,
	})

	var err error
	c.cp, err = d.store.Load(ctx, location)
	if err != nil {
		cycleErrors.WithLabelValues(bucketName, stageLoad).Inc()
		return nil, newFatal(ErrCheckpointLoad, err)
	}

	runs, err := d.scan(ctx, c.cp, bucketName, prefix, lookback)
	if err != nil {
		cycleErrors.WithLabelValues(bucketName, stageScan).Inc()
		return nil, newFatal(ErrScan, err)
	}
	c.report.Discovered = len(runs)
	runsDiscovered.WithLabelValues(bucketName).Add(float64(len(runs)))
	if len(runs) > 0 {
		c.logger.Infof("found %d new runs", len(runs))
	}

	if d.config.Workers > 1 && len(runs) > 1 {
		err = d.processParallel(ctx, c, runs)
	} else {
		err = d.processSequential(ctx, c, runs)
	}
	if err != nil {
		return c.report, err
	}

	c.report.LastPoll = c.cp.Advance(d.config.now())
	if err := d.save(ctx, c); err != nil {
		return c.report, err
	}
	c.report.Elapsed = time.Since(start)
	cycleDuration.WithLabelValues(bucketName).Observe(c.report.Elapsed.Seconds())
	lastPollTime.WithLabelValues(bucketName).Set(float64(c.report.LastPoll.Unix()))
	c.logger.WithFields(log.Fields{
		"discovered": c.report.Discovered,
		"failed":     c.report.Failed(),
		"processed":  c.report.Processed,
	}).Debugf("cycle complete in %s", c.report.Elapsed)
	return c.report, nil
}

func (d *Driver) scan(
	ctx context.Context, cp *checkpoint.Checkpoint, bucketName, prefix string, lookback time.Duration,
) ([]scanner.RunInfo, error) {
	b, err := d.open(bucketName)
	if err != nil {
		return nil, err
	}
	return scanner.New(b, bucketName, &d.config.Scanner).Scan(ctx, prefix, cp, lookback)
}

func (d *Driver) processSequential(ctx context.Context, c *cycle, runs []scanner.RunInfo) error {
	for _, run := range runs {
		if err := d.fold(ctx, c, d.invoke(ctx, c.report.Bucket, run)); err != nil {
			return err
		}
	}
	return nil
}

// processParallel invokes the processor for up to Workers runs at a
// time. Outcomes are folded into the checkpoint on the calling
// goroutine, in scan order.
func (d *Driver) processParallel(ctx context.Context, c *cycle, runs []scanner.RunInfo) error {
	ctx, cancel := context.WithCancel(ctx)
	results := make([]chan Outcome, len(runs))
	for i := range results {
		results[i] = make(chan Outcome, 1)
	}
	var eg errgroup.Group
	eg.SetLimit(d.config.Workers)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, run := range runs {
			eg.Go(func() error {
				results[i] <- d.invoke(ctx, c.report.Bucket, run)
				return nil
			})
		}
		_ = eg.Wait()
	}()
	// Abandon any unstarted runs if we return early.
	defer func() {
		cancel()
		<-launched
	}()

	for _, result := range results {
		if err := d.fold(ctx, c, <-result); err != nil {
			return err
		}
	}
	return nil
}

// invoke calls the processor, converting a panic into a failure.
func (d *Driver) invoke(ctx context.Context, bucketName string, run scanner.RunInfo) (o Outcome) {
	start := time.Now()
	o.Run = run
	defer func() {
		if r := recover(); r != nil {
			o.Err = errors.Errorf("processor panicked: %v", r)
		}
		o.Elapsed = time.Since(start)
		runDuration.WithLabelValues(bucketName).Observe(o.Elapsed.Seconds())
	}()
	if err := ctx.Err(); err != nil {
		o.Err = errors.Wrap(err, "run not started")
		return
	}
	o.Err = d.processor.Process(ctx, bucketName, run)
	return
}

// fold records an outcome in the report and the checkpoint.
func (d *Driver) fold(ctx context.Context, c *cycle, o Outcome) error {
	c.report.Outcomes = append(c.report.Outcomes, o)
	logger := c.logger.WithField("run_id", o.Run.RunID)
	if o.Err != nil {
		c.report.FailedRunIDs = append(c.report.FailedRunIDs, o.Run.RunID)
		runsFailed.WithLabelValues(c.report.Bucket).Inc()
		logger.WithError(o.Err).Warn("run failed; it will be retried on the next cycle")
		return nil
	}
	c.cp.MarkProcessed(o.Run.RunID)
	c.report.Processed++
	runsProcessed.WithLabelValues(c.report.Bucket).Inc()
	logger.Debugf("run processed in %s", o.Elapsed)
	if d.config.PersistEach {
		return d.save(ctx, c)
	}
	return nil
}

// save persists the checkpoint. Progress is saved even if the context
// has been canceled, since the runs recorded in it have already been
// processed.
func (d *Driver) save(ctx context.Context, c *cycle) error {
	if err := d.store.Save(context.WithoutCancel(ctx), c.location, c.cp); err != nil {
		cycleErrors.WithLabelValues(c.report.Bucket, stageSave).Inc()
		return newFatal(ErrCheckpointSave, err)
	}
	return nil
}
