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

// Package scanner discovers newly completed runs in an object store.
package scanner

import (
	"context"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/runpoll/internal/checkpoint"
	"github.com/cockroachdb/runpoll/internal/runid"
	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Defaults for Config.
const (
	DefaultRetryInitialInterval = 100 * time.Millisecond
	DefaultRetryMaxTime         = 30 * time.Second
)

// RunInfo describes a newly discovered run.
type RunInfo struct {
	RunID        string    `json:"run_id"`
	Key          string    `json:"key"`           // The completion marker object.
	LastModified time.Time `json:"last_modified"` // Of the marker object.
}

// Config controls a Scanner. The zero value uses the defaults.
type Config struct {
	// Marker is the substring identifying completion event keys.
	Marker string
	// PageSize bounds the number of entries held in memory.
	PageSize int
	// RetryInitialInterval is the first delay before retrying a
	// transient listing failure.
	RetryInitialInterval time.Duration
	// RetryMaxTime bounds the time spent retrying a listing.
	RetryMaxTime time.Duration
	// Now overrides the clock, for testing.
	Now func() time.Time
}

// Scanner lists a bucket and filters the entries down to the runs
// that have completed recently and have not been processed yet.
type Scanner struct {
	name   string // Bucket name, for logs and metrics.
	reader bucket.Reader
	config Config
}

// New constructs a Scanner over the bucket.
func New(reader bucket.Reader, name string, config *Config) *Scanner {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.Marker == "" {
		cfg.Marker = runid.CompletionMarker
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = bucket.DefaultPageSize
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if cfg.RetryMaxTime <= 0 {
		cfg.RetryMaxTime = DefaultRetryMaxTime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scanner{name: name, reader: reader, config: cfg}
}

// scan holds the state of a single Scan call.
type scan struct {
	cp        *checkpoint.Checkpoint
	found     []RunInfo
	last      string // Last key observed; listing resumes after it.
	listed    int
	seen      map[string]struct{}
	threshold time.Time
}

// Scan returns the runs under the prefix whose completion marker was
// modified within the lookback window and which are not recorded in
// the checkpoint. Runs are returned in listing order, at most once
// each. The lookback boundary is inclusive: a marker modified exactly
// at now-lookback is included.
//
// If the listing fails, no runs are returned. Transient failures are
// retried, resuming after the last key observed.
func (s *Scanner) Scan(
	ctx context.Context, prefix string, cp *checkpoint.Checkpoint, lookback time.Duration,
) ([]RunInfo, error) {
	start := time.Now()
	st := &scan{
		cp:        cp,
		seen:      make(map[string]struct{}),
		threshold: s.config.Now().Add(-lookback),
	}
	logger := log.WithField("bucket", s.name)
	logger.Debugf("scanning %q for runs completed since %s", prefix, st.threshold.UTC().Format(time.RFC3339))

	operation := func() error {
		opts := &bucket.ListOptions{
			PageSize:   s.config.PageSize,
			StartAfter: st.last,
		}
		return s.reader.List(ctx, prefix, opts,
			func(_ context.Context, page []bucket.Entry) error {
				for _, entry := range page {
					st.last = entry.Key
					st.listed++
					if run, ok := s.accept(st, entry); ok {
						st.found = append(st.found, run)
					}
				}
				return nil
			})
	}
	if err := s.retry(ctx, operation); err != nil {
		return nil, errors.Wrapf(err, "could not list %s/%s", s.name, prefix)
	}
	scanDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	listedCount.WithLabelValues(s.name).Add(float64(st.listed))
	logger.Debugf("listed %d entries; found %d new runs", st.listed, len(st.found))
	return st.found, nil
}

// accept applies the filters to an entry, cheapest first.
func (s *Scanner) accept(st *scan, entry bucket.Entry) (RunInfo, bool) {
	if entry.LastModified.Before(st.threshold) {
		return RunInfo{}, false
	}
	if !strings.Contains(entry.Key, s.config.Marker) {
		return RunInfo{}, false
	}
	id, ok := runid.Extract(entry.Key)
	if !ok {
		log.WithField("bucket", s.name).Debugf("skipping %q: no run id", entry.Key)
		return RunInfo{}, false
	}
	if st.cp.Processed(id) {
		return RunInfo{}, false
	}
	if _, dup := st.seen[id]; dup {
		log.WithField("bucket", s.name).Tracef("skipping %q: run %s already found", entry.Key, id)
		return RunInfo{}, false
	}
	st.seen[id] = struct{}{}
	return RunInfo{
		RunID:        id,
		Key:          entry.Key,
		LastModified: entry.LastModified.UTC(),
	}, true
}

// retry calls the operation and retries if we get a transient error.
func (s *Scanner) retry(ctx context.Context, operation backoff.Operation) error {
	retryOp := func() error {
		err := operation()
		if err != nil && !bucket.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		retryCount.WithLabelValues(s.name).Inc()
		log.WithField("bucket", s.name).WithError(err).
			Warnf("listing failed; retrying in %s", delay)
	}
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.config.RetryInitialInterval
	expBackoff.MaxElapsedTime = s.config.RetryMaxTime
	return backoff.RetryNotify(retryOp, backoff.WithContext(expBackoff, ctx), notify)
}
