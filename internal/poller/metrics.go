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
	"github.com/cockroachdb/runpoll/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poller_cycle_seconds",
		Help:    "the time spent in a complete polling cycle",
		Buckets: metrics.LatencyBuckets,
	}, metrics.BucketLabels)
	cycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poller_cycle_errors_total",
		Help: "the number of polling cycles that failed, by the stage that failed",
	}, []string{"bucket", "stage"})
	lastPollTime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poller_last_poll_timestamp_seconds",
		Help: "the last poll time recorded in the checkpoint",
	}, metrics.BucketLabels)
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poller_run_seconds",
		Help:    "the time spent processing a single run",
		Buckets: metrics.LatencyBuckets,
	}, metrics.BucketLabels)
	runsDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poller_runs_discovered_total",
		Help: "the number of new runs found by the scanner",
	}, metrics.BucketLabels)
	runsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poller_runs_failed_total",
		Help: "the number of runs whose processing failed",
	}, metrics.BucketLabels)
	runsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poller_runs_processed_total",
		Help: "the number of runs processed successfully",
	}, metrics.BucketLabels)
)

// Values for the stage label of cycleErrors.
const (
	stageLoad = "load"
	stageSave = "save"
	stageScan = "scan"
)
