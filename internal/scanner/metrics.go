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

package scanner

import (
	"github.com/cockroachdb/runpoll/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	listedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scanner_listed_total",
		Help: "the number of object store entries inspected",
	}, metrics.BucketLabels)
	retryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scanner_retry_total",
		Help: "the number of times a listing was retried after a transient error",
	}, metrics.BucketLabels)
	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scanner_scan_seconds",
		Help:    "the time spent listing and filtering a prefix",
		Buckets: metrics.LatencyBuckets,
	}, metrics.BucketLabels)
)
