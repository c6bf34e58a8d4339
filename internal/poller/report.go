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
	"time"

	"github.com/cockroachdb/runpoll/internal/scanner"
	"github.com/google/uuid"
)

// An Outcome records the result of processing one run.
type Outcome struct {
	Run     scanner.RunInfo
	Err     error // Nil if the run was processed successfully.
	Elapsed time.Duration
}

// A CycleReport summarizes one polling cycle.
type CycleReport struct {
	CycleID      uuid.UUID
	Bucket       string
	Prefix       string
	Discovered   int       // Number of new runs found by the scan.
	Processed    int       // Number of runs processed successfully.
	FailedRunIDs []string  // Runs to be offered again on the next cycle.
	Outcomes     []Outcome // In scan order.
	LastPoll     time.Time // As recorded in the checkpoint.
	Elapsed      time.Duration
}

// Failed returns the number of runs that could not be processed.
func (r *CycleReport) Failed() int { return len(r.FailedRunIDs) }
