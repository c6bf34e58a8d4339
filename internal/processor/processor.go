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

// Package processor contains the downstream work performed for each
// newly discovered run.
package processor

import (
	"context"

	"github.com/cockroachdb/runpoll/internal/scanner"
)

// A Processor performs the downstream work for a single run. It
// returns an error describing the failure if the run could not be
// processed; the run will then be offered again on a later poll.
// Implementations must tolerate being invoked more than once for the
// same run.
type Processor interface {
	Process(ctx context.Context, bucket string, run scanner.RunInfo) error
}

// Func adapts a function to the Processor interface.
type Func func(ctx context.Context, bucket string, run scanner.RunInfo) error

var _ Processor = Func(nil)

// Process implements Processor.
func (f Func) Process(ctx context.Context, bucket string, run scanner.RunInfo) error {
	return f(ctx, bucket, run)
}
