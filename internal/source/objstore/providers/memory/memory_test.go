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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/cockroachdb/runpoll/internal/source/objstore/providers/storetest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	(&storetest.Suite{Bucket: &Bucket{}}).Open(t)
}

func TestOverwrite(t *testing.T) {
	(&storetest.Suite{Bucket: &Bucket{}}).Overwrite(t)
}

func TestList(t *testing.T) {
	(&storetest.Suite{Bucket: &Bucket{}}).List(t)
}

func TestListSkipAll(t *testing.T) {
	(&storetest.Suite{Bucket: &Bucket{}}).ListSkipAll(t)
}

// TestBeforePage verifies that injected failures abort the listing and
// report where the failed page would have started.
func TestBeforePage(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)
	b := &Bucket{}
	for _, k := range []string{"a", "b", "c", "d"} {
		b.Add(k, nil, now)
	}
	boom := errors.New("boom")
	var failedAfter string
	b.BeforePage = func(page int, startAfter string) error {
		if page == 1 {
			failedAfter = startAfter
			return bucket.Transient(boom)
		}
		return nil
	}
	var seen []string
	err := b.List(ctx, "", &bucket.ListOptions{PageSize: 2},
		func(_ context.Context, page []bucket.Entry) error {
			for _, e := range page {
				seen = append(seen, e.Key)
				a.Equal(now, e.LastModified)
			}
			return nil
		})
	r.ErrorIs(err, boom)
	a.True(bucket.IsTransient(err))
	a.Equal([]string{"a", "b"}, seen)
	a.Equal("b", failedAfter)
	a.Equal(1, b.Lists())
}
