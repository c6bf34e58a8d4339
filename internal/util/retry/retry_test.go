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

package retry

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tcs := []struct {
		err  error
		code string
		ok   bool
	}{
		{errors.WithStack(&pgconn.PgError{Code: "40001"}), "40001", true},
		{&pgconn.PgError{Code: "08006"}, "08006", true},
		{&pgconn.PgError{Code: "23505"}, "23505", false},
		{errors.New("boom"), "", false},
	}
	for _, tc := range tcs {
		t.Run(tc.err.Error(), func(t *testing.T) {
			code, ok := Retryable(tc.err)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestRetry(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	calls := 0
	boom := errors.New("boom")
	err := Retry(ctx, func(context.Context) error {
		calls++
		return boom
	})
	a.ErrorIs(err, boom)
	a.Equal(1, calls)

	calls = 0
	err = Retry(ctx, func(context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	a.NoError(err)
	a.Equal(3, calls)
}

func TestRetryCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
