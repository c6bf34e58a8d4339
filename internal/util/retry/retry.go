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

// Package retry contains utility code for retrying database operations.
package retry

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Defaults for the retry loop.
var (
	InitialInterval = 10 * time.Millisecond
	MaxElapsedTime  = 10 * time.Second
)

// Retry is a convenience wrapper to automatically retry idempotent
// database operations that experience a transaction or connection
// failure. The provided callback must be entirely idempotent, with
// no observable side-effects during its execution.
func Retry(ctx context.Context, idempotent func(context.Context) error) error {
	actionsCount.Inc()
	op := func() error {
		err := idempotent(ctx)
		if err == nil {
			return nil
		}
		code, ok := Retryable(err)
		if !ok {
			if code != "" {
				abortedCount.WithLabelValues(code).Inc()
			}
			return backoff.Permanent(err)
		}
		retryCount.WithLabelValues(code).Inc()
		return err
	}
	notify := func(err error, delay time.Duration) {
		log.WithError(err).Debugf("retrying database operation in %s", delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialInterval
	b.MaxElapsedTime = MaxElapsedTime
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

// Retryable returns the pgwire error code of the error, if any, and
// whether the error indicates a transaction or connection failure.
func Retryable(err error) (code string, ok bool) {
	pgErr := (*pgconn.PgError)(nil)
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case "40001": // Serialization Failure
	case "40003": // Statement Completion Unknown
	case "08003": // Connection Does Not Exist
	case "08006": // Connection Failure
	default:
		return pgErr.Code, false
	}
	return pgErr.Code, true
}
