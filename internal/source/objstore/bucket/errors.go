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

package bucket

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoSuchBucket is returned when the bucket does not exist.
	ErrNoSuchBucket = errors.New("bucket does not exist")
	// ErrNoSuchKey is returned when the object does not exist.
	ErrNoSuchKey = errors.New("object does not exist")
	// ErrSkipAll may be returned by a List callback to stop the listing.
	ErrSkipAll = errors.New("skip all")
	// ErrTransient marks errors that may succeed if retried.
	ErrTransient = errors.New("transient error")
)

// transientError tags a cause as ErrTransient while keeping it
// reachable by errors.As and errors.Is.
type transientError struct {
	cause error
}

func (e *transientError) Error() string { return e.cause.Error() }

func (e *transientError) Is(target error) bool { return target == ErrTransient }

func (e *transientError) Unwrap() error { return e.cause }

// Transient marks err as retryable. A nil error is returned unchanged.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

// IsTransient reports whether err may succeed if retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
