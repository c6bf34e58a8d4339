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

// Package bucket defines the interface that the providers must implement
// to access cloud storage.
package bucket

import (
	"context"
	"io"
	"time"
)

// DefaultPageSize matches the maximum number of keys returned by a
// single S3 list request.
const DefaultPageSize = 1000

// Entry is the projection of a listing entry that the poller needs.
type Entry struct {
	Key          string    // Full object name, including the prefix.
	LastModified time.Time // Modification time reported by the store.
}

// ListOptions are the configuration options used by List.
type ListOptions struct {
	PageSize   int    // Maximum number of entries per page; 0 uses DefaultPageSize.
	StartAfter string // Only entries lexically after this key are returned.
}

// Size returns the effective page size.
func (o *ListOptions) Size() int {
	if o == nil || o.PageSize <= 0 {
		return DefaultPageSize
	}
	return o.PageSize
}

// Reader provides read access to an object storage bucket.
type Reader interface {
	// List calls fn with successive pages of the entries stored under
	// prefix. Entries are delivered in lexicographic key order, and
	// only one page is held in memory at a time. Returning ErrSkipAll
	// from fn ends the listing without an error.
	List(ctx context.Context, prefix string, options *ListOptions, fn func(context.Context, []Entry) error) error

	// Open returns a reader for the given object name. A missing
	// object is reported as ErrNoSuchKey.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Writer provides write access to an object storage bucket.
type Writer interface {
	// Put replaces the content of the named object.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
}

// Bucket is a bucket that can be both read and written.
type Bucket interface {
	Reader
	Writer
}
