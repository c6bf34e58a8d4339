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

// Package memory provides an in-memory bucket. It is used as the
// object-store double in tests and demos.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/pkg/errors"
)

type object struct {
	data     []byte
	modified time.Time
}

// Bucket is an in-memory bucket.Bucket. The zero value is ready to
// use.
type Bucket struct {
	// Now supplies modification times for Put. Defaults to time.Now.
	Now func() time.Time
	// BeforePage, if set, is called before each page is delivered by
	// List. The page argument counts pages within a single List call.
	// A non-nil error aborts the listing with that error.
	BeforePage func(page int, startAfter string) error

	mu struct {
		sync.Mutex
		objects map[string]*object
		lists   int
	}
}

var _ bucket.Bucket = &Bucket{}

// Add stores an object with an explicit modification time.
func (b *Bucket) Add(name string, data []byte, modified time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mu.objects == nil {
		b.mu.objects = make(map[string]*object)
	}
	b.mu.objects[name] = &object{
		data:     append([]byte(nil), data...),
		modified: modified,
	}
}

// Delete removes the named object, if present.
func (b *Bucket) Delete(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mu.objects, name)
}

// Lists returns the number of List calls made so far.
func (b *Bucket) Lists() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mu.lists
}

// List implements bucket.Reader.
func (b *Bucket) List(
	ctx context.Context,
	prefix string,
	options *bucket.ListOptions,
	fn func(context.Context, []bucket.Entry) error,
) error {
	var startAfter string
	if options != nil {
		startAfter = options.StartAfter
	}
	entries := b.snapshot(prefix, startAfter)
	size := options.Size()
	for page := 0; len(entries) > 0; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.BeforePage != nil {
			if err := b.BeforePage(page, startAfter); err != nil {
				return err
			}
		}
		n := min(size, len(entries))
		err := fn(ctx, entries[:n:n])
		if errors.Is(err, bucket.ErrSkipAll) {
			return nil
		}
		if err != nil {
			return err
		}
		startAfter = entries[n-1].Key
		entries = entries[n:]
	}
	return nil
}

// Open implements bucket.Reader.
func (b *Bucket) Open(_ context.Context, name string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.mu.objects[name]
	if !ok {
		return nil, errors.Wrap(bucket.ErrNoSuchKey, name)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put implements bucket.Writer.
func (b *Bucket) Put(_ context.Context, name string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.WithStack(err)
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	b.Add(name, data, now())
	return nil
}

// snapshot returns the sorted entries matching the listing bounds.
func (b *Bucket) snapshot(prefix, startAfter string) []bucket.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mu.lists++
	ret := make([]bucket.Entry, 0, len(b.mu.objects))
	for name, obj := range b.mu.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if startAfter != "" && name <= startAfter {
			continue
		}
		ret = append(ret, bucket.Entry{Key: name, LastModified: obj.modified})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Key < ret[j].Key })
	return ret
}
