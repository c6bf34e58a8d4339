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

// Package storetest defines the tests that the providers must pass.
package storetest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Suite verifies that a bucket.Bucket provider can read, write and
// list objects.
type Suite struct {
	Bucket bucket.Bucket // The provider under test.
}

var dummies = []string{
	"000/000.txt",
	"000/001.txt",
	"000/002.txt",
	"000/003.txt",
	"001/000.txt",
	"001/001.txt",
	"001/002.txt",
}

// Open validates bucket.Reader.Open.
func (s *Suite) Open(t *testing.T) {
	r := require.New(t)
	tests := []struct {
		name    string
		file    string
		want    string
		wantErr error
	}{
		{"found", "test.txt", "test", nil},
		{"notfound", "nothere.txt", "", bucket.ErrNoSuchKey},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.NoError(s.store(ctx, "test.txt", "test"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			r := require.New(t)
			got, err := s.read(ctx, tt.file)
			if tt.wantErr != nil {
				a.ErrorIs(err, tt.wantErr)
				return
			}
			r.NoError(err)
			a.Equal(tt.want, got)
		})
	}
}

// Overwrite validates that Put replaces the previous content.
func (s *Suite) Overwrite(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := require.New(t)
	a := assert.New(t)
	path := "nested/overwrite.json"
	for _, v := range []string{"a much longer first version", "v1", "v2", ""} {
		r.NoError(s.store(ctx, path, v))
		got, err := s.read(ctx, path)
		r.NoError(err)
		a.Equal(v, got)
	}
}

// List validates ordering, pagination and prefix filtering.
func (s *Suite) List(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		startAfter string
		pageSize   int
		want       []string
		wantPages  []int
	}{
		{"all", "", "", 0, dummies, []int{7}},
		{"paged", "", "", 3, dummies, []int{3, 3, 1}},
		{"exact pages", "000/", "", 2, dummies[:4], []int{2, 2}},
		{"directory", "001", "", 0, dummies[4:], []int{3}},
		{"partial name", "000/00", "", 0, dummies[:4], []int{4}},
		{"start after", "", "000/002.txt", 2, dummies[3:], []int{2, 2}},
		{"none", "002", "", 4, nil, nil},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, d := range dummies {
		require.NoError(t, s.store(ctx, d, d))
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			r := require.New(t)
			var got []string
			var pages []int
			opts := &bucket.ListOptions{PageSize: tt.pageSize, StartAfter: tt.startAfter}
			err := s.Bucket.List(ctx, tt.prefix, opts,
				func(_ context.Context, page []bucket.Entry) error {
					pages = append(pages, len(page))
					for _, e := range page {
						got = append(got, e.Key)
						a.False(e.LastModified.IsZero(), "missing modification time for %s", e.Key)
					}
					return nil
				})
			r.NoError(err)
			a.Equal(tt.want, got)
			a.Equal(tt.wantPages, pages)
		})
	}
}

// ListSkipAll validates that a callback can stop the listing early.
func (s *Suite) ListSkipAll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := require.New(t)
	for _, d := range dummies {
		r.NoError(s.store(ctx, d, d))
	}
	calls := 0
	err := s.Bucket.List(ctx, "", &bucket.ListOptions{PageSize: 2},
		func(context.Context, []bucket.Entry) error {
			calls++
			return bucket.ErrSkipAll
		})
	r.NoError(err)
	assert.Equal(t, 1, calls)
}

// store writes a string to the named object.
func (s *Suite) store(ctx context.Context, name, content string) error {
	return s.Bucket.Put(ctx, name, bytes.NewReader([]byte(content)), int64(len(content)))
}

// read returns a string with the content of the object at named path.
func (s *Suite) read(ctx context.Context, path string) (string, error) {
	r, err := s.Bucket.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
