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

package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/cockroachdb/runpoll/internal/source/objstore/providers/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	newSuite(t).Open(t)
}

func TestOverwrite(t *testing.T) {
	newSuite(t).Overwrite(t)
}

func TestList(t *testing.T) {
	newSuite(t).List(t)
}

func TestListSkipAll(t *testing.T) {
	newSuite(t).ListSkipAll(t)
}

// TestListOrder verifies that keys are returned in lexicographic order
// even when a directory walk would visit them differently.
func TestListOrder(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)
	now := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)
	b := &localBucket{
		filesystem: fstest.MapFS{
			"a/x.json":        {Data: []byte("1"), ModTime: now},
			"a.b":             {Data: []byte("2"), ModTime: now.Add(time.Second)},
			"a/.tmp-x.json-1": {Data: []byte("3"), ModTime: now},
		},
	}
	var got []string
	err := b.List(context.Background(), "a", nil,
		func(_ context.Context, page []bucket.Entry) error {
			for _, e := range page {
				got = append(got, e.Key)
			}
			return nil
		})
	r.NoError(err)
	a.Equal([]string{"a.b", "a/x.json"}, got)
}

func TestReadOnly(t *testing.T) {
	b := &localBucket{filesystem: fstest.MapFS{}}
	err := b.Put(context.Background(), "x", strings.NewReader("x"), 1)
	assert.ErrorContains(t, err, "read-only")
}

func TestNew(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	_, err := New(&Config{})
	a.Error(err)
	_, err = New(&Config{Directory: filepath.Join(dir, "missing")})
	a.Error(err)
	_, err = New(&Config{Directory: file})
	a.ErrorContains(err, "not a directory")
	_, err = New(&Config{Directory: dir})
	a.NoError(err)
}

func newSuite(t *testing.T) *storetest.Suite {
	b, err := New(&Config{Directory: t.TempDir()})
	require.NoError(t, err)
	return &storetest.Suite{Bucket: b}
}
