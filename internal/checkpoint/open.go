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

package checkpoint

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/runpoll/internal/checkpoint/pgmemo"
	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/pkg/errors"
)

// Defaults for checkpoints stored in a SQL memo table.
const (
	DefaultMemoKey   = "runpoll_checkpoint"
	DefaultMemoTable = "runpoll_memo"
)

// OpenOptions supply the dependencies needed by some backends.
type OpenOptions struct {
	// OpenBucket returns a bucket by name, for s3:// locations.
	OpenBucket func(name string) (bucket.Bucket, error)
}

// Open resolves a checkpoint location into a Store and the key that
// must be passed to Load and Save:
//
//	path/to/file.json, file:///abs/file.json   a local file
//	s3://bucket/key.json                       an object in a bucket
//	postgres://...?table=t&key=k               a row in a memo table
//
// The caller must Close the returned store.
func Open(ctx context.Context, location string, opts *OpenOptions) (*Store, string, error) {
	if location == "" {
		return nil, "", errors.New("a checkpoint location is required")
	}
	scheme, _, found := strings.Cut(location, "://")
	if !found {
		return NewStore(Files{}), location, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", errors.Wrapf(err, "could not parse checkpoint location")
	}
	switch strings.ToLower(scheme) {
	case "file":
		if u.Path == "" {
			return nil, "", errors.Errorf("missing path in %s", location)
		}
		return NewStore(Files{}), u.Path, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, "", errors.New("checkpoint location must be s3://bucket/key")
		}
		if opts == nil || opts.OpenBucket == nil {
			return nil, "", errors.New("object store checkpoints are not available")
		}
		b, err := opts.OpenBucket(u.Host)
		if err != nil {
			return nil, "", err
		}
		return NewStore(&Objects{Bucket: b}), key, nil
	case "postgres", "postgresql":
		params := u.Query()
		key := params.Get("key")
		if key == "" {
			key = DefaultMemoKey
		}
		table := params.Get("table")
		if table == "" {
			table = DefaultMemoTable
		}
		// The server would reject these as unknown runtime parameters.
		params.Del("key")
		params.Del("table")
		u.RawQuery = params.Encode()
		memo, err := pgmemo.New(ctx, u.String(), table)
		if err != nil {
			return nil, "", err
		}
		return &Store{blobs: memo, closer: memo.Close}, key, nil
	default:
		return nil, "", errors.Errorf("unknown checkpoint scheme %q", scheme)
	}
}
