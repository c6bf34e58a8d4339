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
	"bytes"
	"context"
	"io"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/pkg/errors"
)

// Objects stores each value as an object in a bucket.
type Objects struct {
	Bucket bucket.Bucket
}

var _ Blobs = &Objects{}

// Get implements Blobs.
func (o *Objects) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := o.Bucket.Open(ctx, key)
	if errors.Is(err, bucket.ErrNoSuchKey) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, errors.Wrapf(err, "read %s", key)
	}
	return data, true, nil
}

// Put implements Blobs.
func (o *Objects) Put(ctx context.Context, key string, value []byte) error {
	return o.Bucket.Put(ctx, key, bytes.NewReader(value), int64(len(value)))
}
