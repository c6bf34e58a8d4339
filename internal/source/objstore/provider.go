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

package objstore

import (
	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/cockroachdb/runpoll/internal/source/objstore/providers/local"
	"github.com/cockroachdb/runpoll/internal/source/objstore/providers/s3"
	"github.com/pkg/errors"
)

// Open returns the named bucket from the configured provider. The
// configuration must have passed Preflight.
func Open(config *Config, name string) (bucket.Bucket, error) {
	if name == "" {
		return nil, errors.New("a bucket name is required")
	}
	switch config.provider {
	case LocalStorage:
		return local.New(&local.Config{Directory: config.bucketDir(name)})
	case S3Storage:
		cfg := *config.s3
		cfg.Bucket = name
		return s3.New(&cfg)
	default:
		return nil, errors.Errorf("invalid configuration: missing bucket name")
	}
}

// Opener returns a function that opens buckets with the configuration.
func Opener(config *Config) func(name string) (bucket.Bucket, error) {
	return func(name string) (bucket.Bucket, error) {
		return Open(config, name)
	}
}
