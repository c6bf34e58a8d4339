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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Blobs is a durable key-value store of opaque values.
type Blobs interface {
	// Get retrieves the value associated with the key. The boolean is
	// false if the key has never been stored.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put replaces the value associated with the key.
	Put(ctx context.Context, key string, value []byte) error
}

// Store loads and saves checkpoints. There is no protection against
// concurrent writers: only one poller may use a location at a time.
type Store struct {
	blobs  Blobs
	closer func()
}

// NewStore returns a Store backed by the blobs.
func NewStore(blobs Blobs) *Store {
	return &Store{blobs: blobs}
}

// Load reads the checkpoint at the location. A missing checkpoint
// yields New(); an unreadable or corrupt one is an error.
func (s *Store) Load(ctx context.Context, location string) (*Checkpoint, error) {
	data, ok, err := s.blobs.Get(ctx, location)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read checkpoint %s", location)
	}
	if !ok {
		log.WithField("checkpoint", location).Debug("no checkpoint found; starting from scratch")
		return New(), nil
	}
	ret, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode checkpoint %s", location)
	}
	return ret, nil
}

// Save overwrites the checkpoint at the location.
func (s *Store) Save(ctx context.Context, location string, cp *Checkpoint) error {
	data, err := Encode(cp)
	if err != nil {
		return err
	}
	checkpointSize.WithLabelValues(location).Set(float64(cp.Len()))
	return errors.Wrapf(s.blobs.Put(ctx, location, data), "could not write checkpoint %s", location)
}

// Close releases any resources held by the backend.
func (s *Store) Close() {
	if s.closer != nil {
		s.closer()
	}
}
