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
	"sync"
)

// Memory is an in-memory implementation of Blobs, for testing.
type Memory struct {
	values sync.Map
}

var _ Blobs = &Memory{}

// Get implements Blobs.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	res, ok := m.values.Load(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), res.([]byte)...), true, nil
}

// Put implements Blobs.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.values.Store(key, append([]byte(nil), value...))
	return nil
}
