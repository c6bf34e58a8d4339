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
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Files stores each value in a file named by its key.
type Files struct{}

var _ Blobs = Files{}

// Get implements Blobs.
func (Files) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	return data, true, nil
}

// Put implements Blobs. The value is written to a temporary file in
// the same directory and renamed over the destination, so a reader
// never observes a partial checkpoint.
func (Files) Put(_ context.Context, key string, value []byte) error {
	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(key)+"-*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), key))
}
