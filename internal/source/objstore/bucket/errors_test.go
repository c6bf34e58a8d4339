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

package bucket

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTransient(t *testing.T) {
	a := assert.New(t)
	cause := errors.New("connection reset")
	err := errors.Wrap(Transient(cause), "list")
	a.True(IsTransient(err))
	a.ErrorIs(err, cause)
	a.Equal("list: connection reset", err.Error())

	a.False(IsTransient(cause))
	a.False(IsTransient(fmt.Errorf("wrapped: %w", ErrNoSuchKey)))
	a.NoError(Transient(nil))
}

func TestListOptionsSize(t *testing.T) {
	a := assert.New(t)
	var nilOpts *ListOptions
	a.Equal(DefaultPageSize, nilOpts.Size())
	a.Equal(DefaultPageSize, (&ListOptions{}).Size())
	a.Equal(7, (&ListOptions{PageSize: 7}).Size())
}
