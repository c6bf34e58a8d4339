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

package poller

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fatal cycle errors. The returned error matches one of these with
// errors.Is, as well as the underlying cause.
var (
	ErrCheckpointLoad = errors.New("could not load checkpoint")
	ErrCheckpointSave = errors.New("could not save checkpoint")
	ErrScan           = errors.New("could not scan for runs")
)

// fatal associates a cause with one of the sentinel errors.
type fatal struct {
	kind  error
	cause error
}

func newFatal(kind, cause error) error {
	return &fatal{kind: kind, cause: cause}
}

func (e *fatal) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

// Format prints the stack of the cause for %+v.
func (e *fatal) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		_, _ = fmt.Fprintf(s, "%s: %+v", e.kind, e.cause)
		return
	}
	_, _ = fmt.Fprint(s, e.Error())
}

// Unwrap supports errors.Is and errors.As.
func (e *fatal) Unwrap() []error {
	return []error{e.kind, e.cause}
}
