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

// Package checkpoint persists the progress of the poller: the time of
// the last poll and the set of runs that have been processed.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrCorrupt is returned when a stored checkpoint cannot be decoded.
// A corrupt checkpoint must never be mistaken for a missing one, since
// that would discard the processed set.
var ErrCorrupt = errors.New("corrupt checkpoint")

// Epoch is the last poll time of a new checkpoint.
var Epoch = time.Unix(0, 0).UTC()

// A Checkpoint records polling progress. The processed set only grows
// and the last poll time never moves backwards.
//
// A Checkpoint is not safe for concurrent use.
type Checkpoint struct {
	lastPoll  time.Time
	processed []string            // Insertion order.
	index     map[string]struct{} // Membership.
}

// New returns the checkpoint used when nothing has been stored yet.
func New() *Checkpoint {
	return &Checkpoint{
		lastPoll: Epoch,
		index:    make(map[string]struct{}),
	}
}

// LastPoll returns the time of the last completed poll.
func (c *Checkpoint) LastPoll() time.Time { return c.lastPoll }

// Advance moves the last poll time forward to t. Earlier times are
// ignored. It returns the resulting last poll time.
func (c *Checkpoint) Advance(t time.Time) time.Time {
	if t.After(c.lastPoll) {
		c.lastPoll = t.UTC()
	}
	return c.lastPoll
}

// Processed reports whether the run has already been processed.
func (c *Checkpoint) Processed(runID string) bool {
	_, ok := c.index[runID]
	return ok
}

// MarkProcessed adds the run to the processed set. It returns false if
// the run was already present.
func (c *Checkpoint) MarkProcessed(runID string) bool {
	if c.Processed(runID) {
		return false
	}
	if c.index == nil {
		c.index = make(map[string]struct{})
	}
	c.index[runID] = struct{}{}
	c.processed = append(c.processed, runID)
	return true
}

// ProcessedRuns returns a copy of the processed run ids, in the order
// they were added.
func (c *Checkpoint) ProcessedRuns() []string {
	return append([]string{}, c.processed...)
}

// Clone returns an independent copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	ret := &Checkpoint{
		lastPoll:  c.lastPoll,
		processed: append([]string(nil), c.processed...),
		index:     make(map[string]struct{}, len(c.index)),
	}
	for id := range c.index {
		ret.index[id] = struct{}{}
	}
	return ret
}

// Len returns the number of processed runs.
func (c *Checkpoint) Len() int { return len(c.processed) }

// payload is the persisted form of a Checkpoint.
type payload struct {
	LastPoll      string   `json:"last_poll"`
	ProcessedRuns []string `json:"processed_runs"`
}

var (
	_ json.Marshaler   = (*Checkpoint)(nil)
	_ json.Unmarshaler = (*Checkpoint)(nil)
)

// MarshalJSON implements json.Marshaler.
func (c *Checkpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(payload{
		LastPoll:      c.lastPoll.UTC().Format(time.RFC3339Nano),
		ProcessedRuns: c.ProcessedRuns(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Repeated run ids collapse
// into a single entry.
func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrap(ErrCorrupt, err.Error())
	}
	next := New()
	if p.LastPoll != "" {
		t, err := time.Parse(time.RFC3339Nano, p.LastPoll)
		if err != nil {
			return errors.Wrapf(ErrCorrupt, "last_poll %q: %v", p.LastPoll, err)
		}
		next.lastPoll = t.UTC()
	}
	for _, id := range p.ProcessedRuns {
		next.MarkProcessed(id)
	}
	*c = *next
	return nil
}

// Encode returns the persisted form of the checkpoint.
func Encode(c *Checkpoint) ([]byte, error) {
	buf, err := json.MarshalIndent(c, "", "  ")
	return buf, errors.WithStack(err)
}

// Decode parses the persisted form of a checkpoint.
func Decode(data []byte) (*Checkpoint, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, errors.Wrap(ErrCorrupt, "null document")
	}
	ret := New()
	if err := json.Unmarshal(data, ret); err != nil {
		// Syntax errors are reported by the json package before
		// UnmarshalJSON is invoked.
		if !errors.Is(err, ErrCorrupt) {
			err = errors.Wrap(ErrCorrupt, err.Error())
		}
		return nil, err
	}
	return ret, nil
}
