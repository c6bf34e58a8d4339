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

package runid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		want   string
		wantOK bool
	}{
		{"complete", "prefix/source=demo/day=X/run_id=abc123/event_type=run_complete/file.json", "abc123", true},
		{"last segment", "source=demo/run_id=r-1", "r-1", true},
		{"first wins", "run_id=one/run_id=two/x", "one", true},
		{"value with equals", "a/run_id=x=y/b", "x=y", true},
		{"missing", "prefix/source=demo/day=X/event_type=run_complete/file.json", "", false},
		{"empty value", "prefix/run_id=/event_type=run_complete/file.json", "", false},
		{"not a segment prefix", "prefix/my_run_id=abc/file.json", "", false},
		{"empty key", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			got, ok := Extract(tt.key)
			a.Equal(tt.wantOK, ok)
			a.Equal(tt.want, got)
			// Extraction is deterministic.
			again, okAgain := Extract(tt.key)
			a.Equal(got, again)
			a.Equal(ok, okAgain)
		})
	}
}

func TestDir(t *testing.T) {
	a := assert.New(t)
	dir, ok := Dir("prefix/source=demo/run_id=abc/event_type=run_complete/f.jsonl")
	a.True(ok)
	a.Equal("prefix/source=demo/run_id=abc/", dir)

	_, ok = Dir("prefix/run_id=/f.jsonl")
	a.False(ok)
	_, ok = Dir("prefix/f.jsonl")
	a.False(ok)
}

func TestSegments(t *testing.T) {
	a := assert.New(t)
	got := Segments("data/source=demo/category=c/day=2026-02-04/run_id=abc/event_type=item/part-0.jsonl")
	a.Equal(map[string]string{
		"source":     "demo",
		"category":   "c",
		"day":        "2026-02-04",
		"run_id":     "abc",
		"event_type": "item",
	}, got)
	a.Empty(Segments("a/b/c"))
}
