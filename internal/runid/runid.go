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

// Package runid extracts run identifiers from the Hive-style object
// keys written by the upstream producer, for example
// prefix/source=demo/day=2026-02-04/run_id=abc123/event_type=run_complete/file.jsonl.
package runid

import "strings"

const (
	// Delimiter separates the segments of an object key.
	Delimiter = "/"
	// Marker is the segment prefix that carries the run identifier.
	Marker = "run_id="
	// CompletionMarker appears in the keys of run completion events.
	CompletionMarker = "event_type=run_complete"
)

// Extract returns the run identifier carried by the first key segment
// that starts with Marker. The second return value is false if no
// segment matches, or if the matching segment has no value.
func Extract(key string) (string, bool) {
	for _, part := range strings.Split(key, Delimiter) {
		if id, ok := strings.CutPrefix(part, Marker); ok {
			return id, id != ""
		}
	}
	return "", false
}

// Dir returns the portion of the key up to and including the run_id
// segment, with a trailing delimiter. All objects belonging to the run
// share this prefix.
func Dir(key string) (string, bool) {
	parts := strings.Split(key, Delimiter)
	for i, part := range parts {
		if id, ok := strings.CutPrefix(part, Marker); ok {
			if id == "" {
				return "", false
			}
			return strings.Join(parts[:i+1], Delimiter) + Delimiter, true
		}
	}
	return "", false
}

// Segments returns the name=value segments of a key. Segments without
// an equals sign are ignored. If a name repeats, the last value wins.
func Segments(key string) map[string]string {
	ret := make(map[string]string)
	for _, part := range strings.Split(key, Delimiter) {
		if name, value, ok := strings.Cut(part, "="); ok && name != "" {
			ret[name] = value
		}
	}
	return ret
}
