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

package processor

import (
	"bufio"
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/runpoll/internal/runid"
	"github.com/cockroachdb/runpoll/internal/scanner"
	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/cockroachdb/runpoll/internal/util/ndjson"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize is the longest event record Summarize accepts.
const DefaultBufferSize = bufio.MaxScanTokenSize

const (
	// documentSuffix identifies objects holding a single JSON document.
	documentSuffix   = ".json"
	eventTypeSegment = "event_type"
	sidecarDir       = "files"
)

// eventSuffixes identify the objects that hold event records.
var eventSuffixes = []string{".jsonl", ".ndjson", documentSuffix}

// Summary describes the events stored for a run.
type Summary struct {
	Files   int            // Number of event files read.
	Records map[string]int // Number of records, by event_type.
}

// Total returns the number of records across all event types.
func (s *Summary) Total() int {
	total := 0
	for _, n := range s.Records {
		total += n
	}
	return total
}

// Summarize reads every event file belonging to a run and logs the
// number of records of each event type.
type Summarize struct {
	Reader     bucket.Reader
	BufferSize int // Defaults to DefaultBufferSize.
}

var _ Processor = (*Summarize)(nil)

// Process implements Processor.
func (s *Summarize) Process(ctx context.Context, bucketName string, run scanner.RunInfo) error {
	sum, err := s.Summarize(ctx, run)
	if err != nil {
		return err
	}
	types := make([]string, 0, len(sum.Records))
	for t := range sum.Records {
		types = append(types, t)
	}
	sort.Strings(types)
	fields := log.Fields{
		"bucket": bucketName,
		"files":  sum.Files,
		"run_id": run.RunID,
	}
	for _, t := range types {
		fields["records."+t] = sum.Records[t]
	}
	log.WithFields(fields).Infof("processed run %s: %d records", run.RunID, sum.Total())
	return nil
}

// Summarize returns the counts of records for the run.
func (s *Summarize) Summarize(ctx context.Context, run scanner.RunInfo) (*Summary, error) {
	dir, ok := runid.Dir(run.Key)
	if !ok {
		return nil, errors.Errorf("key %q does not identify a run directory", run.Key)
	}
	sum := &Summary{Records: make(map[string]int)}
	var files []string
	err := s.Reader.List(ctx, dir, nil,
		func(_ context.Context, page []bucket.Entry) error {
			for _, e := range page {
				if isEventFile(strings.TrimPrefix(e.Key, dir)) {
					files = append(files, e.Key)
				}
			}
			return nil
		})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list run %s", run.RunID)
	}
	for _, file := range files {
		eventType := runid.Segments(strings.TrimPrefix(file, dir))[eventTypeSegment]
		n, err := s.count(ctx, file)
		if err != nil {
			return nil, err
		}
		sum.Files++
		sum.Records[eventType] += n
	}
	return sum, nil
}

// count returns the number of records in an event object. A .json
// object holds a single document, which may be an array of records;
// the other formats hold one record per line.
func (s *Summarize) count(ctx context.Context, file string) (int, error) {
	r, err := s.Reader.Open(ctx, file)
	if err != nil {
		return 0, errors.Wrapf(err, "could not open %s", file)
	}
	defer r.Close()
	if strings.HasSuffix(file, documentSuffix) {
		var doc any
		if err := ndjson.Decode(r, &doc); err != nil {
			return 0, errors.Wrapf(err, "invalid document in %s", file)
		}
		if records, ok := doc.([]any); ok {
			return len(records), nil
		}
		return 1, nil
	}
	parser := &ndjson.Parser{BufferSize: s.bufferSize()}
	n, err := parser.Count(r)
	return n, errors.Wrapf(err, "invalid records in %s", file)
}

func (s *Summarize) bufferSize() int {
	if s.BufferSize > 0 {
		return s.BufferSize
	}
	return DefaultBufferSize
}

// isEventFile reports whether a key, relative to the run directory,
// names an event object. Events live under an event_type partition;
// sidecar files written under files/ are not events.
func isEventFile(rel string) bool {
	parts := strings.Split(rel, runid.Delimiter)
	if len(parts) < 2 || parts[0] == sidecarDir {
		return false
	}
	partitioned := false
	for _, part := range parts[:len(parts)-1] {
		if strings.HasPrefix(part, eventTypeSegment+"=") {
			partitioned = true
			break
		}
	}
	if !partitioned {
		return false
	}
	for _, suffix := range eventSuffixes {
		if strings.HasSuffix(rel, suffix) {
			return true
		}
	}
	return false
}
