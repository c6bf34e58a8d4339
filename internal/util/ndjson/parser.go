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

// Package ndjson provides utilities to decode newline-delimited JSON
// event files.
package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// An Event is a single decoded record.
type Event map[string]any

// Parser provides the functionality to process events encoded as
// ndjson.
type Parser struct {
	BufferSize int
}

// Parse reads a stream of events, calling fn for each one. Blank lines
// are skipped. Line numbers start at one.
func (p *Parser) Parse(reader io.Reader, fn func(line int, event Event) error) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, p.BufferSize), p.BufferSize)
	line := 0
	for scanner.Scan() {
		line++
		buf := bytes.TrimSpace(scanner.Bytes())
		if len(buf) == 0 {
			continue
		}
		var event Event
		if err := Decode(bytes.NewReader(buf), &event); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		if event == nil {
			return errors.Errorf("line %d: not a JSON object", line)
		}
		if err := fn(line, event); err != nil {
			return err
		}
	}
	return errors.WithStack(scanner.Err())
}

// Count returns the number of events in the stream.
func (p *Parser) Count(reader io.Reader) (int, error) {
	count := 0
	err := p.Parse(reader, func(int, Event) error {
		count++
		return nil
	})
	return count, err
}

// Decode a single JSON document, which must be the only content of the
// reader.
func Decode(r io.Reader, v any) error {
	// Large numbers are not turned into strings, so the UseNumber option for
	// the decoder is required.
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.WithStack(err)
	}
	if dec.More() {
		return errors.New("unexpected data after JSON document")
	}
	return nil
}
