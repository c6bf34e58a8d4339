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

package ndjson

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		request string
		size    int
		want    int
		wantErr string
	}{
		{
			name:    "one",
			request: `{"event_type": "item", "v": 9007199254740995}`,
			want:    1,
		},
		{
			name:    "two with blank lines",
			request: "{\"a\": 1}\n\n   \n{\"a\": 2}\n",
			want:    2,
		},
		{
			name:    "empty",
			request: "",
			want:    0,
		},
		{
			name:    "malformed",
			request: "{\"a\": 1}\n{\"a\": \n",
			wantErr: "line 2",
		},
		{
			name:    "not an object",
			request: "[1, 2]",
			wantErr: "line 1",
		},
		{
			name:    "null",
			request: "null",
			wantErr: "not a JSON object",
		},
		{
			name:    "trailing data",
			request: `{"a": 1} {"b": 2}`,
			wantErr: "unexpected data",
		},
		{
			name:    "too long",
			request: `{"a": "0123456789abcdef"}`,
			size:    8,
			wantErr: "too long",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			size := tt.size
			if size == 0 {
				size = 1000
			}
			parser := &Parser{BufferSize: size}
			got, err := parser.Count(strings.NewReader(tt.request))
			if tt.wantErr != "" {
				a.ErrorContains(err, tt.wantErr)
				return
			}
			a.NoError(err)
			a.Equal(tt.want, got)
		})
	}
}

func TestParseNumbers(t *testing.T) {
	r := require.New(t)
	parser := &Parser{BufferSize: 1000}
	var lines []int
	var events []Event
	err := parser.Parse(strings.NewReader("\n{\"v\": 9007199254740995}\n"),
		func(line int, event Event) error {
			lines = append(lines, line)
			events = append(events, event)
			return nil
		})
	r.NoError(err)
	r.Equal([]int{2}, lines)
	r.Equal(json.Number("9007199254740995"), events[0]["v"])
}
