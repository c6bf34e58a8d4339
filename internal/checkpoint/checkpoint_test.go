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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/cockroachdb/runpoll/internal/source/objstore/providers/memory"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := assert.New(t)
	cp := New()
	a.Equal(Epoch, cp.LastPoll())
	a.Equal("1970-01-01T00:00:00Z", cp.LastPoll().Format(time.RFC3339))
	a.Zero(cp.Len())
	a.Empty(cp.ProcessedRuns())
}

func TestMarkProcessed(t *testing.T) {
	a := assert.New(t)
	var cp Checkpoint
	a.True(cp.MarkProcessed("a"))
	a.True(cp.MarkProcessed("b"))
	a.False(cp.MarkProcessed("a"))
	a.True(cp.Processed("a"))
	a.False(cp.Processed("c"))
	a.Equal([]string{"a", "b"}, cp.ProcessedRuns())

	// The returned slice is a copy.
	runs := cp.ProcessedRuns()
	runs[0] = "z"
	a.Equal([]string{"a", "b"}, cp.ProcessedRuns())
}

func TestAdvance(t *testing.T) {
	a := assert.New(t)
	cp := New()
	later := time.Date(2026, 2, 4, 12, 0, 0, 0, time.FixedZone("X", 3600))
	a.Equal(later.UTC(), cp.Advance(later))
	a.Equal(time.UTC, cp.LastPoll().Location())
	// Never moves backwards.
	a.Equal(later.UTC(), cp.Advance(later.Add(-time.Hour)))
	a.Equal(later.UTC(), cp.LastPoll())
}

func TestClone(t *testing.T) {
	a := assert.New(t)
	cp := New()
	cp.MarkProcessed("a")
	cp.Advance(time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC))

	clone := cp.Clone()
	a.Equal(cp.LastPoll(), clone.LastPoll())
	a.Equal(cp.ProcessedRuns(), clone.ProcessedRuns())

	clone.MarkProcessed("b")
	clone.Advance(cp.LastPoll().Add(time.Hour))
	a.False(cp.Processed("b"))
	a.Equal(1, cp.Len())
	a.True(clone.LastPoll().After(cp.LastPoll()))
}

func TestEncode(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	data, err := Encode(New())
	r.NoError(err)
	a.JSONEq(`{"last_poll": "1970-01-01T00:00:00Z", "processed_runs": []}`, string(data))

	cp := New()
	cp.Advance(time.Date(2026, 2, 4, 12, 30, 0, 500, time.UTC))
	cp.MarkProcessed("abc123")
	cp.MarkProcessed("def456")
	data, err = Encode(cp)
	r.NoError(err)
	a.JSONEq(`{
  "last_poll": "2026-02-04T12:30:00.0000005Z",
  "processed_runs": ["abc123", "def456"]
}`, string(data))

	// Exactly two fields.
	var fields map[string]json.RawMessage
	r.NoError(json.Unmarshal(data, &fields))
	a.Len(fields, 2)

	back, err := Decode(data)
	r.NoError(err)
	a.True(cp.LastPoll().Equal(back.LastPoll()))
	a.Equal(cp.ProcessedRuns(), back.ProcessedRuns())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantPoll time.Time
		wantRuns []string
		corrupt  bool
	}{
		{"reference default", `{"last_poll": "1970-01-01T00:00:00Z", "processed_runs": []}`, Epoch, []string{}, false},
		{"python offset", `{"last_poll": "2026-02-04T12:00:00.123456+00:00", "processed_runs": ["a"]}`,
			time.Date(2026, 2, 4, 12, 0, 0, 123456000, time.UTC), []string{"a"}, false},
		{"duplicates collapse", `{"last_poll": "1970-01-01T00:00:00Z", "processed_runs": ["a", "b", "a"]}`,
			Epoch, []string{"a", "b"}, false},
		{"missing fields", `{}`, Epoch, []string{}, false},
		{"empty", ``, time.Time{}, nil, true},
		{"null", `null`, time.Time{}, nil, true},
		{"truncated", `{"last_poll": "1970-01-01T00:00:00Z", "processed_runs": [`, time.Time{}, nil, true},
		{"bad time", `{"last_poll": "yesterday", "processed_runs": []}`, time.Time{}, nil, true},
		{"wrong type", `{"last_poll": "1970-01-01T00:00:00Z", "processed_runs": "a"}`, time.Time{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			got, err := Decode([]byte(tt.data))
			if tt.corrupt {
				a.ErrorIs(err, ErrCorrupt)
				return
			}
			if !a.NoError(err) {
				return
			}
			a.True(tt.wantPoll.Equal(got.LastPoll()), "got %s", got.LastPoll())
			a.Equal(tt.wantRuns, got.ProcessedRuns())
		})
	}
}

// TestStoreFiles exercises the file backend: missing, round-trip,
// overwrite and corrupt checkpoints.
func TestStoreFiles(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)
	ctx := context.Background()
	location := filepath.Join(t.TempDir(), "nested", ".quarry-s3-checkpoint.json")
	store := NewStore(Files{})

	cp, err := store.Load(ctx, location)
	r.NoError(err)
	a.Equal(Epoch, cp.LastPoll())
	a.Zero(cp.Len())

	for i, id := range []string{"r1", "r2", "r3"} {
		cp.MarkProcessed(id)
		cp.Advance(time.Unix(int64(1000+i), 0))
		r.NoError(store.Save(ctx, location, cp))
	}
	back, err := store.Load(ctx, location)
	r.NoError(err)
	a.Equal([]string{"r1", "r2", "r3"}, back.ProcessedRuns())
	a.True(time.Unix(1002, 0).Equal(back.LastPoll()))

	// A shorter document fully replaces the longer one.
	r.NoError(store.Save(ctx, location, New()))
	back, err = store.Load(ctx, location)
	r.NoError(err)
	a.Zero(back.Len())

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(location))
	r.NoError(err)
	a.Len(entries, 1)

	r.NoError(os.WriteFile(location, []byte("{not json"), 0644))
	_, err = store.Load(ctx, location)
	a.ErrorIs(err, ErrCorrupt)
}

func TestStoreMemory(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)
	ctx := context.Background()
	blobs := &Memory{}
	store := NewStore(blobs)

	cp := New()
	cp.MarkProcessed("x")
	r.NoError(store.Save(ctx, "one", cp))
	got, err := store.Load(ctx, "one")
	r.NoError(err)
	a.True(got.Processed("x"))

	got, err = store.Load(ctx, "two")
	r.NoError(err)
	a.Zero(got.Len())

	// An empty stored value is corrupt, not missing.
	r.NoError(blobs.Put(ctx, "three", []byte{}))
	_, err = store.Load(ctx, "three")
	a.ErrorIs(err, ErrCorrupt)
}

type brokenBlobs struct {
	err error
}

func (b *brokenBlobs) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }

func (b *brokenBlobs) Put(context.Context, string, []byte) error { return b.err }

func TestStoreErrors(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	boom := errors.New("boom")
	store := NewStore(&brokenBlobs{err: boom})
	_, err := store.Load(ctx, "x")
	a.ErrorIs(err, boom)
	a.NotErrorIs(err, ErrCorrupt)
	a.ErrorIs(store.Save(ctx, "x", New()), boom)
}

func TestStoreObjects(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)
	ctx := context.Background()
	b := &memory.Bucket{}
	store := NewStore(&Objects{Bucket: b})

	cp, err := store.Load(ctx, "state/checkpoint.json")
	r.NoError(err)
	cp.MarkProcessed("abc")
	r.NoError(store.Save(ctx, "state/checkpoint.json", cp))

	rd, err := b.Open(ctx, "state/checkpoint.json")
	r.NoError(err)
	_ = rd.Close()

	back, err := store.Load(ctx, "state/checkpoint.json")
	r.NoError(err)
	a.Equal([]string{"abc"}, back.ProcessedRuns())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	b := &memory.Bucket{}
	opts := &OpenOptions{
		OpenBucket: func(name string) (bucket.Bucket, error) {
			if name != "state" {
				return nil, errors.Errorf("unexpected bucket %s", name)
			}
			return b, nil
		},
	}
	tests := []struct {
		location string
		wantKey  string
		wantErr  string
	}{
		{".quarry-s3-checkpoint.json", ".quarry-s3-checkpoint.json", ""},
		{"file:///tmp/cp.json", "/tmp/cp.json", ""},
		{"s3://state/poller/cp.json", "poller/cp.json", ""},
		{"s3://state", "", "s3://bucket/key"},
		{"s3://other/cp.json", "", "unexpected bucket"},
		{"gs://x/y", "", "unknown checkpoint scheme"},
		{"", "", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			a := assert.New(t)
			store, key, err := Open(ctx, tt.location, opts)
			if tt.wantErr != "" {
				a.ErrorContains(err, tt.wantErr)
				return
			}
			if a.NoError(err) {
				defer store.Close()
				a.Equal(tt.wantKey, key)
			}
		})
	}

	_, _, err := Open(ctx, "s3://state/cp.json", nil)
	assert.ErrorContains(t, err, "not available")
}
