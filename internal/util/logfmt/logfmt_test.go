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

package logfmt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// restore resets the global logger once the test completes.
func restore(t *testing.T) {
	level := log.GetLevel()
	formatter := log.StandardLogger().Formatter
	out := log.StandardLogger().Out
	hooks := log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	t.Cleanup(func() {
		log.SetLevel(level)
		log.SetFormatter(formatter)
		log.SetOutput(out)
		log.StandardLogger().ReplaceHooks(hooks)
	})
}

func TestSetup(t *testing.T) {
	tcs := []struct {
		opts    Options
		level   log.Level
		wantErr bool
	}{
		{opts: Options{Format: "text"}, level: log.InfoLevel},
		{opts: Options{Format: "fluent", Verbosity: 1}, level: log.DebugLevel},
		{opts: Options{Verbosity: 3}, level: log.TraceLevel},
		{opts: Options{Format: "xml"}, wantErr: true},
	}
	for _, tc := range tcs {
		t.Run(tc.opts.Format, func(t *testing.T) {
			restore(t)
			log.SetLevel(log.InfoLevel)
			cleanup, err := Setup(&tc.opts)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer cleanup()
			assert.Equal(t, tc.level, log.GetLevel())
			assert.IsType(t, &detailer{}, log.StandardLogger().Formatter)
		})
	}
}

func TestSetupDestination(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	restore(t)
	dest := filepath.Join(t.TempDir(), "runpoll.log")

	warnings := testutil.ToFloat64(messageCount.WithLabelValues("warning"))
	cleanup, err := Setup(&Options{Destination: dest})
	r.NoError(err)
	log.Warn("hello")
	cleanup()

	data, err := os.ReadFile(dest)
	r.NoError(err)
	a.Contains(string(data), "hello")
	a.Equal(warnings+1, testutil.ToFloat64(messageCount.WithLabelValues("warning")))

	_, err = Setup(&Options{Destination: filepath.Join(dest, "nested")})
	r.Error(err)
}

func TestDetail(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	restore(t)
	log.SetLevel(log.DebugLevel)

	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetLevel(log.DebugLevel)
	logger.SetFormatter(Wrap(&log.JSONFormatter{}))

	pgErr := &pgconn.PgError{Code: "40001", Message: "restart transaction"}
	logger.WithError(errors.Wrap(pgErr, "could not save")).Warn("failed")
	out := buf.String()
	a.Contains(out, `"detail"`)
	a.Contains(out, `"sql"`)
	a.Contains(out, "40001")

	buf.Reset()
	logger.WithError(errors.New("plain")).WithField(detailKey, "mine").Warn("failed")
	r.Contains(buf.String(), `"detail":"mine"`)
	r.NotContains(buf.String(), `"sql"`)
}
