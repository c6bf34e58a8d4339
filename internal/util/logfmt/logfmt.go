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

// Package logfmt configures the process-wide logrus logger.
package logfmt

import (
	"encoding/json"
	"fmt"
	golog "log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	joonix "github.com/joonix/log"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const detailKey = "detail"

// Options control the logger.
type Options struct {
	Destination string // A file to append to; stderr if empty.
	Format      string // One of fluent or text.
	Verbosity   int    // 1 for debug, 2 or more for trace.
}

// Setup configures the standard logrus logger and redirects the
// standard library logger into it. The returned function releases any
// resources held.
func Setup(opts *Options) (func(), error) {
	switch opts.Verbosity {
	case 0:
	// No-op
	case 1:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.TraceLevel)
	}

	switch strings.ToLower(opts.Format) {
	case "fluent":
		log.SetFormatter(Wrap(joonix.NewFormatter()))
	case "text", "":
		log.SetFormatter(Wrap(&log.TextFormatter{
			FullTimestamp:   true,
			PadLevelText:    true,
			TimestampFormat: time.Stamp,
		}))
	default:
		return nil, errors.Errorf("unknown log format: %q", opts.Format)
	}
	log.AddHook(counter{})

	cleanup := func() {}
	if opts.Destination != "" {
		f, err := os.OpenFile(opts.Destination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "could not open log output file")
		}
		log.SetOutput(f)
		cleanup = func() { _ = f.Close() }
	}

	// Hijack anything that uses the standard go logger, like http.
	pw := log.WithField("golog", true).Writer()
	// logrus will provide timestamp info.
	golog.SetFlags(0)
	golog.SetOutput(pw)
	return func() {
		golog.SetOutput(os.Stderr)
		_ = pw.Close()
		cleanup()
	}, nil
}

// Wrap adds a workaround for there being no support for automatically
// printing the details of an error to expose the stack trace. This
// formatter adds an extra detail field to log entries that contain an
// ErrorKey. If the error to be formatted is a pgconn.PgError, its
// subfields will also be added to the error message.
//
// https://github.com/sirupsen/logrus/issues/895
func Wrap(f log.Formatter) log.Formatter {
	return &detailer{f}
}

type detailer struct {
	log.Formatter
}

// sqlDetail represents the interesting parts of a pgconn.PgError in a
// way that plays nicely with the various formatters.
type sqlDetail struct {
	Severity   string `json:"severity,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Hint       string `json:"hint,omitempty"`
	SchemaName string `json:"schemaName,omitempty"`
	TableName  string `json:"tableName,omitempty"`
	Routine    string `json:"routine,omitempty"`
}

func newSQLDetail(err *pgconn.PgError) *sqlDetail {
	return &sqlDetail{
		Severity:   err.Severity,
		Code:       err.Code,
		Message:    err.Message,
		Detail:     err.Detail,
		Hint:       err.Hint,
		SchemaName: err.SchemaName,
		TableName:  err.TableName,
		Routine:    err.Routine,
	}
}

func (s *sqlDetail) String() string {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetIndent("", " ")
	_ = enc.Encode(s)
	return sb.String()
}

// Format implements log.Formatter.
func (d *detailer) Format(e *log.Entry) ([]byte, error) {
	if e.Data != nil {
		if err, ok := e.Data[log.ErrorKey].(error); ok {
			// Don't overwrite anywhere there may already be a detail key.
			if _, existing := e.Data[detailKey]; !existing && log.IsLevelEnabled(log.DebugLevel) {
				e.Data[detailKey] = fmt.Sprintf("%+v", err)
			}

			if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
				e.Data["sql"] = newSQLDetail(pgErr)
			}
		}
	}
	return d.Formatter.Format(e)
}
