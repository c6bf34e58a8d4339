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

// Package pgmemo stores opaque values in a key/value table of a
// PostgreSQL-compatible database, such as CockroachDB.
package pgmemo

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/runpoll/internal/util/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	schema = `
CREATE TABLE IF NOT EXISTS %[1]s (
  key   TEXT  NOT NULL PRIMARY KEY,
  value BYTEA NOT NULL
)`
	getTemplate    = `SELECT value FROM %[1]s WHERE key = $1`
	updateTemplate = `
INSERT INTO %[1]s (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`
)

// Querier is the subset of a pgx pool or transaction that Memo uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Memo is a key/value table.
type Memo struct {
	db    Querier
	close func()
	sql   struct {
		get    string
		update string
	}
}

// New connects to the database and creates the table if needed. The
// table name may be schema-qualified.
func New(ctx context.Context, conn string, table string) (*Memo, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to memo database")
	}
	m, err := NewWithQuerier(ctx, pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	m.close = pool.Close
	return m, nil
}

// NewWithQuerier uses an existing connection.
func NewWithQuerier(ctx context.Context, db Querier, table string) (*Memo, error) {
	if table == "" {
		return nil, errors.New("a memo table name is required")
	}
	name := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	m := &Memo{db: db}
	m.sql.get = fmt.Sprintf(getTemplate, name)
	m.sql.update = fmt.Sprintf(updateTemplate, name)
	if err := retry.Retry(ctx, func(ctx context.Context) error {
		_, err := db.Exec(ctx, fmt.Sprintf(schema, name))
		return err
	}); err != nil {
		return nil, errors.Wrapf(err, "could not create memo table %s", name)
	}
	return m, nil
}

// Get returns the value associated with the key.
func (m *Memo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var ret []byte
	err := retry.Retry(ctx, func(ctx context.Context) error {
		return m.db.QueryRow(ctx, m.sql.get, key).Scan(&ret)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	return ret, true, nil
}

// Put stores the value associated with the key.
func (m *Memo) Put(ctx context.Context, key string, value []byte) error {
	return errors.WithStack(retry.Retry(ctx, func(ctx context.Context) error {
		_, err := m.db.Exec(ctx, m.sql.update, key, value)
		return err
	}))
}

// Close releases the connection pool, if Memo owns it.
func (m *Memo) Close() {
	if m.close != nil {
		m.close()
	}
}
