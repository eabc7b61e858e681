// Copyright 2025 walteh LLC
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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
)

const (
	tableName        = "tracksync_cache"
	operationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// dialect holds what differs between the sql backends.
type dialect struct {
	driver      string
	placeholder func(n int) string
	upsert      string
	createTable string
}

// SQL keeps documents as rows of a single table, keyed by collection and
// external id.
type SQL struct {
	dsn     string
	dialect dialect
	openDB  sqlOpenFunc

	mu sync.Mutex
	db *sql.DB
}

var _ cache.Documents = (*SQL)(nil)

// ensureReady opens the database and creates the table on first use. A
// failed attempt is not remembered, so a cancelled caller does not break
// later ones.
func (s *SQL) ensureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := s.openDB(s.dialect.driver, s.dsn)
	if err != nil {
		return errors.Errorf("opening %s: %w", s.dialect.driver, err)
	}
	if s.dialect.driver == sqliteDriver {
		// one writer, and :memory: databases are per connection
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), operationTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, s.dialect.createTable); err != nil {
		_ = db.Close()
		return errors.Errorf("creating cache table: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQL) Get(ctx context.Context, coll cache.Collection, externalID string) ([]byte, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT document FROM %s WHERE collection = %s AND external_id = %s",
		quoteIdentifier(tableName), s.dialect.placeholder(1), s.dialect.placeholder(2))

	var payload string
	err := s.db.QueryRowContext(ctx, query, string(coll), externalID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, errors.Errorf("querying cache document: %w", err)
	}
	return []byte(payload), nil
}

func (s *SQL) Put(ctx context.Context, coll cache.Collection, externalID string, data []byte) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, string(coll), externalID, string(data)); err != nil {
		return errors.Errorf("upserting cache document: %w", err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, coll cache.Collection, externalID string) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE collection = %s AND external_id = %s",
		quoteIdentifier(tableName), s.dialect.placeholder(1), s.dialect.placeholder(2))
	if _, err := s.db.ExecContext(ctx, query, string(coll), externalID); err != nil {
		return errors.Errorf("deleting cache document: %w", err)
	}
	return nil
}

func (s *SQL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
