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
	"database/sql"
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	driver:      "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	createTable: fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			external_id TEXT NOT NULL,
			document TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, external_id)
		)`, quoteIdentifier(tableName)),
	upsert: fmt.Sprintf(`
		INSERT INTO %s (collection, external_id, document, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, external_id)
		DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`, quoteIdentifier(tableName)),
}

// NewPostgres connects lazily on first use.
func NewPostgres(dsn string) (*SQL, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres cache store needs a dsn")
	}
	return &SQL{
		dsn:     dsn,
		dialect: postgresDialect,
		openDB:  sql.Open,
	}, nil
}
