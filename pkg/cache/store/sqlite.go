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

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteDriver = "sqlite3"

var sqliteDialect = dialect{
	driver:      sqliteDriver,
	placeholder: func(int) string { return "?" },
	createTable: fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			external_id TEXT NOT NULL,
			document TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, external_id)
		)`, quoteIdentifier(tableName)),
	upsert: fmt.Sprintf(`
		INSERT INTO %s (collection, external_id, document, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, external_id)
		DO UPDATE SET document = excluded.document, updated_at = CURRENT_TIMESTAMP`, quoteIdentifier(tableName)),
}

// NewSQLite opens (creating if needed) a sqlite database at path. The
// special path ":memory:" keeps everything in memory.
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	if path == "" {
		return nil, errors.New("sqlite cache store needs a path")
	}

	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("using sqlite cache store")

	return &SQL{
		dsn:     dsn,
		dialect: sqliteDialect,
		openDB:  sql.Open,
	}, nil
}
