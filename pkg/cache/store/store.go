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

// Package store opens cache.Store backends from a DSN.
//
//	memory://                     process-local, lost on exit
//	file:///var/lib/tracksync     one JSON file per document
//	sqlite:///var/lib/ts.db       single sqlite database
//	postgres://user@host/db       shared postgres table
package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
)

// 🏭 Open returns the cache store named by dsn. A bare path is treated as a
// file store directory.
func Open(ctx context.Context, dsn string) (cache.Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("cache dsn is required")
	}

	docs, err := openDocuments(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return cache.NewStore(docs), nil
}

func openDocuments(ctx context.Context, dsn string) (cache.Documents, error) {
	logger := zerolog.Ctx(ctx)

	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		logger.Debug().Str("dir", dsn).Msg("opening file cache store")
		return NewFile(afero.NewOsFs(), dsn)
	}

	logger.Debug().Str("scheme", scheme).Msg("opening cache store")

	switch strings.ToLower(scheme) {
	case "memory", "mem":
		return NewMemory(), nil
	case "file":
		return NewFile(afero.NewOsFs(), rest)
	case "sqlite", "sqlite3":
		return NewSQLite(ctx, rest)
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, errors.Errorf("unsupported cache store scheme %q", scheme)
	}
}
