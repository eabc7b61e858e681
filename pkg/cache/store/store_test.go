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
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/tracksync/pkg/cache"
)

func exerciseStore(t *testing.T, ctx context.Context, st cache.Store) {
	t.Helper()

	t.Run("missing_documents_load_empty", func(t *testing.T) {
		s, err := st.LoadStructure(ctx, "acct/1")
		require.NoError(t, err)
		assert.Equal(t, "acct/1", s.ExternalID)
		assert.Empty(t, s.Structure)

		a, err := st.LoadActivities(ctx, "acct/1")
		require.NoError(t, err)
		assert.NotNil(t, a.Activities)
		assert.Empty(t, a.Activities)
	})

	t.Run("save_and_load", func(t *testing.T) {
		s := cache.NewStructure("acct/1")
		s.Ensure("/").Hash = "h1"
		s.SetFileRev("/2021", "/2021/run.gpx", "r1")
		require.NoError(t, st.SaveStructure(ctx, s))

		a := cache.NewActivities("acct/1")
		a.Put("/2021/run.gpx", &cache.ActivityEntry{Rev: "r1", UID: "u1", StartTime: "07:00:00 01 06 2021 +0000"})
		require.NoError(t, st.SaveActivities(ctx, a))

		gotS, err := st.LoadStructure(ctx, "acct/1")
		require.NoError(t, err)
		require.NotNil(t, gotS.Lookup("/"))
		assert.Equal(t, "h1", gotS.Lookup("/").Hash)
		require.NotNil(t, gotS.Lookup("/2021"))
		assert.Equal(t, []cache.FileRev{{Path: "/2021/run.gpx", Rev: "r1"}}, gotS.Lookup("/2021").Files)

		gotA, err := st.LoadActivities(ctx, "acct/1")
		require.NoError(t, err)
		e, _ := gotA.Resolve("/2021/run.gpx")
		require.NotNil(t, e)
		assert.Equal(t, "u1", e.UID)
	})

	t.Run("overwrite", func(t *testing.T) {
		a := cache.NewActivities("acct/1")
		require.NoError(t, st.SaveActivities(ctx, a))
		got, err := st.LoadActivities(ctx, "acct/1")
		require.NoError(t, err)
		assert.Empty(t, got.Activities)
	})

	t.Run("accounts_are_isolated", func(t *testing.T) {
		got, err := st.LoadStructure(ctx, "acct/2")
		require.NoError(t, err)
		assert.Empty(t, got.Structure)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.Delete(ctx, "acct/1"))
		require.NoError(t, st.Delete(ctx, "acct/1"))

		got, err := st.LoadStructure(ctx, "acct/1")
		require.NoError(t, err)
		assert.Empty(t, got.Structure)
	})
}

func TestMemory(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	exerciseStore(t, ctx, cache.NewStore(NewMemory()))
}

func TestFile(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	fs := afero.NewMemMapFs()

	docs, err := NewFile(fs, "/var/cache/tracksync")
	require.NoError(t, err)
	exerciseStore(t, ctx, cache.NewStore(docs))

	t.Run("no_temp_files_left", func(t *testing.T) {
		st := cache.NewStore(docs)
		require.NoError(t, st.SaveStructure(ctx, cache.NewStructure("x")))
		matches, err := afero.Glob(fs, "/var/cache/tracksync/*/*.tmp")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("unreadable_document_is_discarded", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/var/cache/tracksync/activity_cache/broken.json", []byte("{not json"), 0o644))
		got, err := cache.NewStore(docs).LoadActivities(ctx, "broken")
		require.NoError(t, err)
		assert.Empty(t, got.Activities)
	})
}

func TestSQLite(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	docs, err := NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	st := cache.NewStore(docs)
	defer st.Close()

	exerciseStore(t, ctx, st)
}

func TestSQLiteCancelledFirstUse(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	docs, err := NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer docs.Close()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	// the first caller gives up, the store must still serve the next one
	_, _ = docs.Get(cancelled, cache.StructureCollection, "acct")

	require.NoError(t, docs.Put(ctx, cache.StructureCollection, "acct", []byte(`{"ExternalID":"acct"}`)))
	got, err := docs.Get(ctx, cache.StructureCollection, "acct")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ExternalID":"acct"}`, string(got))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TRACKSYNC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRACKSYNC_TEST_POSTGRES_DSN not set")
	}
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	st, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer st.Close()

	exerciseStore(t, ctx, st)
}

func TestOpen(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{name: "memory", dsn: "memory://"},
		{name: "sqlite_memory", dsn: "sqlite://:memory:"},
		{name: "file_url", dsn: "file://" + t.TempDir()},
		{name: "bare_path", dsn: t.TempDir()},
		{name: "empty", dsn: "  ", wantErr: true},
		{name: "unknown_scheme", dsn: "redis://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Open(ctx, tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer st.Close()

			_, err = st.LoadActivities(ctx, "probe")
			assert.NoError(t, err)
		})
	}
}
