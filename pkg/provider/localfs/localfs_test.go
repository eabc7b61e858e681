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

package localfs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/provider"
	"github.com/walteh/tracksync/pkg/structure"
	"github.com/walteh/tracksync/pkg/syncerr"
)

func collect(t *testing.T, port *Port, ctx context.Context, acct *provider.Account, client provider.Client, s *cache.Structure) map[string]provider.File {
	t.Helper()
	out := map[string]provider.File{}
	for f, err := range port.Enumerate(ctx, acct, client, port.SyncRoot(acct), s) {
		require.NoError(t, err)
		out[f.RelPath] = f
	}
	return out
}

func TestFullAccess(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/Activities/2021/run.gpx", []byte("gpx"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/Activities/ride.TCX", []byte("tcx"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/Activities/swim.fit", []byte("fit"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/elsewhere.gpx", []byte("gpx"), 0o644))

	port := New(fs, nil)
	acct := &provider.Account{
		ExternalID: "me",
		FullAccess: true,
		Options:    map[string]string{OptionRoot: "/data"},
		Config:     provider.AccountConfig{SyncRoot: "/Activities"},
	}

	client, err := port.Client(ctx, acct)
	require.NoError(t, err)
	s := cache.NewStructure("me")

	t.Run("enumerates_activity_files_below_root", func(t *testing.T) {
		files := collect(t, port, ctx, acct, client, s)
		require.Len(t, files, 2)
		assert.Equal(t, "/Activities/2021/run.gpx", files["/2021/run.gpx"].FullPath)
		assert.Equal(t, "/Activities/ride.TCX", files["/ride.TCX"].FullPath)
		assert.NotEmpty(t, files["/ride.TCX"].Rev)
	})

	t.Run("read_returns_listed_revision", func(t *testing.T) {
		files := collect(t, port, ctx, acct, client, s)
		data, rev, err := port.Read(ctx, acct, client, files["/2021/run.gpx"], s)
		require.NoError(t, err)
		assert.Equal(t, "gpx", string(data))
		assert.Equal(t, files["/2021/run.gpx"].Rev, rev)
	})

	t.Run("write_then_enumerate_reports_same_revision", func(t *testing.T) {
		rev, err := port.Write(ctx, acct, client, "/Activities/new/up.tcx", []byte("<tcx/>"), s)
		require.NoError(t, err)

		files := collect(t, port, ctx, acct, client, s)
		require.Contains(t, files, "/new/up.tcx")
		assert.Equal(t, rev, files["/new/up.tcx"].Rev)
	})

	t.Run("move_honors_destination", func(t *testing.T) {
		require.NoError(t, port.Move(ctx, acct, client, "/Activities/ride.TCX", "/Activities/ride.TCX.summary-data", s))

		ok, err := afero.Exists(fs, "/data/Activities/ride.TCX.summary-data")
		require.NoError(t, err)
		assert.True(t, ok)

		files := collect(t, port, ctx, acct, client, s)
		assert.NotContains(t, files, "/ride.TCX")
	})

	t.Run("missing_file", func(t *testing.T) {
		_, _, err := port.Read(ctx, acct, client, provider.File{FullPath: "/Activities/nope.gpx"}, s)
		assert.True(t, syncerr.Is(err, syncerr.NotFound), "got %v", err)

		err = port.Move(ctx, acct, client, "/Activities/nope.gpx", "/Activities/x", s)
		assert.True(t, syncerr.Is(err, syncerr.NotFound), "got %v", err)
	})
}

func TestSandboxedAccount(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/Apps/tracksync/2020/a.gpx", []byte("gpx"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/private/b.gpx", []byte("gpx"), 0o644))

	port := New(fs, nil)
	acct := &provider.Account{
		ExternalID: "me",
		Options:    map[string]string{OptionRoot: "/data"},
		Config:     provider.AccountConfig{SyncRoot: "/private"},
	}

	client, err := port.Client(ctx, acct)
	require.NoError(t, err)
	s := cache.NewStructure("me")

	assert.Equal(t, "/", port.SyncRoot(acct))

	files := collect(t, port, ctx, acct, client, s)
	require.Len(t, files, 1)
	f := files["/2020/a.gpx"]
	assert.Equal(t, "/Apps/tracksync/2020/a.gpx", f.FullPath)

	_, err = port.Write(ctx, acct, client, "/up.tcx", []byte("tcx"), s)
	require.NoError(t, err)
	ok, err := afero.Exists(fs, "/data/Apps/tracksync/up.tcx")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientUnreachableRoot(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	port := New(afero.NewMemMapFs(), nil)
	_, err := port.Client(ctx, &provider.Account{Options: map[string]string{OptionRoot: "/missing"}})
	require.Error(t, err)
	assert.True(t, syncerr.IsBlocking(err))
}

func TestConditionalListing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/d/a.gpx", []byte("1"), 0o644))

	first, err := list(fs, "/d", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.Hash)

	again, err := list(fs, "/d", first.Hash)
	require.NoError(t, err)
	assert.Equal(t, structure.NotModified, again.Status)

	require.NoError(t, afero.WriteFile(fs, "/d/b.gpx", []byte("2"), 0o644))
	changed, err := list(fs, "/d", first.Hash)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, changed.Hash)
	assert.Len(t, changed.Files, 2)

	gone, err := list(fs, "/nope", "")
	require.NoError(t, err)
	assert.Equal(t, structure.Gone, gone.Status)
}

func TestDir(t *testing.T) {
	p := New(afero.NewMemMapFs(), nil)

	tests := []struct {
		name string
		acct *provider.Account
		want string
	}{
		{
			name: "full_access",
			acct: &provider.Account{FullAccess: true, Options: map[string]string{OptionRoot: "/mnt/nas"}, Config: provider.AccountConfig{SyncRoot: "/Activities"}},
			want: filepath.Join("/mnt/nas", "Activities"),
		},
		{
			name: "sandboxed",
			acct: &provider.Account{Options: map[string]string{OptionRoot: "/mnt/nas", OptionApp: "tap"}},
			want: filepath.Join("/mnt/nas", "Apps", "tap"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Dir(tt.acct))
		})
	}
}
