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

package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/provider"
	"github.com/walteh/tracksync/pkg/syncerr"
)

// fakeRepo serves the handful of endpoints the port uses.
type fakeRepo struct {
	mu    sync.Mutex
	head  string
	blobs map[string]string // sha -> content
	files map[string]string // repo path -> sha
	calls map[string]int
	next  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		head:  "c1",
		blobs: map[string]string{"b1": "<gpx/>", "b2": "<tcx/>"},
		files: map[string]string{"Activities/2021/a.gpx": "b1", "Activities/b.tcx": "b2", "README.md": "b0"},
		calls: map[string]int{},
	}
}

func (f *fakeRepo) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/o/r/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls["ref"]++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]any{"sha": f.head, "type": "commit"},
		})
	})

	mux.HandleFunc("GET /repos/o/r/git/trees/{sha}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls["tree"]++
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))

		entries := []map[string]any{{"path": "Activities", "type": "tree", "sha": "t1"}, {"path": "Activities/2021", "type": "tree", "sha": "t2"}}
		for p, sha := range f.files {
			entries = append(entries, map[string]any{"path": p, "type": "blob", "sha": sha})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sha": "t0", "tree": entries, "truncated": false})
	})

	mux.HandleFunc("GET /repos/o/r/git/blobs/{sha}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls["blob"]++
		content, ok := f.blobs[r.PathValue("sha")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Not Found"}`)
			return
		}
		_, _ = io.WriteString(w, content)
	})

	mux.HandleFunc("GET /repos/o/r/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls["contents"]++
		sha, ok := f.files[r.PathValue("path")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Not Found"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "file", "sha": sha, "path": r.PathValue("path")})
	})

	mux.HandleFunc("PUT /repos/o/r/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls["put"]++

		var body struct {
			Content []byte `json:"content"`
			SHA     string `json:"sha"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		p := r.PathValue("path")
		if existing, ok := f.files[p]; ok && existing != body.SHA {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"message":"sha mismatch"}`)
			return
		}

		f.next++
		sha := "n" + string(rune('0'+f.next))
		f.blobs[sha] = string(body.Content)
		f.files[p] = sha
		f.head = "c" + sha
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]any{"sha": sha, "path": p}})
	})

	mux.HandleFunc("DELETE /repos/o/r/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls["delete"]++
		delete(f.files, r.PathValue("path"))
		f.head += "d"
		_ = json.NewEncoder(w).Encode(map[string]any{"commit": map[string]any{"sha": f.head}})
	})

	return mux
}

func setup(t *testing.T) (context.Context, *fakeRepo, *Port, *provider.Account, provider.Client) {
	t.Helper()
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	repo := newFakeRepo()
	server := httptest.NewServer(repo.handler(t))
	t.Cleanup(server.Close)

	port := New(nil)
	acct := &provider.Account{
		ExternalID: "o/r",
		Provider:   Name,
		FullAccess: true,
		Token:      "mock_token",
		Options:    map[string]string{OptionRepo: "o/r", OptionAPIURL: server.URL},
		Config:     provider.AccountConfig{SyncRoot: "/Activities"},
	}

	client, err := port.Client(ctx, acct)
	require.NoError(t, err)
	return ctx, repo, port, acct, client
}

func enumerate(t *testing.T, ctx context.Context, port *Port, acct *provider.Account, client provider.Client, s *cache.Structure) map[string]provider.File {
	t.Helper()
	out := map[string]provider.File{}
	for f, err := range port.Enumerate(ctx, acct, client, port.SyncRoot(acct), s) {
		require.NoError(t, err)
		out[f.RelPath] = f
	}
	return out
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		name      string
		repo      string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{name: "owner_name", repo: "walteh/runs", wantOwner: "walteh", wantName: "runs"},
		{name: "with_host", repo: "github.com/walteh/runs", wantOwner: "walteh", wantName: "runs"},
		{name: "with_https_and_git", repo: "https://github.com/walteh/runs.git", wantOwner: "walteh", wantName: "runs"},
		{name: "invalid", repo: "invalid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, name, err := parseRepo(tt.repo)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestEnumerate(t *testing.T) {
	ctx, repo, port, acct, client := setup(t)
	s := cache.NewStructure("o/r")

	files := enumerate(t, ctx, port, acct, client, s)
	require.Len(t, files, 2)
	assert.Equal(t, "/Activities/2021/a.gpx", files["/2021/a.gpx"].FullPath)
	assert.Equal(t, "b1", files["/2021/a.gpx"].Rev)
	assert.Equal(t, "b2", files["/b.tcx"].Rev)

	t.Run("unchanged_head_skips_tree", func(t *testing.T) {
		again := enumerate(t, ctx, port, acct, client, s)
		assert.Len(t, again, 2)
		assert.Equal(t, 1, repo.calls["tree"])
		assert.Equal(t, 2, repo.calls["ref"])
	})
}

func TestReadWriteMove(t *testing.T) {
	ctx, repo, port, acct, client := setup(t)
	s := cache.NewStructure("o/r")
	files := enumerate(t, ctx, port, acct, client, s)

	t.Run("read", func(t *testing.T) {
		data, rev, err := port.Read(ctx, acct, client, files["/2021/a.gpx"], s)
		require.NoError(t, err)
		assert.Equal(t, "<gpx/>", string(data))
		assert.Equal(t, "b1", rev)
	})

	t.Run("write_new_then_enumerate", func(t *testing.T) {
		rev, err := port.Write(ctx, acct, client, "/Activities/up.tcx", []byte("<new/>"), s)
		require.NoError(t, err)
		assert.Equal(t, "<new/>", repo.blobs[rev])

		after := enumerate(t, ctx, port, acct, client, s)
		require.Contains(t, after, "/up.tcx")
		assert.Equal(t, rev, after["/up.tcx"].Rev)
	})

	t.Run("write_existing_updates", func(t *testing.T) {
		_, err := port.Write(ctx, acct, client, "/Activities/b.tcx", []byte("<v2/>"), s)
		require.NoError(t, err)
		assert.Equal(t, "<v2/>", repo.blobs[repo.files["Activities/b.tcx"]])
	})

	t.Run("move_honors_destination", func(t *testing.T) {
		require.NoError(t, port.Move(ctx, acct, client, "/Activities/b.tcx", "/Activities/b.tcx.summary-data", s))
		assert.NotContains(t, repo.files, "Activities/b.tcx")
		assert.Contains(t, repo.files, "Activities/b.tcx.summary-data")

		after := enumerate(t, ctx, port, acct, client, s)
		assert.NotContains(t, after, "/b.tcx")
	})

	t.Run("read_missing", func(t *testing.T) {
		_, _, err := port.Read(ctx, acct, client, provider.File{FullPath: "/Activities/none.gpx"}, s)
		assert.True(t, syncerr.Is(err, syncerr.NotFound), "got %v", err)
	})
}

func TestMoveWhileEnumerating(t *testing.T) {
	ctx, repo, port, acct, client := setup(t)
	repo.blobs["b3"] = "<tcx/>"
	repo.files = map[string]string{"Activities/a.tcx": "b1", "Activities/b.tcx": "b2", "Activities/c.tcx": "b3"}

	s := cache.NewStructure("o/r")

	var yielded []string
	for f, err := range port.Enumerate(ctx, acct, client, port.SyncRoot(acct), s) {
		require.NoError(t, err)
		yielded = append(yielded, f.FullPath)
		if len(yielded) == 1 {
			require.NoError(t, port.Move(ctx, acct, client, f.FullPath, f.FullPath+".summary-data", s))
		}
	}

	assert.ElementsMatch(t, []string{"/Activities/a.tcx", "/Activities/b.tcx", "/Activities/c.tcx"}, yielded)
	assert.Contains(t, repo.files, repoPath(yielded[0]+".summary-data"))

	for _, d := range s.Structure {
		for _, f := range d.Files {
			assert.NotContains(t, f.Path, ".summary-data", "non-activity files stay out of the structure")
		}
	}
}

func TestClassify(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	tests := []struct {
		name   string
		status int
		body   string
		want   syncerr.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Bad credentials"}`, want: syncerr.AuthRequired},
		{name: "server_error", status: http.StatusBadGateway, body: `{"message":"oops"}`, want: syncerr.Transport},
		{name: "quota", status: http.StatusForbidden, body: `{"message":"Repository is over its data quota"}`, want: syncerr.QuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			port := New(nil)
			acct := &provider.Account{Token: "t", Options: map[string]string{OptionRepo: "o/r", OptionAPIURL: server.URL}}
			client, err := port.Client(ctx, acct)
			require.NoError(t, err)

			var errs []error
			for _, err := range port.Enumerate(ctx, acct, client, "/", cache.NewStructure("o/r")) {
				errs = append(errs, err)
			}
			require.Len(t, errs, 1)
			assert.Equal(t, tt.want, syncerr.KindOf(errs[0]), "got %v", errs[0])
		})
	}
}

func TestClientWithoutToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	_, err := New(nil).Client(ctx, &provider.Account{Options: map[string]string{OptionRepo: "o/r"}})
	require.Error(t, err)
	assert.True(t, syncerr.IsBlocking(err))
}
