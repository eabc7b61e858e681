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

// Package localfs stores activities on a filesystem through afero. Directory
// listings are conditional on a content hash of the directory entries, so
// unchanged directories are not walked twice.
package localfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/pathpolicy"
	"github.com/walteh/tracksync/pkg/provider"
	"github.com/walteh/tracksync/pkg/structure"
	"github.com/walteh/tracksync/pkg/syncerr"
)

const (
	Name = "localfs"

	// OptionRoot is the directory on disk the account's storage lives in.
	OptionRoot = "root"
	// OptionApp names the sandbox directory of restricted accounts.
	OptionApp = "app"

	defaultApp = "tracksync"
)

func init() {
	provider.Register(Name, func(ctx context.Context, store cache.Store) (provider.Port, error) {
		return New(afero.NewOsFs(), store), nil
	})
}

// 💽 Port implements provider.Port on an afero filesystem
type Port struct {
	fs    afero.Fs
	store cache.Store
}

var _ provider.Port = (*Port)(nil)

func New(fs afero.Fs, store cache.Store) *Port {
	return &Port{fs: fs, store: store}
}

func (p *Port) Name() string { return Name }

func (p *Port) MaxPathLen() int { return pathpolicy.DefaultMaxPathLen }

func (p *Port) CacheStore() cache.Store { return p.store }

func sandbox(acct *provider.Account) string {
	return "/Apps/" + acct.Option(OptionApp, defaultApp)
}

// fsPath confines restricted accounts to their sandbox.
func fsPath(acct *provider.Account, p string) string {
	p = path.Clean("/" + p)
	if acct.FullAccess {
		return p
	}
	box := sandbox(acct)
	if p == box || strings.HasPrefix(p, box+"/") {
		return p
	}
	return path.Join(box, p)
}

// Client returns the account's filesystem, rooted at its root option.
func (p *Port) Client(ctx context.Context, acct *provider.Account) (provider.Client, error) {
	root := acct.Option(OptionRoot, "/")

	info, err := p.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, syncerr.Wrap(syncerr.AuthRequired, err, "storage root %s is not reachable", root)
	}

	fsys := afero.NewBasePathFs(p.fs, root)
	if !acct.FullAccess {
		if err := fsys.MkdirAll(sandbox(acct), 0o755); err != nil {
			return nil, classify(err, "creating sandbox")
		}
	}

	zerolog.Ctx(ctx).Debug().Str("root", root).Bool("full_access", acct.FullAccess).Msg("opened local storage")

	return fsys, nil
}

func (p *Port) SyncRoot(acct *provider.Account) string {
	if !acct.FullAccess {
		return "/"
	}
	return acct.Config.WithDefaults().SyncRoot
}

// Dir is the on-disk directory holding the account's sync root.
func (p *Port) Dir(acct *provider.Account) string {
	return filepath.Join(acct.Option(OptionRoot, "/"), filepath.FromSlash(fsPath(acct, p.SyncRoot(acct))))
}

func asFs(client provider.Client) (afero.Fs, error) {
	fsys, ok := client.(afero.Fs)
	if !ok {
		return nil, errors.Errorf("localfs: unexpected client %T", client)
	}
	return fsys, nil
}

func (p *Port) Enumerate(ctx context.Context, acct *provider.Account, client provider.Client, root string, s *cache.Structure) iter.Seq2[provider.File, error] {
	return func(yield func(provider.File, error) bool) {
		fsys, err := asFs(client)
		if err != nil {
			yield(provider.File{}, err)
			return
		}

		walkRoot := fsPath(acct, root)
		relRoot := root
		if !acct.FullAccess {
			relRoot = sandbox(acct)
		}

		lister := structure.ListerFunc(func(ctx context.Context, dir, hash string) (*structure.Listing, error) {
			return list(fsys, dir, hash)
		})

		if err := structure.Walk(ctx, s, lister, walkRoot); err != nil {
			yield(provider.File{}, err)
			return
		}

		for _, f := range structure.Files(s, walkRoot) {
			file := provider.File{
				FullPath:  f.Path,
				RelPath:   provider.RelativePath(relRoot, f.Path),
				StorageID: f.Path,
				Rev:       f.Rev,
			}
			if !yield(file, nil) {
				return
			}
		}
	}
}

// list answers a conditional listing; the hash covers every entry's name,
// kind, size and modification time.
func list(fsys afero.Fs, dir, hash string) (*structure.Listing, error) {
	infos, err := afero.ReadDir(fsys, dir)
	if errors.Is(err, os.ErrNotExist) {
		return &structure.Listing{Status: structure.Gone}, nil
	}
	if err != nil {
		return nil, classify(err, "reading directory")
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	h := md5.New()
	for _, info := range infos {
		fmt.Fprintf(h, "%s|%t|%d|%d\n", info.Name(), info.IsDir(), info.Size(), info.ModTime().UnixNano())
	}
	sum := hex.EncodeToString(h.Sum(nil))

	if sum == hash {
		return &structure.Listing{Status: structure.NotModified}, nil
	}

	listing := &structure.Listing{Status: structure.Modified, Hash: sum}
	for _, info := range infos {
		full := path.Join(dir, info.Name())
		if info.IsDir() {
			listing.Dirs = append(listing.Dirs, full)
			continue
		}
		listing.Files = append(listing.Files, cache.FileRev{Path: full, Rev: rev(info)})
	}
	return listing, nil
}

func rev(info os.FileInfo) string {
	return fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size())
}

func (p *Port) Read(ctx context.Context, acct *provider.Account, client provider.Client, file provider.File, s *cache.Structure) ([]byte, string, error) {
	fsys, err := asFs(client)
	if err != nil {
		return nil, "", err
	}

	full := fsPath(acct, file.FullPath)

	data, err := afero.ReadFile(fsys, full)
	if err != nil {
		return nil, "", classify(err, "reading "+full)
	}

	info, err := fsys.Stat(full)
	if err != nil {
		return nil, "", classify(err, "stat "+full)
	}

	return data, rev(info), nil
}

func (p *Port) Write(ctx context.Context, acct *provider.Account, client provider.Client, fullPath string, data []byte, s *cache.Structure) (string, error) {
	fsys, err := asFs(client)
	if err != nil {
		return "", err
	}

	full := fsPath(acct, fullPath)

	if err := fsys.MkdirAll(path.Dir(full), 0o755); err != nil {
		return "", classify(err, "creating parent of "+full)
	}

	if err := afero.WriteFile(fsys, full, data, 0o644); err != nil {
		return "", classify(err, "writing "+full)
	}

	info, err := fsys.Stat(full)
	if err != nil {
		return "", classify(err, "stat "+full)
	}

	zerolog.Ctx(ctx).Debug().Str("path", full).Int("bytes", len(data)).Msg("wrote activity file")

	return rev(info), nil
}

func (p *Port) Move(ctx context.Context, acct *provider.Account, client provider.Client, fullPath, destPath string, s *cache.Structure) error {
	fsys, err := asFs(client)
	if err != nil {
		return err
	}

	from, to := fsPath(acct, fullPath), fsPath(acct, destPath)
	if _, err := fsys.Stat(from); err != nil {
		return classify(err, "stat "+from)
	}

	if err := fsys.Rename(from, to); err != nil {
		return classify(err, "moving "+from)
	}

	s.RemoveFile(path.Dir(from), from)
	return nil
}

func classify(err error, what string) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return syncerr.Wrap(syncerr.NotFound, err, "%s", what)
	case errors.Is(err, os.ErrPermission):
		return syncerr.Wrap(syncerr.AuthRequired, err, "%s", what)
	default:
		return syncerr.Wrap(syncerr.Transport, err, "%s", what)
	}
}
