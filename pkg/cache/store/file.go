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
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
)

// File keeps one JSON file per document under a directory.
type File struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

var _ cache.Documents = (*File)(nil)

func NewFile(fs afero.Fs, dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("file cache store needs a directory")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("creating cache directory: %w", err)
	}
	return &File{fs: fs, dir: dir}, nil
}

func (f *File) path(coll cache.Collection, externalID string) string {
	return filepath.Join(f.dir, string(coll), url.PathEscape(externalID)+".json")
}

func (f *File) Get(ctx context.Context, coll cache.Collection, externalID string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.path(coll, externalID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, errors.Errorf("reading cache file: %w", err)
	}
	return data, nil
}

// Put writes to a temp file and renames it over the target.
func (f *File) Put(ctx context.Context, coll cache.Collection, externalID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(coll, externalID)
	if err := f.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Errorf("creating collection directory: %w", err)
	}

	tmp := target + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}

	if err := f.fs.Rename(tmp, target); err != nil {
		_ = f.fs.Remove(tmp)
		return errors.Errorf("renaming temp file: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", target).Int("bytes", len(data)).Msg("wrote cache document")
	return nil
}

func (f *File) Delete(ctx context.Context, coll cache.Collection, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.fs.Remove(f.path(coll, externalID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Errorf("removing cache file: %w", err)
	}
	return nil
}

func (f *File) Close() error {
	return nil
}
