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

// Package structure keeps a cache.Structure in step with a storage tree
// using conditional directory listings.
package structure

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/codec"
)

// Status is the outcome of a conditional listing.
type Status int

const (
	// Modified means the directory changed (or was never seen); the
	// listing carries its contents.
	Modified Status = iota
	// NotModified means the stored hash still matches.
	NotModified
	// Gone means the directory no longer exists.
	Gone
)

// 📂 Listing is the answer to one conditional directory listing
type Listing struct {
	Status Status
	Hash   string
	Files  []cache.FileRev
	// Dirs are the absolute paths of the direct subdirectories.
	Dirs []string
}

// 🔌 Lister lists a directory unless its content hash still matches hash
type Lister interface {
	List(ctx context.Context, path, hash string) (*Listing, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context, path, hash string) (*Listing, error)

func (f ListerFunc) List(ctx context.Context, path, hash string) (*Listing, error) {
	return f(ctx, path, hash)
}

// 🔄 Walk refreshes the records for dir and everything below it. Unchanged
// directories are not re-read, vanished ones are dropped with their
// subtrees, and changed ones get their file list rebuilt.
func Walk(ctx context.Context, s *cache.Structure, l Lister, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := zerolog.Ctx(ctx)

	var hash string
	if rec := s.Lookup(dir); rec != nil {
		hash = rec.Hash
	}
	known := s.Descendants(dir)

	listing, err := l.List(ctx, dir, hash)
	if err != nil {
		return errors.Errorf("listing %s: %w", dir, err)
	}

	switch listing.Status {
	case NotModified:
		logger.Debug().Str("dir", dir).Msg("directory unchanged")
		for _, child := range s.Children(dir) {
			if err := Walk(ctx, s, l, child.Path); err != nil {
				return err
			}
		}
		return nil
	case Gone:
		logger.Debug().Str("dir", dir).Int("descendants", len(known)).Msg("directory gone, dropping records")
		s.RemoveTree(dir)
		return nil
	}

	rec := s.Ensure(dir)
	rec.Hash = listing.Hash
	rec.Files = nil
	for _, f := range listing.Files {
		if codec.IsActivityFile(f.Path) {
			rec.Files = append(rec.Files, f)
		}
	}

	logger.Debug().Str("dir", dir).Int("files", len(rec.Files)).Int("dirs", len(listing.Dirs)).Msg("directory listed")

	for _, sub := range listing.Dirs {
		if err := Walk(ctx, s, l, sub); err != nil {
			return err
		}
	}

	var stale []string
	for _, d := range known {
		if !within(d.Path, listing.Dirs) {
			stale = append(stale, d.Path)
		}
	}
	if len(stale) > 0 {
		logger.Debug().Strs("dirs", stale).Msg("pruning vanished directories")
		s.Remove(stale...)
	}

	return nil
}

// within reports whether p is one of dirs or below one of them.
func within(p string, dirs []string) bool {
	for _, d := range dirs {
		if p == d || strings.HasPrefix(p, strings.TrimSuffix(d, "/")+"/") {
			return true
		}
	}
	return false
}

// Files returns every cached file at or below root, in path order.
func Files(s *cache.Structure, root string) []cache.FileRev {
	var out []cache.FileRev
	if rec := s.Lookup(root); rec != nil {
		out = append(out, rec.Files...)
	}
	for _, d := range s.Descendants(root) {
		out = append(out, d.Files...)
	}
	return out
}
