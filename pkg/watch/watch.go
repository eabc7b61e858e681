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

// Package watch turns file system changes under local account roots into
// re-sync triggers.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/codec"
)

const DefaultDebounce = 2 * time.Second

// TriggerFunc receives the keys whose directories changed since the last
// call.
type TriggerFunc func(ctx context.Context, keys []string) error

// 👀 Watcher watches directory trees and batches activity file changes
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu    sync.Mutex
	roots map[string]string // root dir -> key
}

// New creates a watcher. Changes are delivered once no further change has
// arrived for debounce.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{fsw: fsw, debounce: debounce, roots: map[string]string{}}, nil
}

// Add watches root and every directory below it, reporting changes as key.
func (w *Watcher) Add(key, root string) error {
	root = filepath.Clean(root)

	w.mu.Lock()
	w.roots[root] = key
	w.mu.Unlock()

	return w.addTree(root)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Errorf("walking %s: %w", p, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// keyFor returns the key of the deepest root containing p.
func (w *Watcher) keyFor(p string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	best := ""
	for root := range w.roots {
		if (p == root || strings.HasPrefix(p, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return "", false
	}
	return w.roots[best], true
}

// relevant reports whether ev can change an account's listing.
func relevant(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	if codec.IsActivityFile(ev.Name) {
		return true
	}
	// a removed or renamed directory can take activity files with it
	return ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create)
}

// 🏃 Run delivers batched changes to trigger until ctx is done. Trigger
// errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, trigger TriggerFunc) error {
	logger := zerolog.Ctx(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warn().Err(err).Str("dir", ev.Name).Msg("could not watch new directory")
					}
				}
			}

			if !relevant(ev) {
				continue
			}

			key, ok := w.keyFor(ev.Name)
			if !ok {
				continue
			}

			logger.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Str("key", key).Msg("change detected")
			pending[key] = true
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			keys := make([]string, 0, len(pending))
			for k := range pending {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pending = map[string]bool{}

			if err := trigger(ctx, keys); err != nil {
				logger.Warn().Err(err).Strs("keys", keys).Msg("triggered sync failed")
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
