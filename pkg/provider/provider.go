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

package provider

import (
	"context"
	"iter"
	"path"
	"sort"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/pathpolicy"
)

// 📄 File is one activity file found under a sync root
type File struct {
	// FullPath is the absolute path on the storage service.
	FullPath string
	// RelPath is FullPath without the sync root, always starting with "/".
	RelPath string
	// StorageID is the service's own handle for the file, when it has one.
	StorageID string
	Rev       string
}

// ⚙️ AccountConfig is the user-editable part of an account
type AccountConfig struct {
	SyncRoot       string       `json:"sync_root"`
	UploadUntagged bool         `json:"upload_untagged"`
	Format         codec.Format `json:"format"`
	Filename       string       `json:"filename"`

	// Ignore holds doublestar globs matched against relative paths.
	Ignore []string `json:"ignore,omitempty"`
}

// WithDefaults fills unset fields.
func (c AccountConfig) WithDefaults() AccountConfig {
	if c.SyncRoot == "" {
		c.SyncRoot = "/"
	}
	if c.Format == "" {
		c.Format = codec.TCX
	}
	if c.Filename == "" {
		c.Filename = pathpolicy.DefaultTemplate
	}
	return c
}

// 👤 Account is one connected storage account
type Account struct {
	// ExternalID keys the account's cache documents.
	ExternalID string
	Provider   string

	// FullAccess accounts see the whole storage; others are confined to an
	// app sandbox whose prefix is hidden from paths.
	FullAccess bool

	// Token is the credential handed to the service client.
	Token string

	// Options carries provider specific settings (a root directory, a repository).
	Options map[string]string

	Config AccountConfig
}

// Option returns a provider option, or def when unset.
func (a *Account) Option(key, def string) string {
	if v, ok := a.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Client is the adapter specific handle returned by Port.Client.
type Client any

// 🔌 Port is what every storage adapter implements
type Port interface {
	Name() string

	// MaxPathLen bounds rendered filenames.
	MaxPathLen() int

	Client(ctx context.Context, acct *Account) (Client, error)

	// SyncRoot is the absolute directory activities live under.
	SyncRoot(acct *Account) string

	// Enumerate yields every .gpx and .tcx file below root, updating structure
	// as directories are listed.
	Enumerate(ctx context.Context, acct *Account, client Client, root string, structure *cache.Structure) iter.Seq2[File, error]

	// Read returns the file content and its current revision.
	Read(ctx context.Context, acct *Account, client Client, file File, structure *cache.Structure) ([]byte, string, error)

	// Write stores data at fullPath and returns the new revision.
	Write(ctx context.Context, acct *Account, client Client, fullPath string, data []byte, structure *cache.Structure) (string, error)

	Move(ctx context.Context, acct *Account, client Client, fullPath, destPath string, structure *cache.Structure) error

	CacheStore() cache.Store
}

// 🏭 Factory creates a port persisting its caches in store
type Factory func(ctx context.Context, store cache.Store) (Port, error)

var (
	mu sync.RWMutex
	// 🗺️ providers maps provider names to factories
	providers = make(map[string]Factory)
)

// 📝 Register registers a provider factory
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// 🎯 Get returns a provider factory by name
func Get(name string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := providers[name]
	if !ok {
		return nil, errors.Errorf("unknown provider: %s", name)
	}
	return factory, nil
}

// Names lists registered providers.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RelativePath strips root from fullPath. The result always starts with "/".
func RelativePath(root, fullPath string) string {
	root = strings.TrimSuffix(root, "/")
	rel := fullPath
	if root != "" && (fullPath == root || strings.HasPrefix(fullPath, root+"/")) {
		rel = strings.TrimPrefix(fullPath, root)
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

// Join builds an absolute storage path.
func Join(elem ...string) string {
	return path.Join(append([]string{"/"}, elem...)...)
}
