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

package config

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/pathpolicy"
	"github.com/walteh/tracksync/pkg/provider"
)

const (
	DefaultCacheDSN    = "file://.tracksync/cache"
	DefaultParallelism = 4
)

// 📚 Config is a complete tracksync configuration file
type Config struct {
	CacheDSN    string     `json:"cache_dsn,omitempty" yaml:"cache_dsn,omitempty" hcl:"cache_dsn,optional"`
	Parallelism int        `json:"parallelism,omitempty" yaml:"parallelism,omitempty" hcl:"parallelism,optional"`
	Debug       bool       `json:"debug,omitempty" yaml:"debug,omitempty" hcl:"debug,optional"`
	LogFile     string     `json:"log_file,omitempty" yaml:"log_file,omitempty" hcl:"log_file,optional"`
	Accounts    []*Account `json:"accounts" yaml:"accounts" hcl:"account,block"`

	location string
}

// 👤 Account configures one storage account
type Account struct {
	Name       string            `json:"name" yaml:"name" hcl:"name,label"`
	Provider   string            `json:"provider" yaml:"provider" hcl:"provider"`
	ExternalID string            `json:"external_id,omitempty" yaml:"external_id,omitempty" hcl:"external_id,optional"`
	FullAccess bool              `json:"full_access,omitempty" yaml:"full_access,omitempty" hcl:"full_access,optional"`
	Token      string            `json:"token,omitempty" yaml:"token,omitempty" hcl:"token,optional"`
	TokenEnv   string            `json:"token_env,omitempty" yaml:"token_env,omitempty" hcl:"token_env,optional"`
	Options    map[string]string `json:"options,omitempty" yaml:"options,omitempty" hcl:"options,optional"`

	SyncRoot       string   `json:"sync_root,omitempty" yaml:"sync_root,omitempty" hcl:"sync_root,optional"`
	UploadUntagged bool     `json:"upload_untagged,omitempty" yaml:"upload_untagged,omitempty" hcl:"upload_untagged,optional"`
	Format         string   `json:"format,omitempty" yaml:"format,omitempty" hcl:"format,optional"`
	Filename       string   `json:"filename,omitempty" yaml:"filename,omitempty" hcl:"filename,optional"`
	Ignore         []string `json:"ignore,omitempty" yaml:"ignore,omitempty" hcl:"ignore,optional"`
}

// 🎯 Load reads, parses and validates the configuration at path. Environment
// overrides are applied before defaults.
func Load(ctx context.Context, fs afero.Fs, filename string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", filename).Msg("loading configuration")

	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(filename)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", filename)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	cfg.location = filename

	if err := CheckSchema(cfg); err != nil {
		return nil, errors.Errorf("checking schema: %w", err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, errors.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Int("accounts", len(cfg.Accounts)).Str("cache", cfg.CacheDSN).Msg("configuration loaded")

	return cfg, nil
}

// Location is the file the configuration was loaded from.
func (cfg *Config) Location() string {
	return cfg.location
}

// 🔍 Validate checks cross-field rules and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.CacheDSN == "" {
		cfg.CacheDSN = DefaultCacheDSN
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}

	seen := map[string]bool{}
	for i, acct := range cfg.Accounts {
		if acct == nil {
			return errors.Errorf("accounts[%d] is empty", i)
		}
		if acct.Name == "" {
			return errors.Errorf("accounts[%d].name is required", i)
		}
		if seen[acct.Name] {
			return errors.Errorf("duplicate account %q", acct.Name)
		}
		seen[acct.Name] = true

		if err := acct.Validate(); err != nil {
			return errors.Errorf("account %q: %w", acct.Name, err)
		}
	}

	return nil
}

// Validate checks one account and fills in its defaults.
func (a *Account) Validate() error {
	if a.Provider == "" {
		return errors.New("provider is required")
	}
	if a.ExternalID == "" {
		a.ExternalID = a.Name
	}

	if a.Format == "" {
		a.Format = string(codec.TCX)
	}
	if _, err := codec.ParseFormat(a.Format); err != nil {
		return errors.Errorf("format: %w", err)
	}

	if a.Filename == "" {
		a.Filename = pathpolicy.DefaultTemplate
	}

	// full-access accounts without a root are left for the user to configure
	if a.SyncRoot != "" {
		a.SyncRoot = path.Clean("/" + strings.TrimSpace(a.SyncRoot))
	} else if !a.FullAccess {
		a.SyncRoot = "/"
	}

	for _, pattern := range a.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	return nil
}

// 🔄 ProviderAccount converts the configuration into the account the sync
// core works with. lookupEnv resolves TokenEnv.
func (a *Account) ProviderAccount(lookupEnv func(string) (string, bool)) (*provider.Account, error) {
	format, err := codec.ParseFormat(a.Format)
	if err != nil {
		return nil, err
	}

	token := a.Token
	if token == "" && a.TokenEnv != "" && lookupEnv != nil {
		token, _ = lookupEnv(a.TokenEnv)
	}

	return &provider.Account{
		ExternalID: a.ExternalID,
		Provider:   a.Provider,
		FullAccess: a.FullAccess,
		Token:      token,
		Options:    a.Options,
		Config: provider.AccountConfig{
			SyncRoot:       a.SyncRoot,
			UploadUntagged: a.UploadUntagged,
			Format:         format,
			Filename:       a.Filename,
			Ignore:         a.Ignore,
		},
	}, nil
}

// Account returns the named account, or nil.
func (cfg *Config) Account(name string) *Account {
	for _, a := range cfg.Accounts {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// 📝 String returns a short description of the config
func (cfg *Config) String() string {
	names := make([]string, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		names = append(names, a.Name+"("+a.Provider+")")
	}
	return fmt.Sprintf("cache=%s accounts=[%s]", cfg.CacheDSN, strings.Join(names, ", "))
}
