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

package opts

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/cache/store"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/config"
	"github.com/walteh/tracksync/pkg/log"
	"github.com/walteh/tracksync/pkg/operation"
)

// RootOpts is shared by every command. Config-dependent fields are filled
// by Load.
type RootOpts struct {
	ConfigFile string
	Debug      bool
	LogFile    string

	Console *log.Logger

	Config  *config.Config
	Store   cache.Store
	Targets []*operation.Target
}

// Load reads the config, opens the cache store and resolves every account.
// It is a no-op after the first successful call.
func (o *RootOpts) Load(ctx context.Context) error {
	if o.Config != nil {
		return nil
	}

	cfg, err := config.Load(ctx, afero.NewOsFs(), o.ConfigFile)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.CacheDSN)
	if err != nil {
		return errors.Errorf("opening cache store: %w", err)
	}

	targets, err := operation.Resolve(ctx, cfg, st, codec.Default())
	if err != nil {
		_ = st.Close()
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("config", cfg.Location()).Int("accounts", len(targets)).Msg("loaded")

	o.Config, o.Store, o.Targets = cfg, st, targets
	return nil
}

// Select narrows the resolved targets to names.
func (o *RootOpts) Select(names ...string) ([]*operation.Target, error) {
	return operation.Select(o.Targets, names...)
}

// Runner returns a runner honoring the configured parallelism.
func (o *RootOpts) Runner() *operation.Runner {
	n := config.DefaultParallelism
	if o.Config != nil {
		n = o.Config.Parallelism
	}
	return operation.NewRunner(n)
}

// Close releases the cache store.
func (o *RootOpts) Close() error {
	if o.Store == nil {
		return nil
	}
	return o.Store.Close()
}

// DefaultConfigFile is used when --config is not given. The first existing
// candidate wins.
func DefaultConfigFile() string {
	for _, c := range []string{"tracksync.yaml", "tracksync.yml", "tracksync.hcl", "tracksync.json"} {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return "tracksync.yaml"
}
