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

package operation

import (
	"context"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/config"
	"github.com/walteh/tracksync/pkg/provider"
	"github.com/walteh/tracksync/pkg/storagesync"
	"github.com/walteh/tracksync/pkg/syncerr"
)

// 🎯 Operation is one unit of work against one or two accounts
type Operation interface {
	// Name is a short verb for logs and reports.
	Name() string
	// Target is the account the work is reported against.
	Target() *Target
	// Execute runs the operation, writing activity lines to the console
	// logger in ctx.
	Execute(ctx context.Context) error
}

// 🎯 Target is a configured account bound to its provider
type Target struct {
	Name    string
	Account *provider.Account
	Port    provider.Port
	Service *storagesync.Service
}

// Root is the sync root the target enumerates.
func (t *Target) Root() string {
	return t.Port.SyncRoot(t.Account)
}

// 🏭 Resolve binds every configured account to its registered provider.
// All providers share store.
func Resolve(ctx context.Context, cfg *config.Config, store cache.Store, c codec.ActivityCodec) ([]*Target, error) {
	logger := zerolog.Ctx(ctx)

	targets := make([]*Target, 0, len(cfg.Accounts))
	for _, ac := range cfg.Accounts {
		factory, err := provider.Get(ac.Provider)
		if err != nil {
			return nil, errors.Errorf("account %q: %w", ac.Name, err)
		}

		port, err := factory(ctx, store)
		if err != nil {
			return nil, errors.Errorf("account %q: creating provider: %w", ac.Name, err)
		}

		acct, err := ac.ProviderAccount(os.LookupEnv)
		if err != nil {
			return nil, errors.Errorf("account %q: %w", ac.Name, err)
		}

		logger.Debug().Str("account", ac.Name).Str("provider", port.Name()).Msg("resolved account")

		targets = append(targets, &Target{
			Name:    ac.Name,
			Account: acct,
			Port:    port,
			Service: storagesync.New(port, c),
		})
	}

	return targets, nil
}

// Select returns the targets named in names, in config order. No names
// selects everything.
func Select(targets []*Target, names ...string) ([]*Target, error) {
	if len(names) == 0 {
		return targets, nil
	}

	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}

	var out []*Target
	for _, t := range targets {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}

	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, errors.Errorf("unknown accounts: %v", missing)
	}

	return out, nil
}

// exclusionDetail renders an exclusion for the console.
func exclusionDetail(err error) string {
	var se *syncerr.Error
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Kind.String() + ": " + se.Message
		}
		return se.Kind.String()
	}
	return err.Error()
}

func needsConfiguration(t *Target) error {
	if t.Service.RequiresConfiguration(t.Account) {
		return errors.Errorf("account %q has full access but no sync_root", t.Name)
	}
	return nil
}
