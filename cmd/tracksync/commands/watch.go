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

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/cmd/tracksync/opts"
	"github.com/walteh/tracksync/pkg/operation"
	"github.com/walteh/tracksync/pkg/provider/localfs"
	"github.com/walteh/tracksync/pkg/watch"
)

func NewWatchCmd(o *opts.RootOpts) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [account...]",
		Short: "Sync local accounts whenever their files change",
		Long: `Watch runs an initial sync, then re-syncs a local account each time files
under its sync root settle after a change. Accounts on remote providers are
synced once and not watched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := o.Load(ctx); err != nil {
				return err
			}

			targets, err := o.Select(args...)
			if err != nil {
				return err
			}

			byName := make(map[string]*operation.Target, len(targets))
			names := make([]string, 0, len(targets))
			for _, t := range targets {
				byName[t.Name] = t
				names = append(names, t.Name)
			}

			syncNames := func(ctx context.Context, names []string) error {
				ops := make([]operation.Operation, 0, len(names))
				for _, n := range names {
					if t, ok := byName[n]; ok {
						ops = append(ops, operation.NewSyncOperation(t))
					}
				}
				reports, runErr := o.Runner().Run(ctx, ops...)
				if err := renderReports(reports); err != nil {
					return err
				}
				return runErr
			}

			o.Console.Header("initial sync")
			if err := syncNames(ctx, names); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("initial sync had failures")
			}

			w, err := watch.New(debounce)
			if err != nil {
				return err
			}
			defer w.Close()

			watched := 0
			for _, t := range targets {
				port, ok := t.Port.(*localfs.Port)
				if !ok {
					continue
				}
				if err := w.Add(t.Name, port.Dir(t.Account)); err != nil {
					return err
				}
				watched++
			}
			if watched == 0 {
				return errors.New("none of the selected accounts are on local storage")
			}

			o.Console.Infof("watching %d account(s), ctrl-c to stop", watched)

			return w.Run(ctx, func(ctx context.Context, keys []string) error {
				o.Console.Header("change detected")
				return syncNames(ctx, keys)
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a change triggers a sync")

	return cmd
}
