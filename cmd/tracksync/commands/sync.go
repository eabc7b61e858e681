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
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/cmd/tracksync/opts"
	"github.com/walteh/tracksync/pkg/operation"
)

func NewSyncCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [account...]",
		Short: "Enumerate accounts and refresh their caches",
		Long: `Sync lists every activity on the named accounts (all accounts when none
are named). It will:
1. Load each account's structure and activity caches
2. Walk the sync root, skipping directories that did not change
3. Parse only files whose revision moved
4. Save both caches`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := o.Load(ctx); err != nil {
				return err
			}

			targets, err := o.Select(args...)
			if err != nil {
				return err
			}

			o.Console.Header("syncing accounts")

			ops := make([]operation.Operation, 0, len(targets))
			for _, t := range targets {
				ops = append(ops, operation.NewSyncOperation(t))
			}

			reports, runErr := o.Runner().Run(ctx, ops...)
			if err := renderReports(reports); err != nil {
				return err
			}
			return runErr
		},
	}

	return cmd
}

func NewCopyCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <from> <to>",
		Short: "Copy activities missing on one account from another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := o.Load(ctx); err != nil {
				return err
			}

			if args[0] == args[1] {
				return errors.Errorf("cannot copy %s onto itself", args[0])
			}

			targets, err := o.Select(args[0], args[1])
			if err != nil {
				return err
			}
			from, to := targets[0], targets[1]
			if from.Name != args[0] {
				from, to = to, from
			}

			o.Console.Header("copying " + from.Name + " → " + to.Name)

			reports, runErr := o.Runner().Run(ctx, operation.NewCopyOperation(from, to))
			if err := renderReports(reports); err != nil {
				return err
			}
			return runErr
		},
	}

	return cmd
}

func NewClearCacheCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-cache [account...]",
		Short: "Forget the cached structure and activities of accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := o.Load(ctx); err != nil {
				return err
			}

			targets, err := o.Select(args...)
			if err != nil {
				return err
			}

			ops := make([]operation.Operation, 0, len(targets))
			for _, t := range targets {
				ops = append(ops, operation.NewCleanOperation(t))
			}

			_, err = o.Runner().Run(ctx, ops...)
			return err
		},
	}

	return cmd
}
