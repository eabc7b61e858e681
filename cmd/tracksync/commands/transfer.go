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
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/walteh/tracksync/cmd/tracksync/opts"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/operation"
)

func NewDownloadCmd(o *opts.RootOpts) *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "download <account>",
		Short: "Download an account's tagged activities into a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := codec.ParseFormat(format)
			if err != nil {
				return err
			}

			if err := o.Load(ctx); err != nil {
				return err
			}

			targets, err := o.Select(args[0])
			if err != nil {
				return err
			}

			o.Console.Header("downloading " + args[0] + " to " + out)

			reports, runErr := o.Runner().Run(ctx, operation.NewExportOperation(targets[0], afero.NewOsFs(), out, f, codec.Default()))
			if err := renderReports(reports); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "activities", "directory to write into")
	cmd.Flags().StringVarP(&format, "format", "f", string(codec.GPX), "file format (gpx or tcx)")

	return cmd
}

func NewUploadCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <account> <file...>",
		Short: "Upload local activity files to an account",
		Long: `Upload parses each GPX or TCX file and writes it to the account's sync
root, named by the account's filename template and encoded in its format.
Files without a sport are typed from their path.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := o.Load(ctx); err != nil {
				return err
			}

			targets, err := o.Select(args[0])
			if err != nil {
				return err
			}

			o.Console.Header("uploading to " + args[0])

			reports, runErr := o.Runner().Run(ctx, operation.NewImportOperation(targets[0], afero.NewOsFs(), args[1:], codec.Default()))
			if err := renderReports(reports); err != nil {
				return err
			}
			return runErr
		},
	}

	return cmd
}
