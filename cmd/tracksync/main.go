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

package main

import (
	"context"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/walteh/tracksync/cmd/tracksync/commands"
	"github.com/walteh/tracksync/cmd/tracksync/opts"
	"github.com/walteh/tracksync/pkg/log"

	_ "github.com/walteh/tracksync/pkg/codec/gpx"
	_ "github.com/walteh/tracksync/pkg/codec/tcx"
	_ "github.com/walteh/tracksync/pkg/provider/github"
	_ "github.com/walteh/tracksync/pkg/provider/localfs"
)

func main() {
	o := &opts.RootOpts{}
	closeLog := func() error { return nil }

	rootCmd := &cobra.Command{
		Use:   "tracksync",
		Short: "Sync fitness activity files with cloud and local storage",
		Long: `tracksync keeps GPX and TCX activity files on storage accounts in sync.
Activities are typed from their folder and file names, and every account
keeps a cache so unchanged files are never downloaded twice.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger, closer := setupLogging(o)
			closeLog = closer

			ctx := logger.WithContext(cmd.Context())
			o.Console = log.New(os.Stdout, logger)
			ctx = log.NewContext(ctx, o.Console)
			cmd.SetContext(ctx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = o.Close()
			_ = closeLog()
		},
	}

	addRootFlags(rootCmd, o)

	rootCmd.AddCommand(
		commands.NewSyncCmd(o),
		commands.NewCopyCmd(o),
		commands.NewDownloadCmd(o),
		commands.NewUploadCmd(o),
		commands.NewClearCacheCmd(o),
		commands.NewWatchCmd(o),
		commands.NewTagCmd(o),
		commands.NewFilenameCmd(o),
		newVersionCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		_ = o.Close()
		_ = closeLog()
		os.Exit(1)
	}
}
