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
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/cmd/tracksync/opts"
	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/pathpolicy"
	"github.com/walteh/tracksync/pkg/tagger"
)

// NewTagCmd shows how paths would be typed, without touching any account.
func NewTagCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <path...>",
		Short: "Show the activity type inferred from each path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := pterm.TableData{{"Path", "Type"}}
			for _, p := range args {
				t, ok := tagger.Tag(p)
				cell := string(t)
				if !ok {
					cell = pterm.FgYellow.Sprint("untagged")
				}
				data = append(data, []string{p, cell})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	return cmd
}

// NewFilenameCmd renders a filename template against a sample activity.
func NewFilenameCmd(o *opts.RootOpts) *cobra.Command {
	var (
		template string
		name     string
		kind     string
		start    string
		format   string
		maxLen   int
	)

	cmd := &cobra.Command{
		Use:   "filename",
		Short: "Preview the filename a template produces",
		Long: `Filename renders a template the same way uploads do. Templates take
strftime verbs for the start time plus #NAME and #TYPE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := codec.ParseFormat(format)
			if err != nil {
				return err
			}

			ts, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return errors.Errorf("parsing --start: %w", err)
			}

			t, ok := activity.ParseType(kind)
			if !ok {
				return errors.Errorf("unknown activity type %q", kind)
			}

			act := &activity.Activity{StartTime: ts, TZ: ts.Location(), Type: t, Name: name}

			out, err := pathpolicy.New(template, maxLen).Render(act, string(f))
			if err != nil {
				return err
			}

			pterm.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", pathpolicy.DefaultTemplate, "filename template")
	cmd.Flags().StringVar(&name, "name", "Morning Ride", "activity name")
	cmd.Flags().StringVar(&kind, "type", string(activity.Cycling), "activity type")
	cmd.Flags().StringVar(&start, "start", "2021-06-01T07:30:00Z", "start time (RFC3339)")
	cmd.Flags().StringVarP(&format, "format", "f", string(codec.TCX), "file format (gpx or tcx)")
	cmd.Flags().IntVar(&maxLen, "max-len", pathpolicy.DefaultMaxPathLen, "maximum path length")

	return cmd
}
