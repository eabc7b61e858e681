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
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/walteh/tracksync/pkg/operation"
)

// renderReports prints one table row per operation.
func renderReports(reports []*operation.Report) error {
	data := pterm.TableData{{"Account", "Operation", "Listed", "Excluded", "Down", "Up", "Time", "Status"}}

	for _, r := range reports {
		status := pterm.FgGreen.Sprint(r.Status())
		if r.Err != nil {
			status = pterm.FgRed.Sprint(r.Status())
		}
		data = append(data, []string{
			r.Target,
			r.Operation,
			fmt.Sprint(r.Listed),
			fmt.Sprint(r.Excluded),
			fmt.Sprint(r.Downloaded),
			fmt.Sprint(r.Uploaded),
			r.Elapsed.Round(time.Millisecond).String(),
			status,
		})
	}

	pterm.Println()
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	for _, r := range reports {
		if r.NeedsIntervention() {
			pterm.Warning.Printfln("%s needs attention: %v", r.Target, r.Err)
		}
	}
	return nil
}
