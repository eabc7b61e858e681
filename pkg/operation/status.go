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
	"time"

	"github.com/walteh/tracksync/pkg/log"
	"github.com/walteh/tracksync/pkg/syncerr"
)

// 📊 Report summarizes one executed operation
type Report struct {
	RunID     string
	Operation string
	Target    string

	Listed     int
	Excluded   int
	Downloaded int
	Uploaded   int

	Elapsed time.Duration
	Err     error
}

func (r *Report) apply(tally map[log.Outcome]int) {
	r.Listed = tally[log.Listed]
	r.Excluded = tally[log.Excluded]
	r.Downloaded = tally[log.Downloaded]
	r.Uploaded = tally[log.Uploaded]
}

// Status is a one-word summary for tables.
func (r *Report) Status() string {
	switch {
	case r.Err == nil:
		return "ok"
	case syncerr.IsBlocking(r.Err):
		return "blocked"
	default:
		return "failed"
	}
}

// NeedsIntervention reports whether the user has to act before a retry can
// succeed (re-authorize or free storage).
func (r *Report) NeedsIntervention() bool {
	return r.Err != nil && syncerr.IsBlocking(r.Err)
}
