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

	"github.com/walteh/tracksync/pkg/log"
	"github.com/walteh/tracksync/pkg/storagesync"
)

// 🔄 SyncOperation enumerates one account and refreshes its caches
type SyncOperation struct {
	target *Target

	// Listing holds the result once Execute succeeds.
	Listing *storagesync.Listing
}

func NewSyncOperation(t *Target) *SyncOperation {
	return &SyncOperation{target: t}
}

func (op *SyncOperation) Name() string    { return "sync" }
func (op *SyncOperation) Target() *Target { return op.target }

func (op *SyncOperation) Execute(ctx context.Context) error {
	if err := needsConfiguration(op.target); err != nil {
		return err
	}

	listing, err := op.target.Service.DownloadActivityList(ctx, op.target.Account)
	if err != nil {
		return err
	}
	op.Listing = listing

	console := log.FromContext(ctx)
	for _, act := range listing.Activities {
		line := log.ActivityLine{Path: act.ServiceData.Path, Outcome: log.Listed}
		if act.ServiceData.Tagged {
			line.Type = act.Type
		}
		console.LogActivity(ctx, line)
	}
	for _, exc := range listing.Exclusions {
		console.LogActivity(ctx, log.ActivityLine{Path: exc.ActivityID, Outcome: log.Excluded, Detail: exclusionDetail(exc)})
	}

	return nil
}
