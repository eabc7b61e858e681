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

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/log"
	"github.com/walteh/tracksync/pkg/syncerr"
)

// 📋 CopyOperation copies activities from one account to another. An
// activity is copied when no activity with the same UID is listed on the
// destination.
type CopyOperation struct {
	from *Target
	to   *Target
}

func NewCopyOperation(from, to *Target) *CopyOperation {
	return &CopyOperation{from: from, to: to}
}

func (op *CopyOperation) Name() string    { return "copy" }
func (op *CopyOperation) Target() *Target { return op.to }

func (op *CopyOperation) Execute(ctx context.Context) error {
	logger := zerolog.Ctx(ctx).With().Str("from", op.from.Name).Str("to", op.to.Name).Logger()
	console := log.FromContext(ctx)

	for _, t := range []*Target{op.from, op.to} {
		if err := needsConfiguration(t); err != nil {
			return err
		}
	}

	src, err := op.from.Service.DownloadActivityList(ctx, op.from.Account)
	if err != nil {
		return errors.Errorf("listing %s: %w", op.from.Name, err)
	}

	dst, err := op.to.Service.DownloadActivityList(ctx, op.to.Account)
	if err != nil {
		return errors.Errorf("listing %s: %w", op.to.Name, err)
	}

	present := make(map[string]bool, len(dst.Activities))
	for _, act := range dst.Activities {
		present[act.UID] = true
	}

	for _, summary := range src.Activities {
		if present[summary.UID] {
			logger.Debug().Str("uid", summary.UID).Msg("already on destination")
			continue
		}

		full, err := op.from.Service.DownloadActivity(ctx, op.from.Account, summary)
		if err != nil {
			if syncerr.IsExclusion(err) || syncerr.Is(err, syncerr.NotFound) {
				console.LogActivity(ctx, log.ActivityLine{Path: summary.ServiceData.Path, Outcome: log.Excluded, Detail: exclusionDetail(err)})
				continue
			}
			return errors.Errorf("downloading %s: %w", summary.ServiceData.Path, err)
		}

		fpath, err := op.to.Service.UploadActivity(ctx, op.to.Account, full)
		if err != nil {
			return errors.Errorf("uploading %s: %w", summary.ServiceData.Path, err)
		}

		present[full.UID] = true
		console.LogActivity(ctx, log.ActivityLine{Path: fpath, Type: full.Type, Outcome: log.Uploaded, Detail: "from " + op.from.Name})
	}

	return nil
}
