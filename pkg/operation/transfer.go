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
	"path"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/log"
	"github.com/walteh/tracksync/pkg/pathpolicy"
	"github.com/walteh/tracksync/pkg/syncerr"
	"github.com/walteh/tracksync/pkg/tagger"
)

// 📥 ExportOperation downloads every tagged activity of an account into a
// local directory, re-encoded in Format
type ExportOperation struct {
	target *Target
	fs     afero.Fs
	dir    string
	format codec.Format
	codec  codec.ActivityCodec
}

func NewExportOperation(t *Target, fs afero.Fs, dir string, format codec.Format, c codec.ActivityCodec) *ExportOperation {
	if c == nil {
		c = codec.Default()
	}
	return &ExportOperation{target: t, fs: fs, dir: dir, format: format, codec: c}
}

func (op *ExportOperation) Name() string    { return "export" }
func (op *ExportOperation) Target() *Target { return op.target }

func (op *ExportOperation) Execute(ctx context.Context) error {
	if err := needsConfiguration(op.target); err != nil {
		return err
	}

	console := log.FromContext(ctx)
	policy := pathpolicy.New(op.target.Account.Config.WithDefaults().Filename, pathpolicy.DefaultMaxPathLen)

	listing, err := op.target.Service.DownloadActivityList(ctx, op.target.Account)
	if err != nil {
		return err
	}

	if err := op.fs.MkdirAll(op.dir, 0o755); err != nil {
		return errors.Errorf("creating %s: %w", op.dir, err)
	}

	for _, summary := range listing.Activities {
		full, err := op.target.Service.DownloadActivity(ctx, op.target.Account, summary)
		if err != nil {
			if syncerr.IsExclusion(err) || syncerr.Is(err, syncerr.NotFound) {
				console.LogActivity(ctx, log.ActivityLine{Path: summary.ServiceData.Path, Outcome: log.Excluded, Detail: exclusionDetail(err)})
				continue
			}
			return errors.Errorf("downloading %s: %w", summary.ServiceData.Path, err)
		}

		data, err := op.codec.Serialize(ctx, full, op.format)
		if err != nil {
			return errors.Errorf("encoding %s: %w", summary.ServiceData.Path, err)
		}

		name, err := policy.Render(full, string(op.format))
		if err != nil {
			return err
		}

		local := path.Join(op.dir, name)
		if err := afero.WriteFile(op.fs, local, data, 0o644); err != nil {
			return errors.Errorf("writing %s: %w", local, err)
		}

		console.LogActivity(ctx, log.ActivityLine{Path: summary.ServiceData.Path, Type: full.Type, Outcome: log.Downloaded, Detail: local})
	}

	return nil
}

// 📤 ImportOperation uploads local activity files to an account. Files
// whose content carries no sport are typed from their path.
type ImportOperation struct {
	target *Target
	fs     afero.Fs
	paths  []string
	codec  codec.ActivityCodec
}

func NewImportOperation(t *Target, fs afero.Fs, paths []string, c codec.ActivityCodec) *ImportOperation {
	if c == nil {
		c = codec.Default()
	}
	return &ImportOperation{target: t, fs: fs, paths: paths, codec: c}
}

func (op *ImportOperation) Name() string    { return "import" }
func (op *ImportOperation) Target() *Target { return op.target }

func (op *ImportOperation) Execute(ctx context.Context) error {
	if err := needsConfiguration(op.target); err != nil {
		return err
	}

	logger := zerolog.Ctx(ctx)
	console := log.FromContext(ctx)

	for _, p := range op.paths {
		act, err := op.load(ctx, p)
		if err != nil {
			if syncerr.IsExclusion(err) {
				console.LogActivity(ctx, log.ActivityLine{Path: p, Outcome: log.Excluded, Detail: exclusionDetail(err)})
				continue
			}
			return err
		}

		fpath, err := op.target.Service.UploadActivity(ctx, op.target.Account, act)
		if err != nil {
			return errors.Errorf("uploading %s: %w", p, err)
		}

		logger.Debug().Str("local", p).Str("remote", fpath).Msg("imported activity")
		console.LogActivity(ctx, log.ActivityLine{Path: fpath, Type: act.Type, Outcome: log.Uploaded, Detail: p})
	}

	return nil
}

func (op *ImportOperation) load(ctx context.Context, p string) (*activity.Activity, error) {
	format, ok := codec.FormatFromPath(p)
	if !ok {
		return nil, syncerr.Exclude(syncerr.CorruptActivity, p, true, "unsupported file type")
	}

	data, err := afero.ReadFile(op.fs, p)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", p, err)
	}

	act, err := op.codec.Parse(ctx, data, format)
	if err != nil {
		if syncerr.Is(err, syncerr.CorruptActivity) {
			e := syncerr.Exclude(syncerr.CorruptActivity, p, true, "invalid %s", format)
			e.Err = err
			return nil, e
		}
		return nil, err
	}

	if hint, ok := tagger.Tag(p); ok {
		act.Type = activity.PickMostSpecific([]activity.ActivityType{act.Type, hint})
	}
	act.CalculateUID()

	if err := act.EnsureTZ(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("path", p).Msg("could not determine timezone")
	}

	return act, nil
}
