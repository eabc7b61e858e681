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

package storagesync

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/pathpolicy"
	"github.com/walteh/tracksync/pkg/provider"
	"github.com/walteh/tracksync/pkg/syncerr"
	"github.com/walteh/tracksync/pkg/tagger"
)

const summarySuffix = ".tcx.summary-data"

// 🔄 Service runs the storage sync flows for every account of one provider
type Service struct {
	port  provider.Port
	codec codec.ActivityCodec
}

// New returns a Service for port. A nil codec means codec.Default().
func New(port provider.Port, c codec.ActivityCodec) *Service {
	if c == nil {
		c = codec.Default()
	}
	return &Service{port: port, codec: c}
}

// 📋 Listing is the result of one enumeration
type Listing struct {
	Activities []*activity.Activity
	Exclusions []*syncerr.Error
}

func (s *Service) accountContext(ctx context.Context, acct *provider.Account) context.Context {
	logger := zerolog.Ctx(ctx).With().
		Str("account", acct.ExternalID).
		Str("provider", s.port.Name()).
		Logger()
	return logger.WithContext(ctx)
}

// RequiresConfiguration reports whether a full-access account still lacks a
// sync root.
func (s *Service) RequiresConfiguration(acct *provider.Account) bool {
	return acct.FullAccess && strings.TrimSpace(acct.Config.SyncRoot) == ""
}

// 📥 DownloadActivityList enumerates the account's sync root and returns an
// activity summary for every file, reading only files whose revision moved
// since the last cycle. Blocking failures abort the cycle without persisting
// anything; on cancellation only the structure cache is kept.
func (s *Service) DownloadActivityList(ctx context.Context, acct *provider.Account) (*Listing, error) {
	ctx = s.accountContext(ctx, acct)
	logger := zerolog.Ctx(ctx)

	client, err := s.port.Client(ctx, acct)
	if err != nil {
		return nil, errors.Errorf("getting client: %w", err)
	}

	store := s.port.CacheStore()

	root := s.port.SyncRoot(acct)

	structure, err := s.loadStructure(ctx, acct, root)
	if err != nil {
		return nil, err
	}

	meta, err := store.LoadActivities(ctx, acct.ExternalID)
	if err != nil {
		return nil, err
	}

	listing := &Listing{}

	cancelled := func() (*Listing, error) {
		if err := store.SaveStructure(context.WithoutCancel(ctx), structure); err != nil {
			logger.Warn().Err(err).Msg("saving structure cache after cancellation")
		}
		return nil, ctx.Err()
	}

	for file, err := range s.port.Enumerate(ctx, acct, client, root, structure) {
		if ctx.Err() != nil {
			return cancelled()
		}
		if err != nil {
			return nil, errors.Errorf("enumerating %s: %w", root, err)
		}

		if ignored(acct.Config.Ignore, file.RelPath) {
			logger.Debug().Str("path", file.RelPath).Msg("ignored")
			continue
		}

		act, err := s.summarize(ctx, acct, client, file, structure, meta)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled()
			}
			var se *syncerr.Error
			if errors.As(err, &se) && (se.Exclusion() || se.Kind == syncerr.NotFound) {
				logger.Info().Err(err).Str("path", file.RelPath).Msg("excluding activity")
				listing.Exclusions = append(listing.Exclusions, se)
				continue
			}
			return nil, err
		}

		if act != nil {
			listing.Activities = append(listing.Activities, act)
		}
	}

	if ctx.Err() != nil {
		return cancelled()
	}

	if err := store.SaveStructure(ctx, structure); err != nil {
		return nil, err
	}
	if err := store.SaveActivities(ctx, meta); err != nil {
		return nil, err
	}

	logger.Info().
		Int("activities", len(listing.Activities)).
		Int("exclusions", len(listing.Exclusions)).
		Msg("enumerated activities")

	return listing, nil
}

// loadStructure returns the structure cache for root. A cache listed under
// a different root goes through ConfigurationUpdating and starts over.
func (s *Service) loadStructure(ctx context.Context, acct *provider.Account, root string) (*cache.Structure, error) {
	structure, err := s.port.CacheStore().LoadStructure(ctx, acct.ExternalID)
	if err != nil {
		return nil, err
	}

	if structure.SyncRoot != "" && structure.SyncRoot != root {
		oldCfg, newCfg := acct.Config, acct.Config
		oldCfg.SyncRoot, newCfg.SyncRoot = structure.SyncRoot, root
		if err := s.configurationUpdating(ctx, acct, newCfg, oldCfg); err != nil {
			return nil, err
		}
		structure = cache.NewStructure(acct.ExternalID)
	}

	structure.SyncRoot = root
	return structure, nil
}

func ignored(patterns []string, relPath string) bool {
	name := strings.TrimPrefix(relPath, "/")
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), name); ok {
			return true
		}
	}
	return false
}

// summarize returns the summary for one file, or nil when the file was
// quarantined.
func (s *Service) summarize(ctx context.Context, acct *provider.Account, client provider.Client, file provider.File, structure *cache.Structure, meta *cache.Activities) (*activity.Activity, error) {
	logger := zerolog.Ctx(ctx).With().Str("path", file.RelPath).Logger()

	entry, rekeyed := meta.Resolve(file.RelPath)
	if rekeyed {
		logger.Debug().Str("uid", entry.UID).Msg("rekeyed legacy cache entry")
	}

	if entry != nil && entry.Rev == file.Rev {
		act, err := fromEntry(entry)
		if err == nil {
			s.tag(act, file)
			return act, nil
		}
		logger.Debug().Err(err).Msg("cache entry unusable, reparsing")
	}

	if entry != nil {
		logger.Debug().Str("full_path", file.FullPath).Msg("retrieving (outdated meta cache)")
	} else {
		logger.Debug().Str("full_path", file.FullPath).Msg("retrieving (not in meta cache)")
	}

	act, rev, err := s.fetch(ctx, acct, client, file, structure)
	if err != nil {
		return nil, err
	}

	if err := act.EnsureTZ(); err != nil {
		logger.Debug().Err(err).Msg("could not determine timezone")
	}

	if act.Originated && act.CountTotalWaypoints() == 0 {
		s.quarantine(ctx, acct, client, file, structure)
		return nil, nil
	}

	act.Laps = nil

	// the UID covers the type, which is only final once the path is tagged
	s.tag(act, file)
	act.CalculateUID()
	meta.Put(file.RelPath, cache.NewEntry(rev, act))

	return act, nil
}

// fetch reads and parses one file.
func (s *Service) fetch(ctx context.Context, acct *provider.Account, client provider.Client, file provider.File, structure *cache.Structure) (*activity.Activity, string, error) {
	data, rev, err := s.port.Read(ctx, acct, client, file, structure)
	if err != nil {
		if syncerr.Is(err, syncerr.NotFound) {
			return nil, "", syncerr.Exclude(syncerr.NotFound, file.FullPath, false, "file disappeared before it could be read")
		}
		return nil, "", errors.Errorf("reading %s: %w", file.FullPath, err)
	}

	format, ok := codec.FormatFromPath(file.FullPath)
	if !ok {
		return nil, "", syncerr.Exclude(syncerr.CorruptActivity, file.FullPath, true, "unsupported file type")
	}

	act, err := s.codec.Parse(ctx, data, format)
	if err != nil {
		if syncerr.Is(err, syncerr.CorruptActivity) {
			e := syncerr.Exclude(syncerr.CorruptActivity, file.FullPath, true, "invalid %s", strings.ToUpper(string(format)))
			e.Err = err
			return nil, "", e
		}
		return nil, "", err
	}

	return act, rev, nil
}

// quarantine renames a summary-only file written by an earlier version so
// it drops out of future listings.
func (s *Service) quarantine(ctx context.Context, acct *provider.Account, client provider.Client, file provider.File, structure *cache.Structure) {
	logger := zerolog.Ctx(ctx).With().Str("path", file.FullPath).Logger()

	lower := strings.ToLower(file.FullPath)
	if strings.HasSuffix(lower, summarySuffix) {
		logger.Info().Msg("summary file already moved")
		return
	}
	if !strings.HasSuffix(lower, ".tcx") {
		logger.Debug().Msg("summary-only file is not TCX, leaving in place")
		return
	}

	dest := file.FullPath + ".summary-data"
	logger.Info().Str("dest", dest).Msg("moving summary-only file")

	if err := s.port.Move(ctx, acct, client, file.FullPath, dest, structure); err != nil {
		logger.Warn().Err(err).Msg("could not move summary-only file")
	}
}

func fromEntry(e *cache.ActivityEntry) (*activity.Activity, error) {
	start, end, err := e.Times()
	if err != nil {
		return nil, err
	}
	if e.UID == "" {
		return nil, errors.New("cache entry has no uid")
	}
	return &activity.Activity{UID: e.UID, StartTime: start, EndTime: end}, nil
}

func (s *Service) tag(act *activity.Activity, file provider.File) {
	t, ok := tagger.Tag(file.RelPath)
	if !ok {
		t = activity.Other
	}
	act.Type = t
	act.ServiceData = activity.ServiceData{Path: file.FullPath, Tagged: ok}
}

// 📄 DownloadActivity turns a summary into a full activity. Untagged
// activities are excluded unless the account uploads them anyway.
func (s *Service) DownloadActivity(ctx context.Context, acct *provider.Account, summary *activity.Activity) (*activity.Activity, error) {
	ctx = s.accountContext(ctx, acct)

	path := summary.ServiceData.Path
	if !summary.ServiceData.Tagged && !acct.Config.UploadUntagged {
		return nil, syncerr.Exclude(syncerr.Untagged, path, false, "activity untagged")
	}

	client, err := s.port.Client(ctx, acct)
	if err != nil {
		return nil, errors.Errorf("getting client: %w", err)
	}

	structure, err := s.port.CacheStore().LoadStructure(ctx, acct.ExternalID)
	if err != nil {
		return nil, err
	}

	root := s.port.SyncRoot(acct)
	file := provider.File{FullPath: path, RelPath: provider.RelativePath(root, path)}

	full, _, err := s.fetch(ctx, acct, client, file, structure)
	if err != nil {
		return nil, err
	}

	if err := full.EnsureTZ(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("could not determine timezone")
	}

	full.UID = summary.UID
	full.Type = summary.Type
	full.ServiceData = summary.ServiceData

	if full.CountTotalWaypoints() <= 1 {
		return nil, syncerr.Exclude(syncerr.CorruptActivity, path, true, "too few waypoints")
	}

	return full, nil
}

// 📤 UploadActivity renders a filename, writes the activity in the account's
// format under the sync root and primes the meta cache so the next
// enumeration does not read the file back. It returns the written path.
func (s *Service) UploadActivity(ctx context.Context, acct *provider.Account, act *activity.Activity) (string, error) {
	ctx = s.accountContext(ctx, acct)
	logger := zerolog.Ctx(ctx)

	cfg := acct.Config.WithDefaults()

	data, err := s.codec.Serialize(ctx, act, cfg.Format)
	if err != nil {
		return "", err
	}

	fname, err := pathpolicy.New(cfg.Filename, s.port.MaxPathLen()).Render(act, string(cfg.Format))
	if err != nil {
		return "", errors.Errorf("rendering filename: %w", err)
	}

	client, err := s.port.Client(ctx, acct)
	if err != nil {
		return "", errors.Errorf("getting client: %w", err)
	}

	store := s.port.CacheStore()

	structure, err := store.LoadStructure(ctx, acct.ExternalID)
	if err != nil {
		return "", err
	}

	meta, err := store.LoadActivities(ctx, acct.ExternalID)
	if err != nil {
		return "", err
	}

	root := s.port.SyncRoot(acct)
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	fpath := root + fname

	rev, err := s.port.Write(ctx, acct, client, fpath, data, structure)
	if err != nil {
		return "", errors.Errorf("writing %s: %w", fpath, err)
	}

	if act.UID == "" {
		act.CalculateUID()
	}
	meta.Put("/"+fname, cache.NewEntry(rev, act))

	if err := store.SaveActivities(ctx, meta); err != nil {
		return "", err
	}
	if err := store.SaveStructure(ctx, structure); err != nil {
		logger.Warn().Err(err).Msg("saving structure cache after upload")
	}

	logger.Info().Str("path", fpath).Str("format", string(cfg.Format)).Msg("uploaded activity")

	return fpath, nil
}

// DeleteCachedData forgets everything cached for the account.
func (s *Service) DeleteCachedData(ctx context.Context, acct *provider.Account) error {
	ctx = s.accountContext(ctx, acct)
	if err := s.port.CacheStore().Delete(ctx, acct.ExternalID); err != nil {
		return errors.Errorf("deleting cached data: %w", err)
	}
	zerolog.Ctx(ctx).Info().Msg("deleted cached data")
	return nil
}

// ConfigurationUpdating drops the structure cache when the sync root moves.
func (s *Service) ConfigurationUpdating(ctx context.Context, acct *provider.Account, newCfg, oldCfg provider.AccountConfig) error {
	return s.configurationUpdating(s.accountContext(ctx, acct), acct, newCfg, oldCfg)
}

func (s *Service) configurationUpdating(ctx context.Context, acct *provider.Account, newCfg, oldCfg provider.AccountConfig) error {
	if newCfg.SyncRoot == oldCfg.SyncRoot {
		return nil
	}

	if err := s.port.CacheStore().SaveStructure(ctx, cache.NewStructure(acct.ExternalID)); err != nil {
		return errors.Errorf("clearing structure cache: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("old", oldCfg.SyncRoot).Str("new", newCfg.SyncRoot).Msg("sync root changed, structure cache cleared")
	return nil
}
