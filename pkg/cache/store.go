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

package cache

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrNotFound is returned by a Documents backend for a missing document.
var ErrNotFound = errors.Base("document not found")

// Collection names the two documents kept per account.
type Collection string

const (
	StructureCollection  Collection = "sync_structure"
	ActivitiesCollection Collection = "activity_cache"
)

// 💾 Documents is the raw persistence a Store is built on
type Documents interface {
	Get(ctx context.Context, coll Collection, externalID string) ([]byte, error)
	Put(ctx context.Context, coll Collection, externalID string, data []byte) error
	Delete(ctx context.Context, coll Collection, externalID string) error
	Close() error
}

// 🗄️ Store persists the per-account cache documents. Loads of a missing
// document return a fresh empty one.
type Store interface {
	LoadStructure(ctx context.Context, externalID string) (*Structure, error)
	SaveStructure(ctx context.Context, s *Structure) error
	LoadActivities(ctx context.Context, externalID string) (*Activities, error)
	SaveActivities(ctx context.Context, a *Activities) error
	Delete(ctx context.Context, externalID string) error
	Close() error
}

type documentStore struct {
	docs Documents
}

var _ Store = (*documentStore)(nil)

// NewStore serializes cache documents as JSON into docs.
func NewStore(docs Documents) Store {
	return &documentStore{docs: docs}
}

func (d *documentStore) load(ctx context.Context, coll Collection, externalID string, v any) (bool, error) {
	data, err := d.docs.Get(ctx, coll, externalID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Errorf("loading %s for %s: %w", coll, externalID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		// a cache that cannot be decoded is rebuilt, never trusted
		zerolog.Ctx(ctx).Warn().Err(err).Str("collection", string(coll)).Str("external_id", externalID).Msg("discarding unreadable cache document")
		return false, nil
	}
	return true, nil
}

func (d *documentStore) save(ctx context.Context, coll Collection, externalID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Errorf("encoding %s: %w", coll, err)
	}
	if err := d.docs.Put(ctx, coll, externalID, data); err != nil {
		return errors.Errorf("saving %s for %s: %w", coll, externalID, err)
	}
	return nil
}

func (d *documentStore) LoadStructure(ctx context.Context, externalID string) (*Structure, error) {
	s := NewStructure(externalID)
	ok, err := d.load(ctx, StructureCollection, externalID, s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewStructure(externalID), nil
	}
	s.Replace(s.Structure)
	return s, nil
}

func (d *documentStore) SaveStructure(ctx context.Context, s *Structure) error {
	return d.save(ctx, StructureCollection, s.ExternalID, s)
}

func (d *documentStore) LoadActivities(ctx context.Context, externalID string) (*Activities, error) {
	a := NewActivities(externalID)
	ok, err := d.load(ctx, ActivitiesCollection, externalID, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewActivities(externalID), nil
	}
	if a.Activities == nil {
		a.Activities = map[string]*ActivityEntry{}
	}
	return a, nil
}

func (d *documentStore) SaveActivities(ctx context.Context, a *Activities) error {
	return d.save(ctx, ActivitiesCollection, a.ExternalID, a)
}

func (d *documentStore) Delete(ctx context.Context, externalID string) error {
	for _, coll := range []Collection{StructureCollection, ActivitiesCollection} {
		if err := d.docs.Delete(ctx, coll, externalID); err != nil && !errors.Is(err, ErrNotFound) {
			return errors.Errorf("deleting %s for %s: %w", coll, externalID, err)
		}
	}
	return nil
}

func (d *documentStore) Close() error {
	return d.docs.Close()
}
