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

package codec

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/syncerr"
)

// Creator is written into every file tracksync produces and is how files
// that originated here are recognised later.
const Creator = "tracksync"

// 📄 Format is a supported activity file format
type Format string

const (
	GPX Format = "gpx"
	TCX Format = "tcx"
)

// Formats lists the formats eligible for enumeration. FIT is absent, so
// binary FIT files on storage are not picked up.
var Formats = []Format{GPX, TCX}

// ParseFormat accepts "gpx" or "tcx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case GPX, TCX:
		return f, nil
	default:
		return "", errors.Errorf("unsupported format %q", s)
	}
}

// FormatFromPath dispatches on the lower-cased file extension.
func FormatFromPath(p string) (Format, bool) {
	f, err := ParseFormat(strings.TrimPrefix(path.Ext(p), "."))
	return f, err == nil
}

// IsActivityFile reports whether p names a file the sync core enumerates.
func IsActivityFile(p string) bool {
	_, ok := FormatFromPath(p)
	return ok
}

// 🔌 FormatCodec parses and serializes one format
type FormatCodec interface {
	Parse(ctx context.Context, data []byte) (*activity.Activity, error)
	Serialize(ctx context.Context, act *activity.Activity) ([]byte, error)
}

// 🔌 ActivityCodec is the contract the sync core uses for all formats
type ActivityCodec interface {
	Parse(ctx context.Context, data []byte, format Format) (*activity.Activity, error)
	Serialize(ctx context.Context, act *activity.Activity, format Format) ([]byte, error)
}

var (
	mu       sync.RWMutex
	registry = map[Format]FormatCodec{}
)

// 📝 Register installs the codec for a format
func Register(f Format, c FormatCodec) {
	mu.Lock()
	defer mu.Unlock()
	registry[f] = c
}

func lookup(f Format) (FormatCodec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[f]
	return c, ok
}

// Registry dispatches to the registered format codecs.
type Registry struct{}

// Default returns the ActivityCodec backed by registered format codecs.
func Default() ActivityCodec {
	return Registry{}
}

// Parse decodes data. Malformed input is reported as a CorruptActivity error.
func (Registry) Parse(ctx context.Context, data []byte, format Format) (*activity.Activity, error) {
	c, ok := lookup(format)
	if !ok {
		return nil, syncerr.New(syncerr.Unknown, "no codec registered for %q", format)
	}

	act, err := c.Parse(ctx, data)
	if err != nil {
		if syncerr.KindOf(err) != syncerr.Unknown {
			return nil, err
		}
		return nil, syncerr.Wrap(syncerr.CorruptActivity, err, "invalid %s", strings.ToUpper(string(format)))
	}

	if err := act.Validate(); err != nil {
		return nil, syncerr.Wrap(syncerr.CorruptActivity, err, "invalid %s", strings.ToUpper(string(format)))
	}

	if act.UID == "" {
		act.CalculateUID()
	}

	return act, nil
}

// Serialize encodes act, reusing a prerendered buffer when one exists.
func (Registry) Serialize(ctx context.Context, act *activity.Activity, format Format) ([]byte, error) {
	if data, ok := act.Prerendered[string(format)]; ok {
		zerolog.Ctx(ctx).Debug().Str("format", string(format)).Msg("using prerendered buffer")
		return data, nil
	}

	c, ok := lookup(format)
	if !ok {
		return nil, syncerr.New(syncerr.Unknown, "no codec registered for %q", format)
	}

	data, err := c.Serialize(ctx, act)
	if err != nil {
		return nil, errors.Errorf("serializing %s: %w", format, err)
	}
	return data, nil
}
