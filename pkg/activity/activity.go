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

package activity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"time"
	_ "time/tzdata"

	"github.com/bradfitz/latlong"
	"gitlab.com/tozd/go/errors"
)

// uidTimeLayout is the start-time rendering hashed into a UID.
const uidTimeLayout = "2006-01-02 15:04:05"

// 🏃 Activity is the in-memory representation of a workout
type Activity struct {
	UID       string
	StartTime time.Time
	EndTime   time.Time

	// TZ is set once the local timezone of the activity is known.
	TZ *time.Location

	Type  ActivityType
	Name  string
	Notes string

	// Originated marks files that were written by tracksync itself.
	Originated bool

	ServiceData ServiceData

	Laps []*Lap

	// Prerendered holds serialized buffers keyed by format name ("gpx", "tcx").
	Prerendered map[string][]byte
}

// 📦 ServiceData is the per-service bag carried by storage-backed activities
type ServiceData struct {
	Path   string `json:"path"`
	Tagged bool   `json:"tagged"`
}

// Lap groups waypoints recorded between two lap presses. Distance (meters)
// and Calories (kcal) are the device's lap totals when it recorded them.
type Lap struct {
	StartTime time.Time
	EndTime   time.Time
	Distance  *float64
	Calories  *float64
	Waypoints []*Waypoint
}

// Location is a WGS84 position; Altitude is in meters.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
}

// 📍 Waypoint is a single sensor sample
type Waypoint struct {
	Timestamp time.Time
	Location  *Location
	HR        *float64
	Cadence   *float64
	Power     *float64
	Speed     *float64
	Distance  *float64
}

// CountTotalWaypoints returns the number of waypoints across all laps.
func (a *Activity) CountTotalWaypoints() int {
	total := 0
	for _, lap := range a.Laps {
		total += len(lap.Waypoints)
	}
	return total
}

// 🔑 CalculateUID derives the content-based UID from the start time (truncated
// to the second, in UTC) and the activity type.
func (a *Activity) CalculateUID() string {
	sum := md5.Sum([]byte(a.StartTime.UTC().Truncate(time.Second).Format(uidTimeLayout) + "|" + string(a.Type)))
	a.UID = hex.EncodeToString(sum[:])
	return a.UID
}

// 🌍 EnsureTZ makes sure the activity carries a local timezone, deriving one
// from the first located waypoint when the timestamps are plain UTC. All
// timestamps are moved into the resolved zone.
func (a *Activity) EnsureTZ() error {
	if a.TZ == nil && !a.StartTime.IsZero() && a.StartTime.Location() != time.UTC {
		a.TZ = a.StartTime.Location()
	}

	if a.TZ == nil {
		first := a.firstLocation()
		if first == nil {
			return errors.New("no located waypoint to derive a timezone from")
		}
		a.TZ = zoneAt(first.Latitude, first.Longitude)
	}

	a.adjustTZ()
	return nil
}

func (a *Activity) firstLocation() *Location {
	for _, lap := range a.Laps {
		for _, wp := range lap.Waypoints {
			if wp.Location != nil {
				return wp.Location
			}
		}
	}
	return nil
}

func (a *Activity) adjustTZ() {
	a.StartTime = a.StartTime.In(a.TZ)
	if !a.EndTime.IsZero() {
		a.EndTime = a.EndTime.In(a.TZ)
	}
	for _, lap := range a.Laps {
		lap.StartTime = lap.StartTime.In(a.TZ)
		lap.EndTime = lap.EndTime.In(a.TZ)
		for _, wp := range lap.Waypoints {
			wp.Timestamp = wp.Timestamp.In(a.TZ)
		}
	}
}

// zoneAt resolves the IANA zone containing the point. Points outside every
// zone polygon (open water) get nautical time, one hour per 15 degrees.
func zoneAt(lat, lon float64) *time.Location {
	if name := latlong.LookupZoneName(lat, lon); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}

	hours := int(math.Round(lon / 15))
	if hours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+03d", hours), hours*3600)
}

// Validate checks the invariants every parsed activity must satisfy.
func (a *Activity) Validate() error {
	if a.StartTime.IsZero() {
		return errors.New("activity has no start time")
	}
	if !a.EndTime.IsZero() && a.EndTime.Before(a.StartTime) {
		return errors.Errorf("activity ends (%s) before it starts (%s)", a.EndTime, a.StartTime)
	}
	return nil
}
