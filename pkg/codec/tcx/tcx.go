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

// Package tcx reads and writes Garmin Training Center v2 files.
package tcx

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/codec"
)

const namespace = "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"

func init() {
	codec.Register(codec.TCX, Codec{})
}

type database struct {
	XMLName    xml.Name     `xml:"TrainingCenterDatabase"`
	Xmlns      string       `xml:"xmlns,attr,omitempty"`
	Activities []tcActivity `xml:"Activities>Activity"`
	Author     *author      `xml:"Author"`
}

type author struct {
	Name string `xml:"Name"`
}

type tcActivity struct {
	Sport string  `xml:"Sport,attr"`
	ID    string  `xml:"Id"`
	Laps  []tcLap `xml:"Lap"`
	Notes string  `xml:"Notes,omitempty"`
}

type tcLap struct {
	StartTime        string       `xml:"StartTime,attr"`
	TotalTimeSeconds float64      `xml:"TotalTimeSeconds"`
	DistanceMeters   *float64     `xml:"DistanceMeters"`
	Calories         *float64     `xml:"Calories"`
	Track            []trackpoint `xml:"Track>Trackpoint"`
}

type trackpoint struct {
	Time           string      `xml:"Time"`
	Position       *position   `xml:"Position"`
	AltitudeMeters *float64    `xml:"AltitudeMeters"`
	DistanceMeters *float64    `xml:"DistanceMeters"`
	HeartRate      *float64    `xml:"HeartRateBpm>Value"`
	Cadence        *float64    `xml:"Cadence"`
	Extensions     *extensions `xml:"Extensions"`
}

type position struct {
	Latitude  float64 `xml:"LatitudeDegrees"`
	Longitude float64 `xml:"LongitudeDegrees"`
}

type extensions struct {
	TPX *tpx `xml:"TPX"`
}

type tpx struct {
	Speed *float64 `xml:"Speed"`
	Watts *float64 `xml:"Watts"`
}

// 📄 Codec implements codec.FormatCodec for TCX
type Codec struct{}

var _ codec.FormatCodec = Codec{}

func (Codec) Parse(ctx context.Context, data []byte) (*activity.Activity, error) {
	var db database
	if err := xml.Unmarshal(data, &db); err != nil {
		return nil, errors.Errorf("decoding tcx: %w", err)
	}

	if len(db.Activities) == 0 {
		return nil, errors.New("tcx has no activities")
	}

	src := db.Activities[0]
	act := &activity.Activity{
		Type:       sportToType(src.Sport),
		Notes:      strings.TrimSpace(src.Notes),
		Originated: db.Author != nil && strings.TrimSpace(db.Author.Name) == codec.Creator,
	}

	if src.ID != "" {
		t, err := parseTime(src.ID)
		if err != nil {
			return nil, err
		}
		act.StartTime = t
	}

	for _, l := range src.Laps {
		lap, err := l.lap()
		if err != nil {
			return nil, err
		}
		act.Laps = append(act.Laps, lap)
	}

	if len(act.Laps) > 0 {
		if act.StartTime.IsZero() {
			act.StartTime = act.Laps[0].StartTime
		}
		act.EndTime = act.Laps[len(act.Laps)-1].EndTime
	}

	if act.StartTime.IsZero() {
		return nil, errors.New("tcx has no start time")
	}

	return act, nil
}

func (l tcLap) lap() (*activity.Lap, error) {
	lap := &activity.Lap{Distance: l.DistanceMeters, Calories: l.Calories}

	if l.StartTime != "" {
		t, err := parseTime(l.StartTime)
		if err != nil {
			return nil, err
		}
		lap.StartTime = t
	}

	for _, tp := range l.Track {
		ts, err := parseTime(tp.Time)
		if err != nil {
			return nil, err
		}
		wp := &activity.Waypoint{
			Timestamp: ts,
			HR:        tp.HeartRate,
			Cadence:   tp.Cadence,
			Distance:  tp.DistanceMeters,
		}
		if tp.Position != nil {
			wp.Location = &activity.Location{
				Latitude:  tp.Position.Latitude,
				Longitude: tp.Position.Longitude,
				Altitude:  tp.AltitudeMeters,
			}
		}
		if tp.Extensions != nil && tp.Extensions.TPX != nil {
			wp.Speed = tp.Extensions.TPX.Speed
			wp.Power = tp.Extensions.TPX.Watts
		}
		lap.Waypoints = append(lap.Waypoints, wp)
	}

	if lap.StartTime.IsZero() && len(lap.Waypoints) > 0 {
		lap.StartTime = lap.Waypoints[0].Timestamp
	}

	// summary-only laps carry just their duration
	switch {
	case len(lap.Waypoints) > 0:
		lap.EndTime = lap.Waypoints[len(lap.Waypoints)-1].Timestamp
	case !lap.StartTime.IsZero():
		lap.EndTime = lap.StartTime.Add(time.Duration(l.TotalTimeSeconds * float64(time.Second)))
	}

	return lap, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.Errorf("parsing tcx time %q: %w", s, err)
	}
	return t, nil
}

func sportToType(sport string) activity.ActivityType {
	switch strings.ToLower(sport) {
	case "running":
		return activity.Running
	case "biking":
		return activity.Cycling
	default:
		return activity.Other
	}
}

func typeToSport(t activity.ActivityType) string {
	switch t {
	case activity.Running:
		return "Running"
	case activity.Cycling, activity.MountainBiking:
		return "Biking"
	default:
		return "Other"
	}
}

func (Codec) Serialize(ctx context.Context, act *activity.Activity) ([]byte, error) {
	src := tcActivity{
		Sport: typeToSport(act.Type),
		ID:    act.StartTime.UTC().Format(time.RFC3339),
		Notes: act.Notes,
	}

	laps := act.Laps
	if len(laps) == 0 {
		laps = []*activity.Lap{{StartTime: act.StartTime, EndTime: act.EndTime}}
	}

	for _, lap := range laps {
		l := tcLap{
			StartTime:      lap.StartTime.UTC().Format(time.RFC3339),
			DistanceMeters: lap.Distance,
			Calories:       lap.Calories,
		}
		if !lap.EndTime.IsZero() {
			l.TotalTimeSeconds = lap.EndTime.Sub(lap.StartTime).Seconds()
		}
		for _, wp := range lap.Waypoints {
			tp := trackpoint{
				Time:           wp.Timestamp.UTC().Format(time.RFC3339Nano),
				HeartRate:      wp.HR,
				Cadence:        wp.Cadence,
				DistanceMeters: wp.Distance,
			}
			if wp.Location != nil {
				tp.Position = &position{Latitude: wp.Location.Latitude, Longitude: wp.Location.Longitude}
				tp.AltitudeMeters = wp.Location.Altitude
			}
			if wp.Speed != nil || wp.Power != nil {
				tp.Extensions = &extensions{TPX: &tpx{Speed: wp.Speed, Watts: wp.Power}}
			}
			l.Track = append(l.Track, tp)
		}
		src.Laps = append(src.Laps, l)
	}

	db := database{
		Xmlns:      namespace,
		Activities: []tcActivity{src},
		Author:     &author{Name: codec.Creator},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(db); err != nil {
		return nil, errors.Errorf("encoding tcx: %w", err)
	}
	return buf.Bytes(), nil
}
