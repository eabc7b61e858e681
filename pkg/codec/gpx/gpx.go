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

// Package gpx reads and writes GPX tracks on top of gpxgo.
package gpx

import (
	"context"
	"encoding/xml"
	"strconv"
	"strings"

	gpxgo "github.com/tkrajina/gpxgo/gpx"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/codec"
)

const trackPointExtensionNS = "http://www.garmin.com/xmlschemas/TrackPointExtension/v1"

func init() {
	codec.Register(codec.GPX, Codec{})
}

// 📄 Codec implements codec.FormatCodec for GPX
type Codec struct{}

var _ codec.FormatCodec = Codec{}

func (Codec) Parse(ctx context.Context, data []byte) (*activity.Activity, error) {
	doc, err := gpxgo.ParseBytes(data)
	if err != nil {
		return nil, errors.Errorf("decoding gpx: %w", err)
	}

	act := &activity.Activity{
		Type:       activity.Other,
		Name:       doc.Name,
		Notes:      doc.Description,
		Originated: doc.Creator == codec.Creator,
	}

	for _, trk := range doc.Tracks {
		if act.Name == "" {
			act.Name = trk.Name
		}
		if act.Notes == "" {
			act.Notes = trk.Description
		}
		if t, ok := activity.ParseType(trk.Type); ok && act.Type == activity.Other {
			act.Type = t
		}

		for _, seg := range trk.Segments {
			lap := &activity.Lap{}
			for i := range seg.Points {
				wp, err := waypoint(&seg.Points[i])
				if err != nil {
					return nil, err
				}
				lap.Waypoints = append(lap.Waypoints, wp)
			}
			if len(lap.Waypoints) == 0 {
				continue
			}
			lap.StartTime = lap.Waypoints[0].Timestamp
			lap.EndTime = lap.Waypoints[len(lap.Waypoints)-1].Timestamp
			act.Laps = append(act.Laps, lap)
		}
	}

	if len(act.Laps) > 0 {
		act.StartTime = act.Laps[0].StartTime
		act.EndTime = act.Laps[len(act.Laps)-1].EndTime
	} else if doc.Time != nil {
		act.StartTime = *doc.Time
	}

	if act.StartTime.IsZero() {
		return nil, errors.New("gpx has no timestamps")
	}

	return act, nil
}

// waypoint converts a track point. gpxgo drops times it cannot parse, so a
// zero timestamp means the point is unusable.
func waypoint(pt *gpxgo.GPXPoint) (*activity.Waypoint, error) {
	if pt.Timestamp.IsZero() {
		return nil, errors.Errorf("track point at %f,%f has no valid time", pt.Latitude, pt.Longitude)
	}

	wp := &activity.Waypoint{
		Timestamp: pt.Timestamp,
		Location: &activity.Location{
			Latitude:  pt.Latitude,
			Longitude: pt.Longitude,
		},
	}
	if pt.Elevation.NotNull() {
		ele := pt.Elevation.Value()
		wp.Location.Altitude = &ele
	}

	for _, ext := range pt.Extensions.Nodes {
		if ext.XMLName.Local != "TrackPointExtension" {
			continue
		}
		for _, n := range ext.Nodes {
			v, err := strconv.ParseFloat(strings.TrimSpace(n.Data), 64)
			if err != nil {
				continue
			}
			switch n.XMLName.Local {
			case "hr":
				wp.HR = &v
			case "cad":
				wp.Cadence = &v
			case "speed":
				wp.Speed = &v
			case "power":
				wp.Power = &v
			}
		}
	}

	return wp, nil
}

func (Codec) Serialize(ctx context.Context, act *activity.Activity) ([]byte, error) {
	start := act.StartTime.UTC()
	doc := &gpxgo.GPX{
		Creator:     codec.Creator,
		Name:        act.Name,
		Description: act.Notes,
		Time:        &start,
	}

	trk := gpxgo.GPXTrack{Name: act.Name, Type: string(act.Type)}
	for _, lap := range act.Laps {
		var seg gpxgo.GPXTrackSegment
		for _, wp := range lap.Waypoints {
			if wp.Location == nil {
				continue
			}
			pt := gpxgo.GPXPoint{Timestamp: wp.Timestamp.UTC()}
			pt.Latitude = wp.Location.Latitude
			pt.Longitude = wp.Location.Longitude
			if wp.Location.Altitude != nil {
				pt.Elevation.SetValue(*wp.Location.Altitude)
			}
			if ext := trackPointExtension(wp); ext != nil {
				pt.Extensions.Nodes = []gpxgo.ExtensionNode{*ext}
			}
			seg.Points = append(seg.Points, pt)
		}
		trk.Segments = append(trk.Segments, seg)
	}
	doc.Tracks = []gpxgo.GPXTrack{trk}

	data, err := doc.ToXml(gpxgo.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, errors.Errorf("encoding gpx: %w", err)
	}
	return data, nil
}

func trackPointExtension(wp *activity.Waypoint) *gpxgo.ExtensionNode {
	node := gpxgo.ExtensionNode{XMLName: xml.Name{Space: trackPointExtensionNS, Local: "TrackPointExtension"}}
	add := func(name string, v *float64) {
		if v == nil {
			return
		}
		node.Nodes = append(node.Nodes, gpxgo.ExtensionNode{
			XMLName: xml.Name{Space: trackPointExtensionNS, Local: name},
			Data:    strconv.FormatFloat(*v, 'f', -1, 64),
		})
	}
	add("hr", wp.HR)
	add("cad", wp.Cadence)
	add("speed", wp.Speed)
	add("power", wp.Power)

	if len(node.Nodes) == 0 {
		return nil
	}
	return &node
}
