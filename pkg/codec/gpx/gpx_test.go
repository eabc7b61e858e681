package gpx_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/codec/gpx"
	"github.com/walteh/tracksync/pkg/syncerr"
)

const stravaExport = `<?xml version="1.0" encoding="UTF-8"?>
<gpx creator="StravaGPX" version="1.1" xmlns="http://www.topografix.com/GPX/1/1"
     xmlns:gpxtpx="http://www.garmin.com/xmlschemas/TrackPointExtension/v1">
 <metadata>
  <time>2021-06-01T07:00:00Z</time>
 </metadata>
 <trk>
  <name>Morning Ride</name>
  <type>cycling</type>
  <trkseg>
   <trkpt lat="47.1" lon="8.5">
    <ele>410.2</ele>
    <time>2021-06-01T07:00:00Z</time>
    <extensions><gpxtpx:TrackPointExtension><gpxtpx:hr>121</gpxtpx:hr><gpxtpx:cad>80</gpxtpx:cad></gpxtpx:TrackPointExtension></extensions>
   </trkpt>
   <trkpt lat="47.2" lon="8.6">
    <ele>411.0</ele>
    <time>2021-06-01T07:30:00Z</time>
   </trkpt>
  </trkseg>
 </trk>
</gpx>`

func TestParse(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	act, err := codec.Default().Parse(ctx, []byte(stravaExport), codec.GPX)
	require.NoError(t, err)

	assert.Equal(t, "Morning Ride", act.Name)
	assert.Equal(t, activity.Cycling, act.Type)
	assert.False(t, act.Originated)
	assert.True(t, act.StartTime.Equal(time.Date(2021, 6, 1, 7, 0, 0, 0, time.UTC)))
	assert.True(t, act.EndTime.Equal(time.Date(2021, 6, 1, 7, 30, 0, 0, time.UTC)))
	assert.Equal(t, 2, act.CountTotalWaypoints())
	assert.NotEmpty(t, act.UID)

	first := act.Laps[0].Waypoints[0]
	require.NotNil(t, first.HR)
	assert.InDelta(t, 121.0, *first.HR, 0.001)
	require.NotNil(t, first.Cadence)
	assert.InDelta(t, 80.0, *first.Cadence, 0.001)
	require.NotNil(t, first.Location.Altitude)
	assert.InDelta(t, 410.2, *first.Location.Altitude, 0.001)
}

func TestParseMalformed(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	tests := []struct {
		name string
		data string
	}{
		{name: "not_xml", data: "this is not a gpx file"},
		{name: "no_timestamps", data: `<gpx version="1.1"><trk><trkseg></trkseg></trk></gpx>`},
		{name: "bad_time", data: `<gpx version="1.1"><trk><trkseg><trkpt lat="1" lon="2"><time>yesterday</time></trkpt></trkseg></trk></gpx>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Default().Parse(ctx, []byte(tt.data), codec.GPX)
			require.Error(t, err)
			assert.True(t, syncerr.Is(err, syncerr.CorruptActivity), "got %v", err)
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	start := time.Date(2021, 6, 1, 7, 0, 0, 0, time.UTC)
	hr := 140.0
	act := &activity.Activity{
		StartTime: start,
		EndTime:   start.Add(time.Minute),
		Type:      activity.Running,
		Name:      "Lunch Run",
		Laps: []*activity.Lap{{
			StartTime: start,
			EndTime:   start.Add(time.Minute),
			Waypoints: []*activity.Waypoint{
				{Timestamp: start, Location: &activity.Location{Latitude: 1, Longitude: 2}, HR: &hr},
				{Timestamp: start.Add(time.Minute), Location: &activity.Location{Latitude: 1.1, Longitude: 2.1}},
			},
		}},
	}

	data, err := gpx.Codec{}.Serialize(ctx, act)
	require.NoError(t, err)
	assert.Contains(t, string(data), `creator="tracksync"`)

	back, err := codec.Default().Parse(ctx, data, codec.GPX)
	require.NoError(t, err)
	assert.True(t, back.Originated)
	assert.Equal(t, "Lunch Run", back.Name)
	assert.Equal(t, activity.Running, back.Type)
	assert.Equal(t, 2, back.CountTotalWaypoints())
	require.NotNil(t, back.Laps[0].Waypoints[0].HR)
	assert.InDelta(t, hr, *back.Laps[0].Waypoints[0].HR, 0.001)
	assert.Equal(t, act.CalculateUID(), back.UID)
}

func TestSerializeUsesPrerendered(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	act := &activity.Activity{Prerendered: map[string][]byte{"gpx": []byte("cached")}}
	data, err := codec.Default().Serialize(ctx, act, codec.GPX)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data))
}
