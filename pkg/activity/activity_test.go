package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateUID(t *testing.T) {
	t.Run("sub_second_start_times_share_uid", func(t *testing.T) {
		base := time.Date(2001, 2, 3, 4, 5, 6, 7000, time.UTC)
		a := &Activity{StartTime: base, Type: Running}
		b := &Activity{StartTime: base.Add(133700 * time.Microsecond), Type: Running}

		assert.Equal(t, a.CalculateUID(), b.CalculateUID())
	})

	t.Run("type_changes_uid", func(t *testing.T) {
		start := time.Date(2021, 6, 1, 7, 0, 0, 0, time.UTC)
		a := &Activity{StartTime: start, Type: Running}
		b := &Activity{StartTime: start, Type: Cycling}

		assert.NotEqual(t, a.CalculateUID(), b.CalculateUID())
	})

	t.Run("zone_does_not_change_uid", func(t *testing.T) {
		start := time.Date(2021, 6, 1, 7, 0, 0, 0, time.UTC)
		a := &Activity{StartTime: start, Type: Running}
		b := &Activity{StartTime: start.In(time.FixedZone("x", 7200)), Type: Running}

		assert.Equal(t, a.CalculateUID(), b.CalculateUID())
	})
}

func TestCountTotalWaypoints(t *testing.T) {
	act := &Activity{Laps: []*Lap{
		{Waypoints: []*Waypoint{{}, {}}},
		{Waypoints: []*Waypoint{{}}},
		{},
	}}
	assert.Equal(t, 3, act.CountTotalWaypoints())
	assert.Equal(t, 0, (&Activity{}).CountTotalWaypoints())
}

func TestEnsureTZ(t *testing.T) {
	t.Run("keeps_existing_offset", func(t *testing.T) {
		zone := time.FixedZone("", -5*3600)
		act := &Activity{StartTime: time.Date(2020, 1, 15, 7, 0, 0, 0, zone)}
		require.NoError(t, act.EnsureTZ())
		assert.Equal(t, zone, act.TZ)
	})

	t.Run("derives_from_longitude", func(t *testing.T) {
		start := time.Date(2020, 1, 15, 7, 0, 0, 0, time.UTC)
		act := &Activity{
			StartTime: start,
			EndTime:   start.Add(time.Hour),
			Laps: []*Lap{{Waypoints: []*Waypoint{
				{Timestamp: start, Location: &Location{Latitude: 48.1, Longitude: 31.0}},
			}}},
		}
		require.NoError(t, act.EnsureTZ())
		_, offset := act.StartTime.Zone()
		assert.Equal(t, 2*3600, offset)
		assert.True(t, act.StartTime.Equal(start), "instant must not move")
	})

	t.Run("follows_zone_rules", func(t *testing.T) {
		tests := []struct {
			name   string
			lat    float64
			lon    float64
			at     time.Time
			zone   string
			offset int
		}{
			{name: "new_york_summer", lat: 40.71, lon: -74.0, at: time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC), zone: "America/New_York", offset: -4 * 3600},
			{name: "new_york_winter", lat: 40.71, lon: -74.0, at: time.Date(2021, 1, 4, 12, 0, 0, 0, time.UTC), zone: "America/New_York", offset: -5 * 3600},
			{name: "half_hour_offset", lat: 19.07, lon: 72.88, at: time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC), offset: 5*3600 + 1800},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				act := &Activity{
					StartTime: tt.at,
					Laps:      []*Lap{{Waypoints: []*Waypoint{{Timestamp: tt.at, Location: &Location{Latitude: tt.lat, Longitude: tt.lon}}}}},
				}
				require.NoError(t, act.EnsureTZ())
				if tt.zone != "" {
					assert.Equal(t, tt.zone, act.TZ.String())
				}
				_, offset := act.StartTime.Zone()
				assert.Equal(t, tt.offset, offset)
			})
		}
	})

	t.Run("fails_without_location", func(t *testing.T) {
		act := &Activity{StartTime: time.Date(2020, 1, 15, 7, 0, 0, 0, time.UTC)}
		assert.Error(t, act.EnsureTZ())
		assert.Nil(t, act.TZ)
	})
}

func TestPickMostSpecific(t *testing.T) {
	tests := []struct {
		name  string
		types []ActivityType
		want  ActivityType
	}{
		{"refinement_wins", []ActivityType{Cycling, MountainBiking}, MountainBiking},
		{"unrelated_picks_first", []ActivityType{Cycling, MountainBiking, Swimming}, Cycling},
		{"duplicates", []ActivityType{Cycling, MountainBiking, MountainBiking}, MountainBiking},
		{"single", []ActivityType{MountainBiking}, MountainBiking},
		{"with_empty", []ActivityType{"", MountainBiking}, MountainBiking},
		{"all_empty", []ActivityType{"", ""}, Other},
		{"other_never_preferred", []ActivityType{Other, MountainBiking}, MountainBiking},
		{"mixed", []ActivityType{Other, Cycling, "", MountainBiking}, MountainBiking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PickMostSpecific(tt.types))
		})
	}
}

func TestParseType(t *testing.T) {
	got, ok := ParseType("mountainbiking")
	require.True(t, ok)
	assert.Equal(t, MountainBiking, got)

	_, ok = ParseType("kitesurf")
	assert.False(t, ok)
}
