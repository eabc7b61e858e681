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

package tagger

import (
	"regexp"

	"github.com/walteh/tracksync/pkg/activity"
)

// 🏷️ Rule pairs an activity type with the pattern that selects it
type Rule struct {
	Type    activity.ActivityType
	Pattern *regexp.Regexp
}

// Table is evaluated in order; earlier rules take precedence, so more specific
// patterns (mountain bike) must come before broader ones (bike).
var Table = []Rule{
	rule(activity.Running, `run`),
	rule(activity.MountainBiking, `m(oun)?t(ai)?n\s*bik(e|ing)`),
	rule(activity.Cycling, `(cycl(e|ing)|bik(e|ing))`),
	rule(activity.Walking, `walk`),
	rule(activity.Hiking, `hik(e|ing)`),
	rule(activity.DownhillSkiing, `(downhill|down(hill)?\s*ski(ing)?)`),
	rule(activity.CrossCountrySkiing, `(xc|cross.*country)\s*ski(ing)?`),
	rule(activity.Snowboarding, `snowboard(ing)?`),
	rule(activity.Climbing, `climb(ing)?`),
	rule(activity.Skating, `skat(e|ing)?`),
	rule(activity.Swimming, `swim`),
	rule(activity.Wheelchair, `wheelchair`),
	rule(activity.Rowing, `row`),
	rule(activity.Elliptical, `elliptical`),
	rule(activity.Other, `(other|unknown)`),
}

func rule(t activity.ActivityType, pattern string) Rule {
	return Rule{Type: t, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// 🔍 Tag classifies a relative path. ok is false when no rule matches.
func Tag(relPath string) (activity.ActivityType, bool) {
	for _, r := range Table {
		if r.Pattern.MatchString(relPath) {
			return r.Type, true
		}
	}
	return "", false
}
