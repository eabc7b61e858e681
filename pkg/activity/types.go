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

import "strings"

// 🏷️ ActivityType is the closed set of workout types
type ActivityType string

const (
	Running            ActivityType = "Running"
	Cycling            ActivityType = "Cycling"
	MountainBiking     ActivityType = "MountainBiking"
	Walking            ActivityType = "Walking"
	Hiking             ActivityType = "Hiking"
	DownhillSkiing     ActivityType = "DownhillSkiing"
	CrossCountrySkiing ActivityType = "CrossCountrySkiing"
	Snowboarding       ActivityType = "Snowboarding"
	Climbing           ActivityType = "Climbing"
	Skating            ActivityType = "Skating"
	Swimming           ActivityType = "Swimming"
	Wheelchair         ActivityType = "Wheelchair"
	Rowing             ActivityType = "Rowing"
	Elliptical         ActivityType = "Elliptical"
	Other              ActivityType = "Other"
)

// AllTypes lists every ActivityType in declaration order.
var AllTypes = []ActivityType{
	Running,
	Cycling,
	MountainBiking,
	Walking,
	Hiking,
	DownhillSkiing,
	CrossCountrySkiing,
	Snowboarding,
	Climbing,
	Skating,
	Swimming,
	Wheelchair,
	Rowing,
	Elliptical,
	Other,
}

// parents maps a type to the broader types it refines.
var parents = map[ActivityType][]ActivityType{
	MountainBiking: {Cycling},
	Hiking:         {Walking},
}

func (t ActivityType) String() string {
	return string(t)
}

// ParseType looks up an ActivityType by name, ignoring case.
func ParseType(s string) (ActivityType, bool) {
	for _, t := range AllTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

// 🎯 PickMostSpecific resolves several type hints into one. Empty hints and
// Other are ignored while something better exists; if one remaining type
// refines all the others it wins, otherwise the first hint is kept.
func PickMostSpecific(types []ActivityType) ActivityType {
	var candidates []ActivityType
	seen := map[ActivityType]bool{}
	for _, t := range types {
		if t == "" || t == Other || seen[t] {
			continue
		}
		seen[t] = true
		candidates = append(candidates, t)
	}

	if len(candidates) == 0 {
		return Other
	}

	for _, c := range candidates {
		if refinesAll(c, candidates) {
			return c
		}
	}

	return candidates[0]
}

func refinesAll(c ActivityType, others []ActivityType) bool {
	for _, o := range others {
		if o == c {
			continue
		}
		if !isParent(o, c) {
			return false
		}
	}
	return true
}

func isParent(parent, child ActivityType) bool {
	for _, p := range parents[child] {
		if p == parent {
			return true
		}
	}
	return false
}
