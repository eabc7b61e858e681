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
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/activity"
)

// TimeLayout renders activity times into the meta cache.
const TimeLayout = "15:04:05 02 01 2006 -0700"

// legacyTimeLayout is what older cache documents hold: local time, no zone.
const legacyTimeLayout = "15:04:05 02 01 2006"

// 🔑 PathHash is the meta cache key for a relative path
func PathHash(relPath string) string {
	sum := md5.Sum([]byte(relPath))
	return hex.EncodeToString(sum[:])
}

// 📂 Directory is one listed directory and the activity files it held
type Directory struct {
	Path  string    `json:"Path"`
	Hash  string    `json:"Hash"`
	Files []FileRev `json:"Files"`
}

// FileRev is a file path with the revision it was listed at.
type FileRev struct {
	Path string `json:"Path"`
	Rev  string `json:"Rev"`
}

// 🌳 Structure is the persisted directory tree of one account. Records are
// kept flat and sorted by absolute path; descendants share a path prefix.
type Structure struct {
	ExternalID string `json:"ExternalID"`
	// SyncRoot is the root the records were listed under.
	SyncRoot  string       `json:"SyncRoot,omitempty"`
	Structure []*Directory `json:"Structure"`
}

// NewStructure returns an empty structure document for externalID.
func NewStructure(externalID string) *Structure {
	return &Structure{ExternalID: externalID}
}

// Lookup returns the record for path, or nil.
func (s *Structure) Lookup(path string) *Directory {
	i := sort.Search(len(s.Structure), func(i int) bool { return s.Structure[i].Path >= path })
	if i < len(s.Structure) && s.Structure[i].Path == path {
		return s.Structure[i]
	}
	return nil
}

// Ensure returns the record for path, creating it when absent.
func (s *Structure) Ensure(path string) *Directory {
	i := sort.Search(len(s.Structure), func(i int) bool { return s.Structure[i].Path >= path })
	if i < len(s.Structure) && s.Structure[i].Path == path {
		return s.Structure[i]
	}
	dir := &Directory{Path: path}
	s.Structure = append(s.Structure, nil)
	copy(s.Structure[i+1:], s.Structure[i:])
	s.Structure[i] = dir
	return dir
}

// Descendants returns every record strictly below path.
func (s *Structure) Descendants(path string) []*Directory {
	prefix := descendantPrefix(path)
	var out []*Directory
	for _, dir := range s.Structure {
		if dir.Path != path && strings.HasPrefix(dir.Path, prefix) {
			out = append(out, dir)
		}
	}
	return out
}

// Children returns the records directly below path.
func (s *Structure) Children(path string) []*Directory {
	prefix := descendantPrefix(path)
	var out []*Directory
	for _, dir := range s.Descendants(path) {
		if !strings.Contains(strings.TrimPrefix(dir.Path, prefix), "/") {
			out = append(out, dir)
		}
	}
	return out
}

// Remove drops the records for the given paths.
func (s *Structure) Remove(paths ...string) {
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[p] = true
	}
	kept := s.Structure[:0]
	for _, dir := range s.Structure {
		if !drop[dir.Path] {
			kept = append(kept, dir)
		}
	}
	s.Structure = kept
}

// RemoveTree drops path and everything below it.
func (s *Structure) RemoveTree(path string) {
	paths := []string{path}
	for _, dir := range s.Descendants(path) {
		paths = append(paths, dir.Path)
	}
	s.Remove(paths...)
}

// Replace swaps the whole record set, used by providers without
// conditional listing.
func (s *Structure) Replace(dirs []*Directory) {
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })
	s.Structure = dirs
}

// SetFileRev records the revision of a single file, creating the parent
// record if it does not exist yet.
func (s *Structure) SetFileRev(dirPath, filePath, rev string) {
	dir := s.Ensure(dirPath)
	for i := range dir.Files {
		if dir.Files[i].Path == filePath {
			dir.Files[i].Rev = rev
			return
		}
	}
	dir.Files = append(dir.Files, FileRev{Path: filePath, Rev: rev})
}

// RemoveFile forgets a file in dirPath.
func (s *Structure) RemoveFile(dirPath, filePath string) {
	dir := s.Lookup(dirPath)
	if dir == nil {
		return
	}
	kept := dir.Files[:0]
	for _, f := range dir.Files {
		if f.Path != filePath {
			kept = append(kept, f)
		}
	}
	dir.Files = kept
}

func descendantPrefix(path string) string {
	return strings.TrimSuffix(path, "/") + "/"
}

// 📋 ActivityEntry is the cached summary of one activity file
type ActivityEntry struct {
	Rev       string `json:"Rev"`
	UID       string `json:"UID"`
	StartTime string `json:"StartTime"`
	EndTime   string `json:"EndTime,omitempty"`

	// Path is only present on legacy entries keyed by UID.
	Path string `json:"Path,omitempty"`
}

// NewEntry captures the cacheable summary of act at revision rev.
func NewEntry(rev string, act *activity.Activity) *ActivityEntry {
	e := &ActivityEntry{
		Rev:       rev,
		UID:       act.UID,
		StartTime: act.StartTime.Format(TimeLayout),
	}
	if !act.EndTime.IsZero() {
		e.EndTime = act.EndTime.Format(TimeLayout)
	}
	return e
}

// Times rebuilds the start and end time. EndTime is zero when not cached.
func (e *ActivityEntry) Times() (time.Time, time.Time, error) {
	start, err := parseEntryTime(e.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Errorf("parsing cached start time: %w", err)
	}
	if e.EndTime == "" {
		return start, time.Time{}, nil
	}
	end, err := parseEntryTime(e.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Errorf("parsing cached end time: %w", err)
	}
	return start, end, nil
}

func parseEntryTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.ParseInLocation(legacyTimeLayout, s, time.Local)
}

// 🗃️ Activities is the persisted meta cache of one account
type Activities struct {
	ExternalID string                    `json:"ExternalID"`
	Activities map[string]*ActivityEntry `json:"Activities"`
}

// NewActivities returns an empty meta cache for externalID.
func NewActivities(externalID string) *Activities {
	return &Activities{ExternalID: externalID, Activities: map[string]*ActivityEntry{}}
}

// Resolve finds the entry for relPath. An entry still keyed by UID with a
// matching Path is copied under the path hash, its old key becoming the UID.
// The second return reports whether such a rekey happened.
func (a *Activities) Resolve(relPath string) (*ActivityEntry, bool) {
	key := PathHash(relPath)
	if e, ok := a.Activities[key]; ok {
		return e, false
	}
	for oldKey, e := range a.Activities {
		if e.Path != "" && e.Path == relPath {
			rekeyed := &ActivityEntry{
				Rev:       e.Rev,
				UID:       oldKey,
				StartTime: e.StartTime,
				EndTime:   e.EndTime,
			}
			a.Activities[key] = rekeyed
			return rekeyed, true
		}
	}
	return nil, false
}

// Put stores e under the hash of relPath.
func (a *Activities) Put(relPath string, e *ActivityEntry) {
	if a.Activities == nil {
		a.Activities = map[string]*ActivityEntry{}
	}
	a.Activities[PathHash(relPath)] = e
}
