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

// Package syncerr is the failure taxonomy surfaced by storage adapters and the
// sync core. Adapters map transport-level codes into a Kind; callers decide
// whether to abort, retry, or record a per-file exclusion.
package syncerr

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// Kind classifies a sync failure.
type Kind int

const (
	Unknown Kind = iota
	AuthRequired
	QuotaExceeded
	Transport
	NotFound
	CorruptActivity
	Untagged
)

func (k Kind) String() string {
	switch k {
	case AuthRequired:
		return "auth_required"
	case QuotaExceeded:
		return "quota_exceeded"
	case Transport:
		return "transport"
	case NotFound:
		return "not_found"
	case CorruptActivity:
		return "corrupt"
	case Untagged:
		return "untagged"
	default:
		return "unknown"
	}
}

// ❌ Error is a classified sync failure
type Error struct {
	Kind    Kind
	Message string

	// ActivityID names the file or activity an exclusion applies to.
	ActivityID string

	// Permanent exclusions will not go away on retry.
	Permanent bool

	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.ActivityID != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.ActivityID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Blocking failures abort the whole account sync.
func (e *Error) Blocking() bool {
	return e.Kind == AuthRequired || e.Kind == QuotaExceeded
}

// InterventionRequired reports whether the user must act before a retry can work.
func (e *Error) InterventionRequired() bool {
	return e.Blocking()
}

// Exclusion failures are recorded against one file while the cycle continues.
func (e *Error) Exclusion() bool {
	return e.Kind == CorruptActivity || e.Kind == Untagged
}

// New builds a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Exclude builds a per-file exclusion.
func Exclude(kind Kind, activityID string, permanent bool, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ActivityID: activityID, Permanent: permanent}
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsBlocking reports whether err must abort the account sync.
func IsBlocking(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Blocking()
}

// IsExclusion reports whether err is a per-file exclusion.
func IsExclusion(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Exclusion()
}

// FromStatus maps an HTTP-style status code onto a Kind.
func FromStatus(status int) Kind {
	switch {
	case status == 401:
		return AuthRequired
	case status == 507:
		return QuotaExceeded
	case status == 404:
		return NotFound
	case status == 304:
		return Unknown
	case status == 429, status >= 500:
		return Transport
	default:
		return Unknown
	}
}
