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

package pathpolicy

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/lestrrat-go/strftime"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tracksync/pkg/activity"
)

const (
	DefaultTemplate   = "%Y-%m-%d_#NAME_#TYPE"
	DefaultMaxPathLen = 255

	// reserved covers the extension (4) and the leading slash (1).
	reserved = 5

	fallbackName = "activity"
)

var (
	namePattern = regexp.MustCompile(`(?i)#NAME`)
	typePattern = regexp.MustCompile(`(?i)#TYPE`)

	separators = regexp.MustCompile(`[/\\]`)
	forbidden  = regexp.MustCompile(`[<>:"|?*]`)
	whitespace = regexp.MustCompile(`\s+`)

	// repeated needs a backreference, which RE2 cannot express.
	repeated = regexp2.MustCompile(`([\W_])\1+`, regexp2.None)
	edges    = regexp2.MustCompile(`^[\W_]+|[\W_]+$`, regexp2.None)
)

// 📝 Policy renders activity filenames that survive provider path rules
type Policy struct {
	Template   string
	MaxPathLen int
}

// New returns a Policy, falling back to the defaults for zero values.
func New(template string, maxPathLen int) *Policy {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	if maxPathLen <= reserved {
		maxPathLen = DefaultMaxPathLen
	}
	return &Policy{Template: template, MaxPathLen: maxPathLen}
}

// 🎯 Render builds "<name>.<format>" for act. The result has no path
// separators, none of < > : " | ? *, and is at most MaxPathLen-1 characters
// so that it still fits once joined under a root with a leading slash.
func (p *Policy) Render(act *activity.Activity, format string) (string, error) {
	start := act.StartTime
	if act.TZ != nil {
		start = start.In(act.TZ)
	}

	name, err := strftime.Format(p.Template, start)
	if err != nil {
		return "", errors.Errorf("formatting template %q: %w", p.Template, err)
	}

	name = namePattern.ReplaceAllLiteralString(name, nameValue(act))
	name = typePattern.ReplaceAllLiteralString(name, string(act.Type))
	name = Clean(name)

	if name, err = repeated.Replace(name, "$1", -1, -1); err != nil {
		return "", errors.Errorf("collapsing separators: %w", err)
	}
	if name, err = trim(name); err != nil {
		return "", err
	}

	if runes := []rune(name); len(runes) > p.MaxPathLen-reserved {
		if name, err = trim(string(runes[:p.MaxPathLen-reserved])); err != nil {
			return "", err
		}
	}

	if name == "" {
		name = fallbackName
	}

	return name + "." + strings.ToLower(format), nil
}

// Clean replaces path separators and whitespace with "-" and drops
// characters storage providers reject.
func Clean(name string) string {
	name = separators.ReplaceAllLiteralString(name, "-")
	name = forbidden.ReplaceAllLiteralString(name, "")
	return whitespace.ReplaceAllLiteralString(name, "-")
}

func nameValue(act *activity.Activity) string {
	if act.Name == "" || strings.EqualFold(act.Name, string(act.Type)) {
		return ""
	}
	return Clean(act.Name)
}

func trim(name string) (string, error) {
	out, err := edges.Replace(name, "", -1, -1)
	if err != nil {
		return "", errors.Errorf("trimming separators: %w", err)
	}
	return out, nil
}
