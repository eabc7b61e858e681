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

package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/walteh/tracksync/pkg/activity"
)

// 🎨 Display configuration
const (
	lineIndent    = 4  // spaces to indent activity entries
	pathWidth     = 45 // Base width for the storage path
	typeWidth     = 18 // Width for the activity type
	outcomeWidth  = 12 // Width for the outcome text
	untaggedLabel = "untagged"
)

// Outcome is what happened to one activity during a run.
type Outcome int

const (
	Listed Outcome = iota
	Excluded
	Downloaded
	Uploaded
)

func (o Outcome) String() string {
	switch o {
	case Listed:
		return "listed"
	case Excluded:
		return "excluded"
	case Downloaded:
		return "downloaded"
	case Uploaded:
		return "uploaded"
	default:
		return "unknown"
	}
}

// 🏃 ActivityLine is one activity as shown on the console
type ActivityLine struct {
	Path    string                // Storage path
	Type    activity.ActivityType // Tagged type, empty when untagged
	Outcome Outcome
	Detail  string // Exclusion reason or uploaded path
}

// 📦 AccountRun identifies the account a block of lines belongs to
type AccountRun struct {
	Name     string
	Provider string
	Root     string
}

// 🎯 Logger writes the activity console next to the structured log
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
	current *AccountRun
	tally   map[Outcome]int
}

// 🏭 New creates a new logger. zlog receives a structured record of every
// console line.
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
		tally:   map[Outcome]int{},
	}
}

// 📦 Buffered returns a logger that holds its console output until flush is
// called, so concurrent account runs print as whole blocks. The structured
// log is not buffered.
func (l *Logger) Buffered() (*Logger, func()) {
	buf := &bytes.Buffer{}
	child := New(buf, l.zlog)
	flush := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		_, _ = l.console.Write(buf.Bytes())
		buf.Reset()
	}
	return child, flush
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context. Without one, output is
// discarded.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		return New(io.Discard, zerolog.Nop())
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

func (l *Logger) formatActivity(line ActivityLine) string {
	var symbol rune
	var symbolColor color.Attribute
	switch line.Outcome {
	case Excluded:
		symbol = '✗'
		symbolColor = color.FgRed
	case Uploaded:
		symbol = '✓'
		symbolColor = color.FgGreen
	case Downloaded:
		symbol = '↓'
		symbolColor = color.FgBlue
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	typ := string(line.Type)
	typeColor := color.FgMagenta
	if typ == "" {
		typ = untaggedLabel
		typeColor = color.FgYellow
	}

	out := fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", lineIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", pathWidth, line.Path),
		color.New(typeColor).Sprint(fmt.Sprintf("%-*s", typeWidth, typ)),
		fmt.Sprintf("%-*s", outcomeWidth, line.Outcome))

	if line.Detail != "" {
		out += " " + color.New(color.Faint).Sprint(line.Detail)
	}
	return out
}

// 📝 LogActivity prints one activity line
func (l *Logger) LogActivity(ctx context.Context, line ActivityLine) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tally[line.Outcome]++

	fmt.Fprintln(l.console, l.formatActivity(line))

	ev := l.zlog.Info()
	if line.Outcome == Excluded {
		ev = l.zlog.Warn()
	}
	if l.current != nil {
		ev = ev.Str("account", l.current.Name)
	}
	ev.Str("path", line.Path).
		Str("type", string(line.Type)).
		Str("outcome", line.Outcome.String()).
		Str("detail", line.Detail).
		Msg("activity")
}

// 📝 StartAccount prints the account header and resets the tally
func (l *Logger) StartAccount(ctx context.Context, run AccountRun) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = &run
	l.tally = map[Outcome]int{}

	fmt.Fprintf(l.console, "[syncing %s]\n",
		color.New(color.FgCyan).Sprint(run.Name))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(run.Provider),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(run.Root))

	l.zlog.Info().
		Str("account", run.Name).
		Str("provider", run.Provider).
		Str("root", run.Root).
		Msg("starting account")
}

// 📝 EndAccount closes the current account block and returns its tally
func (l *Logger) EndAccount(ctx context.Context) map[Outcome]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	tally := l.tally
	l.tally = map[Outcome]int{}

	if l.current == nil {
		return tally
	}

	l.zlog.Info().
		Str("account", l.current.Name).
		Int("listed", tally[Listed]).
		Int("excluded", tally[Excluded]).
		Int("downloaded", tally[Downloaded]).
		Int("uploaded", tally[Uploaded]).
		Msg("account complete")

	l.current = nil
	return tally
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("tracksync")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warningf(format string, args ...any) {
	l.Warning(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Successf(format string, args ...any) {
	l.Success(fmt.Sprintf(format, args...))
}
