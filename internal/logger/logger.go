// Copyright 2025 Google LLC
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

// Package logger provides the leveled, package-global logger used across
// the layout wrapper and cache authority registry. It mirrors the shape of
// the teacher's internal/logger (a slog.LevelVar-driven level, text or JSON
// handler, TRACE added below slog's built-in Debug), narrowed to the
// handful of severities this client actually emits at.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Severity levels. TRACE sits one notch below slog.LevelDebug so that
// "-4 step" log/slog levels keep their usual ordering.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	// LevelOff is above any level we ever log at, effectively silencing the
	// logger while still accepting calls.
	LevelOff = slog.Level(100)
)

var (
	programLevel = new(slog.LevelVar)
	logger       = slog.New(newTextHandler(os.Stderr, programLevel))
)

// Format selects the on-wire shape of log records.
type Format int

const (
	// TextFormat renders "time=... severity=... msg=...".
	TextFormat Format = iota
	// JSONFormat renders one JSON object per record.
	JSONFormat
)

// Init (re)configures the package-level logger. Safe to call more than
// once; the caller typically does so exactly once at process start, wiring
// in the EOS_FUSE_* environment (see internal/config) indirectly through
// whatever level/format it resolved to.
func Init(w io.Writer, level slog.Level, format Format) {
	programLevel.Set(level)

	var h slog.Handler
	switch format {
	case JSONFormat:
		h = newJSONHandler(w, programLevel)
	default:
		h = newTextHandler(w, programLevel)
	}

	logger = slog.New(h)
}

// SetLevel changes the active level without touching the handler/format.
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// ParseLevel maps the spec's env-var-style level names to a slog.Level.
// Unrecognized names map to LevelInfo.
func ParseLevel(name string) slog.Level {
	switch name {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

func logf(level slog.Level, format string, args ...any) {
	if !logger.Enabled(context.Background(), level) {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	logger.Log(context.Background(), level, msg)
}
