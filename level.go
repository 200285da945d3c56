/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

const (
	// LevelTrace is more verbose than slog.LevelDebug.
	LevelTrace = slog.Level(-8)

	// LevelOff is more severe than any record can be, a threshold of LevelOff admits nothing.
	LevelOff = slog.Level(math.MaxInt32)
)

// ParseLevel parses a directive level. Names are case-insensitive; the digits
// 0 through 5 select off, error, warn, info, debug and trace in that order.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "0":
		return LevelOff, nil
	case "error", "1":
		return slog.LevelError, nil
	case "warn", "warning", "2":
		return slog.LevelWarn, nil
	case "info", "3":
		return slog.LevelInfo, nil
	case "debug", "4":
		return slog.LevelDebug, nil
	case "trace", "5":
		return LevelTrace, nil
	}

	// Offsets such as "INFO+2", as written by slog.Level.String.
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err == nil {
		return level, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// LevelString returns the directive spelling of level. Levels between the
// named ones are written the way slog.Level.String writes them.
func LevelString(level slog.Level) string {
	switch level {
	case LevelOff:
		return "off"
	case slog.LevelError:
		return "error"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelInfo:
		return "info"
	case slog.LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	}
	return level.String()
}
