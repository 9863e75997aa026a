package ffmpeg

import (
	"log/slog"
	"strings"
)

// levels maps the tags printed by -loglevel level+... onto slog levels.
var levels = map[string]slog.Level{
	"quiet":   slog.LevelDebug,
	"panic":   slog.LevelError,
	"fatal":   slog.LevelError,
	"error":   slog.LevelError,
	"warning": slog.LevelWarn,
	"info":    slog.LevelInfo,
	"verbose": slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"trace":   slog.LevelDebug,
}

// ParseLogLine recovers the level of one ffmpeg output line. Lines look like
// "[level] message" or "[component @ 0x...] [level] message"; the level tag
// is stripped and a component prefix kept. Periodic "frame=... fps=..."
// statistics are demoted to debug since the capture and encoder processes
// print one per second for the life of the run.
func ParseLogLine(line string) (slog.Level, string) {
	if strings.HasPrefix(line, "frame=") {
		return slog.LevelDebug, line
	}
	tag, rest, ok := levelTag(line)
	if ok {
		return levels[tag], rest
	}

	component, after, found := strings.Cut(line, "] ")
	if !found || !strings.HasPrefix(component, "[") {
		return slog.LevelInfo, line
	}
	if tag, rest, ok := levelTag(after); ok {
		return levels[tag], component + "] " + rest
	}
	return slog.LevelInfo, line
}

// levelTag splits a leading "[level] " tag off s.
func levelTag(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	tag, rest, found := strings.Cut(s[1:], "] ")
	if !found {
		return "", s, false
	}
	if _, known := levels[tag]; !known {
		return "", s, false
	}
	return tag, rest, true
}
