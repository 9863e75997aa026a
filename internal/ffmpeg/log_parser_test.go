package ffmpeg

import (
	"log/slog"
	"testing"
)

func TestParseLogLine(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel slog.Level
		wantMsg   string
	}{
		{"[info] Press [q] to stop", slog.LevelInfo, "Press [q] to stop"},
		{"[error] Device busy", slog.LevelError, "Device busy"},
		{"[fatal] No such device", slog.LevelError, "No such device"},
		{"[verbose] probing", slog.LevelDebug, "probing"},
		{"[video4linux2,v4l2 @ 0x55d0] [warning] The driver changed the time per frame", slog.LevelWarn, "[video4linux2,v4l2 @ 0x55d0] The driver changed the time per frame"},
		{"[libx264 @ 0x55d0] using cpu capabilities", slog.LevelInfo, "[libx264 @ 0x55d0] using cpu capabilities"},
		{"frame=  120 fps= 30 q=-0.0 size=N/A time=00:00:04.00 bitrate=N/A speed=1x", slog.LevelDebug, "frame=  120 fps= 30 q=-0.0 size=N/A time=00:00:04.00 bitrate=N/A speed=1x"},
		{"plain line", slog.LevelInfo, "plain line"},
		{"[", slog.LevelInfo, "["},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			level, msg := ParseLogLine(tt.line)
			if level != tt.wantLevel || msg != tt.wantMsg {
				t.Errorf("ParseLogLine(%q) = (%v, %q), want (%v, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}
