package cmd

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/smazurov/tracknode/internal/encoder"
)

func TestStripPlatformArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"untouched", []string{"-c", "a.toml", "-n"}, []string{"-c", "a.toml", "-n"}},
		{"process serial", []string{"-psn_0_12345", "-l"}, []string{"-l"}},
		{"debug mode with value", []string{"-NSDocumentRevisionsDebugMode", "YES", "-n"}, []string{"-n"}},
		{"debug mode last", []string{"-c", "x", "-NSDocumentRevisionsDebugMode"}, []string{"-c", "x"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripPlatformArgs(tt.args)
			if !slices.Equal(got, tt.want) {
				t.Errorf("StripPlatformArgs(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestRootHelp(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"-h"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help returned %v", err)
	}
	for _, flag := range []string{"--config", "--headless", "--list"} {
		if !strings.Contains(out.String(), flag) {
			t.Errorf("help output missing %s", flag)
		}
	}
}

func TestRootList(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"-l", "-c", filepath.Join(t.TempDir(), "missing.toml")})
	if err := root.Execute(); err != nil {
		t.Fatalf("list returned %v", err)
	}
	if !strings.Contains(out.String(), "capture devices") {
		t.Errorf("unexpected list output %q", out.String())
	}
}

func TestRootRejectsArgs(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"extra"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestPrintCodecs(t *testing.T) {
	codecs := []encoder.Codec{
		{Name: "libx264", Family: "h264", Description: "libx264 H.264"},
		{Name: "h264_v4l2m2m", Family: "h264", HWAccel: true, Description: "V4L2 mem2mem"},
		{Name: "libx265", Family: "hevc", Description: "libx265 H.265"},
	}

	var all bytes.Buffer
	if err := printCodecs(&all, codecs, ""); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(all.String(), "\n"); lines != 4 {
		t.Errorf("got %d lines, want header and 3 rows:\n%s", lines, all.String())
	}

	var hevc bytes.Buffer
	if err := printCodecs(&hevc, codecs, "hevc"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(hevc.String(), "libx264") || !strings.Contains(hevc.String(), "libx265") {
		t.Errorf("family filter output:\n%s", hevc.String())
	}

	var none bytes.Buffer
	if err := printCodecs(&none, codecs, "av1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(none.String(), "No matching encoders") {
		t.Errorf("empty output:\n%s", none.String())
	}
}
