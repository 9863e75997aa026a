package capture

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/tracknode/internal/config"
	"github.com/smazurov/tracknode/internal/devices"
	"github.com/smazurov/tracknode/internal/ffmpeg"
)

func TestLoadCamera(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		want    Camera
		wantErr bool
	}{
		{
			name: "none gives defaults",
			path: config.NoPath,
			want: DefaultCamera(),
		},
		{
			name: "partial file keeps defaults",
			path: write("partial.toml", "[camera]\ndevice = \"/dev/video2\"\nfps = 60\n"),
			want: Camera{Device: "/dev/video2", Width: 640, Height: 480, FPS: 60},
		},
		{
			name: "full file",
			path: write("full.toml", `[camera]
device = "pattern"
format = "mjpeg"
width = 320
height = 240
fps = 15
test_pattern = true
options = ["low_latency", "nobuffer"]
`),
			want: Camera{Device: "pattern", Format: "mjpeg", Width: 320, Height: 240, FPS: 15,
				TestPattern: true, Options: []string{"low_latency", "nobuffer"}},
		},
		{
			name:    "bad size",
			path:    write("bad.toml", "[camera]\nwidth = 0\n"),
			want:    DefaultCamera(),
			wantErr: true,
		},
		{
			name:    "unknown option",
			path:    write("opt.toml", "[camera]\noptions = [\"turbo\"]\n"),
			want:    DefaultCamera(),
			wantErr: true,
		},
		{
			name:    "missing file",
			path:    filepath.Join(dir, "missing.toml"),
			want:    DefaultCamera(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadCamera(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadCamera() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Device != tt.want.Device || got.Format != tt.want.Format ||
				got.Width != tt.want.Width || got.Height != tt.want.Height ||
				got.FPS != tt.want.FPS || got.TestPattern != tt.want.TestPattern ||
				len(got.Options) != len(tt.want.Options) {
				t.Errorf("LoadCamera() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOptionTypesDefault(t *testing.T) {
	got := DefaultCamera().optionTypes()
	want := ffmpeg.GetDefaultOptions()
	if len(got) != len(want) {
		t.Fatalf("optionTypes() = %v, want %v", got, want)
	}
}

type fakeDetector struct {
	found []devices.DeviceInfo
	err   error
}

func (f fakeDetector) FindDevices() ([]devices.DeviceInfo, error) { return f.found, f.err }

func TestResolveDevice(t *testing.T) {
	got, err := resolveDevice("/dev/video4", fakeDetector{})
	if err != nil || got != "/dev/video4" {
		t.Errorf("explicit device = %q, %v", got, err)
	}

	got, err = resolveDevice("", fakeDetector{found: []devices.DeviceInfo{{DevicePath: "/dev/video1"}, {DevicePath: "/dev/video3"}}})
	if err != nil || got != "/dev/video1" {
		t.Errorf("first detected device = %q, %v", got, err)
	}

	if _, err := resolveDevice("", fakeDetector{}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("no devices error = %v", err)
	}
	if _, err := resolveDevice("", fakeDetector{err: errors.New("boom")}); err == nil {
		t.Error("detector failure should be returned")
	}
}

func TestOpenPattern(t *testing.T) {
	src, err := Open(Camera{Device: DevicePattern, Width: 16, Height: 8, FPS: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if w, h := src.Size(); w != 16 || h != 8 {
		t.Errorf("Size() = %dx%d", w, h)
	}
}

func TestPatternSourceFrames(t *testing.T) {
	p := NewPatternSource(32, 16, 0)
	buf := make([]byte, 32*16)

	if err := p.Read(buf); err != nil {
		t.Fatal(err)
	}
	dark := 0
	for _, v := range buf {
		switch v {
		case patternBlob:
			dark++
		case patternBackground:
		default:
			t.Fatalf("unexpected pixel value %d", v)
		}
	}
	if dark != 4 {
		t.Errorf("blob pixels = %d, want 4", dark)
	}

	first := append([]byte(nil), buf...)
	if err := p.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(first) == string(buf) {
		t.Error("pattern did not move between frames")
	}

	if err := p.Read(make([]byte, 10)); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("short buffer error = %v", err)
	}
}

func TestPatternSourceCloseUnblocksRead(t *testing.T) {
	p := NewPatternSource(8, 8, 1)
	buf := make([]byte, 64)
	if err := p.Read(buf); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Read(buf) }()
	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Read() after Close = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock Read")
	}
}
