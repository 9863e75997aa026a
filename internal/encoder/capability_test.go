package encoder

import (
	"context"
	"errors"
	"testing"
)

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libopenh264          OpenH264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V..... h264_v4l2m2m         V4L2 mem2mem H.264 encoder wrapper (codec h264)
 V....D h264_vaapi           H.264/AVC (VAAPI) (codec h264)
 V....D mjpeg                MJPEG (Motion JPEG)
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestParseEncoderOutput(t *testing.T) {
	codecs, err := parseEncoderOutput(encodersOutput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Codec{
		{Name: "libx264", Family: "h264"},
		{Name: "libopenh264", Family: "h264"},
		{Name: "h264_v4l2m2m", Family: "h264", HWAccel: true},
		{Name: "h264_vaapi", Family: "h264", HWAccel: true},
		{Name: "mjpeg", Family: "mjpeg"},
	}
	if len(codecs) != len(want) {
		t.Fatalf("got %d codecs, want %d: %+v", len(codecs), len(want), codecs)
	}
	for i, w := range want {
		got := codecs[i]
		if got.Name != w.Name || got.Family != w.Family || got.HWAccel != w.HWAccel {
			t.Errorf("codec %d = %+v, want name=%s family=%s hwaccel=%v", i, got, w.Name, w.Family, w.HWAccel)
		}
	}
}

func TestParseEncoderFlagColumn(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{" V....D libx264  libx264 H.264 / AVC (codec h264)", "libx264"},
		{" VFS..D libx265  libx265 H.265 / HEVC (codec hevc)", "libx265"},
		{" V..X.. h264_experimental  Experimental H.264 (codec h264)", "h264_experimental"},
		{" V...B. rawvideo  raw video", "rawvideo"},
		{" A....D aac  AAC (Advanced Audio Coding)", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			codecs, err := parseEncoderOutput(" ------\n" + tt.line + "\n")
			if err != nil {
				t.Fatal(err)
			}
			if tt.want == "" {
				if len(codecs) != 0 {
					t.Errorf("codecs = %+v, want none", codecs)
				}
				return
			}
			if len(codecs) != 1 || codecs[0].Name != tt.want {
				t.Errorf("codecs = %+v, want %s", codecs, tt.want)
			}
		})
	}
}

func TestSelectCodec(t *testing.T) {
	available, err := parseEncoderOutput(encodersOutput)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		want      string
		preferred []string
		expected  string
		wantErr   bool
	}{
		{"exact name", "h264_vaapi", DefaultPreference, "h264_vaapi", false},
		{"family uses preference", "h264", []string{"h264_v4l2m2m", "libx264"}, "h264_v4l2m2m", false},
		{"preference skips missing", "h264", []string{"h264_nvenc", "libopenh264"}, "libopenh264", false},
		{"family fallback", "h264", nil, "libx264", false},
		{"unknown", "hevc", DefaultPreference, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectCodec(tt.want, available, tt.preferred)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != tt.expected {
				t.Errorf("selectCodec() = %s, want %s", got.Name, tt.expected)
			}
		})
	}
}

func TestFindProbesOnce(t *testing.T) {
	calls := 0
	b := NewFFmpegBackend(FFmpegConfig{})
	b.list = func(_ context.Context) ([]Codec, error) {
		calls++
		return parseEncoderOutput(encodersOutput)
	}

	for range 3 {
		c, err := b.Find("h264")
		if err != nil {
			t.Fatalf("Find() error: %v", err)
		}
		if c.Name != "libx264" {
			t.Errorf("Find() = %s, want libx264", c.Name)
		}
	}
	if calls != 1 {
		t.Errorf("encoder list probed %d times, want 1", calls)
	}
}

func TestFindWithoutFFmpeg(t *testing.T) {
	b := NewFFmpegBackend(FFmpegConfig{})
	b.list = func(_ context.Context) ([]Codec, error) {
		return nil, errors.New("ffmpeg is not installed or not in PATH")
	}
	if _, err := b.Find("h264"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find() error = %v, want ErrNotFound", err)
	}
}

func TestNewSessionRejectsEmptyCodec(t *testing.T) {
	b := NewFFmpegBackend(FFmpegConfig{})
	if _, err := b.NewSession(Codec{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("NewSession() error = %v, want ErrNotFound", err)
	}
}
