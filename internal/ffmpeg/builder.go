package ffmpeg

import (
	"fmt"
	"strconv"
)

// RawPixelFormat is the frame format the encoder input carries.
const RawPixelFormat = "yuv420p"

// Base returns the ffmpeg invocation with standard flags.
func Base() []string {
	return []string{"ffmpeg", "-hide_banner", "-nostdin", "-loglevel", "level+info"}
}

// EncodersListArgs lists the encoders the local ffmpeg supports.
func EncodersListArgs() []string {
	return []string{"ffmpeg", "-hide_banner", "-encoders"}
}

func size(w, h int) string {
	return fmt.Sprintf("%dx%d", w, h)
}

// CaptureArgs builds a command that writes packed 8-bit gray frames of
// Width*Height bytes to stdout.
func CaptureArgs(p CaptureParams) []string {
	fps := p.FPS
	if fps <= 0 {
		fps = 30
	}
	args := Base()

	if p.TestPattern {
		// -re paces the generator at its nominal rate
		args = append(args, "-re", "-f", "lavfi",
			"-i", fmt.Sprintf("testsrc2=size=%s:rate=%d", size(p.Width, p.Height), fps))
	} else {
		args = append(args, "-f", "v4l2")
		args = append(args, ApplyOptions(p.Options)...)
		if p.InputFormat != "" {
			args = append(args, "-input_format", p.InputFormat)
		}
		args = append(args,
			"-video_size", size(p.Width, p.Height),
			"-framerate", strconv.Itoa(fps),
			"-i", p.DevicePath)
	}

	// Scale guards against drivers that round the requested size.
	return append(args,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-pix_fmt", "gray",
		"-f", "rawvideo",
		"pipe:1")
}

// EncodeArgs builds a command that reads yuv420p frames from stdin and
// writes an Annex-B H.264 elementary stream with access unit delimiters to
// stdout.
func EncodeArgs(p EncodeParams) []string {
	fps := p.FPS
	if fps <= 0 {
		fps = 30
	}
	args := append(Base(),
		"-f", "rawvideo",
		"-pix_fmt", RawPixelFormat,
		"-video_size", size(p.Width, p.Height),
		"-framerate", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", p.Encoder)

	// Constrained baseline is what every WebRTC peer can decode.
	if p.Encoder == "libx264" {
		args = append(args, "-profile:v", "baseline", "-level:v", "3.1")
	}

	if p.Bitrate != "" {
		args = append(args, "-b:v", p.Bitrate, "-maxrate", p.Bitrate)
	}

	gop := p.GOP
	if gop <= 0 {
		gop = 2 * fps
	}
	args = append(args, "-g", strconv.Itoa(gop), "-bf", "0")

	// Low latency settings for software encoders
	if !isHardwareEncoder(p.Encoder) {
		preset := p.Preset
		if preset == "" {
			preset = "ultrafast"
		}
		if p.Encoder == "libx264" {
			args = append(args, "-preset", preset, "-tune", "zerolatency")
		}
		args = append(args, "-keyint_min", strconv.Itoa(gop), "-sc_threshold", "0")
	}

	if p.ProgressSocket != "" {
		args = append(args, "-progress", "unix://"+p.ProgressSocket)
	}

	return append(args,
		"-bsf:v", "h264_metadata=aud=insert",
		"-flush_packets", "1",
		"-f", "h264",
		"pipe:1")
}
