package ffmpeg

// CaptureParams describes a gray rawvideo capture read from stdout.
type CaptureParams struct {
	DevicePath  string
	InputFormat string // yuyv422, mjpeg, etc.
	Width       int
	Height      int
	FPS         int

	// TestPattern replaces the device with a lavfi test source.
	TestPattern bool

	Options []OptionType
}

// EncodeParams describes an H.264 encode of yuv420p frames written to stdin.
type EncodeParams struct {
	Encoder string // libx264, h264_v4l2m2m, etc.
	Width   int
	Height  int
	FPS     int

	Bitrate string // 2M, 800k
	Preset  string // ultrafast, veryfast
	GOP     int    // keyframe interval (0 = 2s of frames)

	ProgressSocket string // /tmp/tracknode-progress-xxx.sock
}
