package capture

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/smazurov/tracknode/internal/ffmpeg"
	"github.com/smazurov/tracknode/internal/logging"
	"github.com/smazurov/tracknode/internal/process"
)

// FFmpegSource reads gray frames from an ffmpeg process.
type FFmpegSource struct {
	width  int
	height int
	pipe   *process.Pipe
	logger *slog.Logger
}

// NewFFmpegSource starts ffmpeg for params.
func NewFFmpegSource(params ffmpeg.CaptureParams) (*FFmpegSource, error) {
	logger := logging.GetLogger("capture")
	pipe, err := process.Start("capture", ffmpeg.CaptureArgs(params),
		process.WithStdout(),
		process.WithLogParser(logger, ffmpeg.ParseLogLine))
	if err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}
	logger.Info("Capture started", "device", params.DevicePath, "test_pattern", params.TestPattern,
		"width", params.Width, "height", params.Height, "fps", params.FPS)
	return &FFmpegSource{
		width:  params.Width,
		height: params.Height,
		pipe:   pipe,
		logger: logger,
	}, nil
}

// Size returns the frame dimensions.
func (s *FFmpegSource) Size() (int, int) { return s.width, s.height }

// Read fills buf with one frame. A process that exits between frames
// yields io.EOF.
func (s *FFmpegSource) Read(buf []byte) error {
	n := s.width * s.height
	if len(buf) < n {
		return io.ErrShortBuffer
	}
	_, err := io.ReadFull(s.pipe.Stdout(), buf[:n])
	return err
}

// Close stops ffmpeg, which also unblocks a pending Read.
func (s *FFmpegSource) Close() error {
	code := s.pipe.Stop()
	s.logger.Info("Capture stopped", "exit_code", code)
	if code != 0 && code != 255 && code != process.ExitKilled {
		return fmt.Errorf("capture exited with code %d", code)
	}
	return nil
}
