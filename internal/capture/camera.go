// Package capture provides the frame sources the engine reads from: an
// ffmpeg process decoding a V4L2 device (or its lavfi test pattern) to
// gray rawvideo, and an in-process synthetic pattern.
package capture

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/tracknode/internal/config"
	"github.com/smazurov/tracknode/internal/devices"
	"github.com/smazurov/tracknode/internal/engine"
	"github.com/smazurov/tracknode/internal/ffmpeg"
	"github.com/smazurov/tracknode/internal/logging"
)

// DevicePattern selects the in-process synthetic source.
const DevicePattern = "pattern"

// Camera is the capture configuration read from the camera file.
type Camera struct {
	Device      string   `toml:"device"`
	Format      string   `toml:"format"`
	Width       int      `toml:"width"`
	Height      int      `toml:"height"`
	FPS         int      `toml:"fps"`
	TestPattern bool     `toml:"test_pattern"`
	Options     []string `toml:"options"`
}

type cameraFile struct {
	Camera Camera `toml:"camera"`
}

// DefaultCamera is used when no camera file is configured. An empty device
// means the first capture device found.
func DefaultCamera() Camera {
	return Camera{
		Width:  640,
		Height: 480,
		FPS:    30,
	}
}

// LoadCamera reads a camera file over the defaults. An empty path or
// config.NoPath returns the defaults.
func LoadCamera(path string) (Camera, error) {
	cam := DefaultCamera()
	if path == "" || path == config.NoPath {
		return cam, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cam, fmt.Errorf("failed to read camera config: %w", err)
	}
	f := cameraFile{Camera: cam}
	if err := toml.Unmarshal(data, &f); err != nil {
		return cam, fmt.Errorf("failed to parse camera config %s: %w", path, err)
	}
	if err := f.Camera.Validate(); err != nil {
		return cam, fmt.Errorf("camera config %s: %w", path, err)
	}
	return f.Camera, nil
}

// Validate checks the frame size and the ffmpeg input options.
func (c Camera) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.FPS < 0 {
		return fmt.Errorf("invalid frame rate %d", c.FPS)
	}
	return ffmpeg.ValidateOptions(c.optionTypes())
}

func (c Camera) optionTypes() []ffmpeg.OptionType {
	if len(c.Options) == 0 {
		return ffmpeg.GetDefaultOptions()
	}
	opts := make([]ffmpeg.OptionType, len(c.Options))
	for i, o := range c.Options {
		opts[i] = ffmpeg.OptionType(o)
	}
	return opts
}

// Open starts the source the camera describes.
func Open(c Camera) (engine.Source, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := logging.GetLogger("capture")

	if c.Device == DevicePattern {
		logger.Info("Using synthetic pattern source", "width", c.Width, "height", c.Height, "fps", c.FPS)
		return NewPatternSource(c.Width, c.Height, c.FPS), nil
	}

	params := ffmpeg.CaptureParams{
		InputFormat: c.Format,
		Width:       c.Width,
		Height:      c.Height,
		FPS:         c.FPS,
		TestPattern: c.TestPattern,
		Options:     c.optionTypes(),
	}
	if !c.TestPattern {
		path, err := resolveDevice(c.Device, devices.NewDetector())
		if err != nil {
			return nil, err
		}
		params.DevicePath = path
	}
	return NewFFmpegSource(params)
}

// ErrNoDevice is returned when no device is configured and none is found.
var ErrNoDevice = errors.New("no capture device found")

func resolveDevice(device string, detector devices.Detector) (string, error) {
	if device != "" {
		return devices.ResolveDevicePath(device)
	}
	found, err := detector.FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to list capture devices: %w", err)
	}
	if len(found) == 0 {
		return "", ErrNoDevice
	}
	return found[0].DevicePath, nil
}
