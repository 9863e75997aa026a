//go:build !linux

package devices

type noDetector struct{}

func newDetector() Detector { return noDetector{} }

// FindDevices reports no devices; capture goes through V4L2, which only
// exists on Linux.
func (noDetector) FindDevices() ([]DeviceInfo, error) { return nil, nil }
