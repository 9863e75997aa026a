package devices

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ResolveDevicePath converts a camera reference to a path ffmpeg can open.
// It accepts a /dev path, a bare node number, or a stable by-id/by-path name.
func ResolveDevicePath(deviceID string) (string, error) {
	if strings.HasPrefix(deviceID, "/dev/") {
		return deviceID, nil
	}

	if n, err := strconv.Atoi(deviceID); err == nil && n >= 0 {
		return fmt.Sprintf("/dev/video%d", n), nil
	}

	// Try by-id first (for USB devices)
	if strings.HasPrefix(deviceID, "usb-") {
		devicePath := "/dev/v4l/by-id/" + deviceID
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	// Try by-path (for platform devices and USB devices without by-id)
	if strings.HasPrefix(deviceID, "platform-") || strings.HasPrefix(deviceID, "usb-") || strings.HasPrefix(deviceID, "pci-") {
		devicePath := "/dev/v4l/by-path/" + deviceID
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	return "", fmt.Errorf("no stable symlink found for device ID: %s", deviceID)
}
