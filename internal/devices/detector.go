// Package devices enumerates the capture devices the tracker can open.
package devices

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// DeviceInfo describes one video capture node.
type DeviceInfo struct {
	DevicePath string `json:"device_path"`
	DeviceName string `json:"device_name"`
	DeviceID   string `json:"device_id,omitempty"`
	Index      int    `json:"index"`
}

// Detector lists capture devices.
type Detector interface {
	FindDevices() ([]DeviceInfo, error)
}

// NewDetector creates a platform-specific device detector.
func NewDetector() Detector {
	return newDetector()
}

// List writes a table of devices to w, or a notice when there are none.
func List(w io.Writer, d Detector) error {
	devices, err := d.FindDevices()
	if err != nil {
		return fmt.Errorf("error finding devices: %w", err)
	}
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No capture devices found.")
		return err
	}

	fmt.Fprintf(w, "Found %d capture devices:\n", len(devices))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPATH\tNAME\tID")
	for _, dev := range devices {
		id := dev.DeviceID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", dev.Index, dev.DevicePath, dev.DeviceName, id)
	}
	return tw.Flush()
}
