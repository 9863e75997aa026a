//go:build linux

package devices

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type sysfsDetector struct {
	classDir string
	byIDDir  string
	devDir   string
}

func newDetector() Detector {
	return &sysfsDetector{
		classDir: "/sys/class/video4linux",
		byIDDir:  "/dev/v4l/by-id",
		devDir:   "/dev",
	}
}

// FindDevices lists video4linux capture nodes. Metadata nodes that share a
// camera with a capture node (index > 0) are skipped.
func (d *sysfsDetector) FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(d.classDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	ids := d.stableIDs()
	var devices []DeviceInfo
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		dir := filepath.Join(d.classDir, name)
		if index := readInt(filepath.Join(dir, "index")); index > 0 {
			continue
		}

		path := filepath.Join(d.devDir, name)
		devices = append(devices, DeviceInfo{
			DevicePath: path,
			DeviceName: readString(filepath.Join(dir, "name")),
			DeviceID:   ids[path],
			Index:      nodeNumber(name),
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices, nil
}

// stableIDs maps device paths to their /dev/v4l/by-id names.
func (d *sysfsDetector) stableIDs() map[string]string {
	ids := make(map[string]string)
	entries, err := os.ReadDir(d.byIDDir)
	if err != nil {
		return ids
	}
	for _, e := range entries {
		link := filepath.Join(d.byIDDir, e.Name())
		target, err := os.Readlink(link)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(d.byIDDir, target)
		}
		target = filepath.Join(d.devDir, filepath.Base(target))
		if _, seen := ids[target]; !seen {
			ids[target] = e.Name()
		}
	}
	return ids
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readInt(path string) int {
	n, err := strconv.Atoi(readString(path))
	if err != nil {
		return 0
	}
	return n
}

func nodeNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
	if err != nil {
		return -1
	}
	return n
}
