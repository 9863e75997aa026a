package led

import (
	"os"
	"strings"

	"github.com/smazurov/tracknode/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boardLEDs maps a device tree model fragment to the LED used for status.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "sys_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New returns a controller for the detected board. Boards without a known
// status LED get a no-op controller.
func New() Controller {
	logger := logging.GetLogger("led")
	model := detectBoard(deviceTreeModelPath)

	for _, b := range boardLEDs {
		if strings.Contains(model, b.model) {
			logger.Info("Status LED available", "board", model, "led", b.led)
			return newSysfs(sysfsLEDPath, b.led)
		}
	}
	logger.Debug("No status LED for board", "board", model)
	return noop{}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
