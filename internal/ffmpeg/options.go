package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType is a capture input flag that can be named in the camera file.
type OptionType string

// Capture input options.
const (
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
	OptionNoBuffer           OptionType = "nobuffer"
)

// ExclusiveGroup names a set of options of which at most one may be chosen.
type ExclusiveGroup string

// GroupThreadQueue holds the thread queue sizes.
const GroupThreadQueue ExclusiveGroup = "thread_queue"

// Option describes one capture input flag.
type Option struct {
	Key            OptionType     `json:"key"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	AppDefault     bool           `json:"app_default"`
	ExclusiveGroup ExclusiveGroup `json:"exclusive_group,omitempty"`
	ConflictsWith  []OptionType   `json:"conflicts_with,omitempty"`
	args           []string
	fflags         string
}

// AllOptions lists every supported capture input option.
var AllOptions = []Option{
	{
		Key:         OptionIgnoreErrors,
		Name:        "Ignore Errors",
		Description: "Keep reading frames despite corrupt buffers from the device",
		args:        []string{"-err_detect", "ignore_err"},
	},
	{
		Key:         OptionWallclockTimestamp,
		Name:        "Wallclock Timestamps",
		Description: "Stamp frames with the wallclock instead of the driver clock",
		args:        []string{"-use_wallclock_as_timestamps", "1"},
	},
	{
		Key:            OptionThreadQueue1024,
		Name:           "Large Thread Queue",
		Description:    "Use a 1024 packet input queue",
		AppDefault:     true,
		ExclusiveGroup: GroupThreadQueue,
		args:           []string{"-thread_queue_size", "1024"},
	},
	{
		Key:            OptionThreadQueue4096,
		Name:           "Extra Large Thread Queue",
		Description:    "Use a 4096 packet input queue for devices that burst",
		ExclusiveGroup: GroupThreadQueue,
		args:           []string{"-thread_queue_size", "4096"},
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Hand each frame on as soon as it is read",
		AppDefault:  true,
		args:        []string{"-flags", "+low_delay"},
		fflags:      "+flush_packets",
	},
	{
		Key:           OptionNoBuffer,
		Name:          "No Input Buffering",
		Description:   "Skip the demuxer probe buffer",
		fflags:        "+nobuffer",
		ConflictsWith: []OptionType{OptionThreadQueue4096},
	},
}

// GetOptionByKey returns an option by its key.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// ValidateOptions rejects unknown keys and more than one option from an
// exclusive group.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	chosen := make(map[OptionType]bool)

	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			return fmt.Errorf("unknown capture option %q", key)
		}
		chosen[key] = true
		if option.ExclusiveGroup != "" {
			groups[option.ExclusiveGroup] = append(groups[option.ExclusiveGroup], option.Name)
		}
	}

	for group, names := range groups {
		if len(names) > 1 {
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", group, strings.Join(names, ", "))
		}
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		for _, conflict := range option.ConflictsWith {
			if chosen[conflict] {
				return fmt.Errorf("option '%s' conflicts with '%s'", option.Name, GetOptionByKey(conflict).Name)
			}
		}
	}
	return nil
}

// GetDefaultOptions returns the options enabled when the camera file names none.
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ApplyOptions returns the input arguments for options, with all fflags
// merged into a single -fflags argument. Unknown keys are skipped.
func ApplyOptions(options []OptionType) []string {
	var args []string
	var fflags strings.Builder

	for _, key := range options {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		args = append(args, option.args...)
		fflags.WriteString(option.fflags)
	}

	if fflags.Len() > 0 {
		args = append(args, "-fflags", fflags.String())
	}
	return args
}

// isHardwareEncoder checks if the given codec name represents a hardware encoder.
func isHardwareEncoder(codec string) bool {
	for _, hw := range []string{"nvenc", "amf", "vaapi", "qsv", "videotoolbox", "rkmpp", "v4l2m2m"} {
		if strings.Contains(codec, hw) {
			return true
		}
	}
	return false
}
