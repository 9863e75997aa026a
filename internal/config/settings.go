package config

import "fmt"

// DisplayMode selects which buffer the display shows.
type DisplayMode int

// Display modes.
const (
	DisplayNone DisplayMode = iota
	DisplaySource
	DisplayDest
)

func (m DisplayMode) String() string {
	switch m {
	case DisplayNone:
		return "none"
	case DisplaySource:
		return "src"
	case DisplayDest:
		return "dest"
	default:
		return fmt.Sprintf("display(%d)", int(m))
	}
}

// ParseDisplayMode parses the none/src/dest tokens.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch s {
	case "none":
		return DisplayNone, nil
	case "src":
		return DisplaySource, nil
	case "dest":
		return DisplayDest, nil
	default:
		return DisplayDest, fmt.Errorf("unknown display mode %q", s)
	}
}

// FiducialEngine is the token that enables the object finder.
const FiducialEngine = "amoeba"

// NoPath marks an unset definition file.
const NoPath = "none"

// Settings is the typed snapshot of every tunable parameter. It is owned by
// the orchestrator and written only at load and at the post-run harvest.
type Settings struct {
	Host         string
	Port         int
	CameraConfig string
	TreeConfig   string
	GridConfig   string

	InvertX bool
	InvertY bool
	InvertA bool

	Background bool
	Fullscreen bool
	Headless   bool
	Display    DisplayMode

	// Amoeba enables the fiducial object finder.
	Amoeba bool

	FingerSize        int
	FingerSensitivity int

	Gradient Level
	Tile     Level
	Threads  Level
}

// DefaultSettings returns the values used when the document is silent.
func DefaultSettings() Settings {
	return Settings{
		Host:              "localhost",
		Port:              3333,
		CameraConfig:      NoPath,
		TreeConfig:        NoPath,
		GridConfig:        NoPath,
		Display:           DisplayDest,
		Amoeba:            true,
		FingerSize:        0,
		FingerSensitivity: 100,
		Gradient:          Number(32),
		Tile:              Number(10),
		Threads:           Number(1),
	}
}

// GradientGate is the resolved gradient gate.
func (s Settings) GradientGate() int { return s.Gradient.Resolve(GradientBounds) }

// TileSize is the resolved tile size.
func (s Settings) TileSize() int { return s.Tile.Resolve(TileBounds) }

// ThreadCount is the resolved worker count.
func (s Settings) ThreadCount() int { return s.Threads.Resolve(ThreadBounds()) }
