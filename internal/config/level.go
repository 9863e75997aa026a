package config

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
)

// LevelKind tells whether a Level is a sentinel or a plain number.
type LevelKind uint8

// Level kinds.
const (
	LevelNumber LevelKind = iota
	LevelMin
	LevelMax
)

// MaxTile is the tile size the "max" token resolves to.
const MaxTile = math.MaxInt32

// Level is an enumerated-or-numeric tuning value such as the threshold
// gradient gate ("min", "max" or an integer).
type Level struct {
	Kind LevelKind
	N    int
}

// Bounds are the inclusive limits a Level resolves within.
type Bounds struct {
	Min int
	Max int
}

var (
	// GradientBounds limits the thresholder gradient gate.
	GradientBounds = Bounds{Min: 0, Max: 64}
	// TileBounds limits the thresholder tile size.
	TileBounds = Bounds{Min: 2, Max: MaxTile}
)

// ThreadBounds limits the worker count to the available parallelism.
func ThreadBounds() Bounds {
	return Bounds{Min: 1, Max: max(1, runtime.NumCPU())}
}

// Number returns a numeric Level.
func Number(n int) Level {
	return Level{Kind: LevelNumber, N: n}
}

// ParseLevel parses "min", "max" or a decimal integer.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "min":
		return Level{Kind: LevelMin}, nil
	case "max":
		return Level{Kind: LevelMax}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Level{}, fmt.Errorf("invalid level %q: %w", s, err)
	}
	return Number(n), nil
}

// Clamp limits n to the bounds.
func (b Bounds) Clamp(n int) int {
	return min(max(n, b.Min), b.Max)
}

// Resolve maps the level onto a concrete value within b.
func (l Level) Resolve(b Bounds) int {
	switch l.Kind {
	case LevelMin:
		return b.Min
	case LevelMax:
		return b.Max
	default:
		return b.Clamp(l.N)
	}
}

// Update returns the level to store after a stage reported n as its live
// value. A level that already resolves to n is kept so sentinel tokens
// survive a round trip.
func (l Level) Update(n int, b Bounds) Level {
	if l.Resolve(b) == b.Clamp(n) {
		return l
	}
	return Number(b.Clamp(n))
}

func (l Level) String() string {
	switch l.Kind {
	case LevelMin:
		return "min"
	case LevelMax:
		return "max"
	default:
		return strconv.Itoa(l.N)
	}
}
