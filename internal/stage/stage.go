// Package stage defines the frame-transformation contract the engine drives
// and the built-in stages of the tracking chain.
package stage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/tracknode/internal/logging"
)

// ErrGeometry is returned by Init when a stage cannot work at the given size.
var ErrGeometry = errors.New("unsupported geometry")

// Kind identifies a stage variant.
type Kind string

// Stage kinds in chain order.
const (
	KindEqualizer   Kind = "equalizer"
	KindThresholder Kind = "thresholder"
	KindFinder      Kind = "finder"
	KindCalibrator  Kind = "calibrator"
	KindSink        Kind = "sink"
)

// Format is a frame pixel layout.
type Format int

// Frame formats.
const (
	FormatGray Format = iota + 1
	FormatRGB
)

// BytesPerPixel returns the packed pixel size.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatGray:
		return 1
	case FormatRGB:
		return 3
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatGray:
		return "gray"
	case FormatRGB:
		return "rgb24"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Geometry is the frame size and layouts a stage is initialised with.
type Geometry struct {
	Width  int
	Height int
	Src    Format
	Dst    Format
}

// Validate rejects empty sizes and unknown formats.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrGeometry, g.Width, g.Height)
	}
	if g.Src.BytesPerPixel() == 0 || g.Dst.BytesPerPixel() == 0 {
		return fmt.Errorf("%w: formats %v/%v", ErrGeometry, g.Src, g.Dst)
	}
	return nil
}

// SrcSize is the byte length of a source frame.
func (g Geometry) SrcSize() int { return g.Width * g.Height * g.Src.BytesPerPixel() }

// DstSize is the byte length of a destination frame.
func (g Geometry) DstSize() int { return g.Width * g.Height * g.Dst.BytesPerPixel() }

// Flag is an operator toggle key.
type Flag byte

func (f Flag) String() string { return string(rune(f)) }

// Stage is one unit of the processing chain.
//
// Process never blocks and never fails loudly: a stage that cannot handle a
// frame leaves dst untouched. Toggle may be called from another goroutine
// while Process runs. Tuned is only read after the engine has stopped.
type Stage interface {
	Kind() Kind
	Name() string
	Init(g Geometry) error
	Process(src, dst []byte)
	// Toggle applies flag and reports the resulting state. It returns false
	// for flags the stage does not handle. persist marks operator changes
	// as opposed to state restored at startup.
	Toggle(flag Flag, persist bool) bool
	Tuned() Tuned
}

// PostProcessor is implemented by stages that consume the finished display
// frame.
type PostProcessor interface {
	PostProcess(display []byte)
}

// Flagger is implemented by stages that can list their toggle keys.
type Flagger interface {
	Flags() []Flag
}

// Tuned is the operator-adjustable state a stage reports at harvest. The
// concrete type identifies the stage kind; stages without tunables return nil.
type Tuned interface {
	tuned()
}

// EqualizerState is harvested from the equalizer.
type EqualizerState struct {
	Background bool
}

// ThresholderState is harvested from the thresholder.
type ThresholderState struct {
	Gradient int
	Tile     int
}

// FinderState is harvested from the object finder.
type FinderState struct {
	FingerSize        int
	FingerSensitivity int
}

func (EqualizerState) tuned()   {}
func (ThresholderState) tuned() {}
func (FinderState) tuned()      {}

// Base carries what every stage shares: the geometry, the lock that guards
// toggled parameters and a module logger.
type Base struct {
	mu     sync.RWMutex
	kind   Kind
	geom   Geometry
	ready  bool
	logger *slog.Logger
}

// NewBase creates the shared state for a stage of kind.
func NewBase(kind Kind) Base {
	return Base{kind: kind, logger: logging.GetLogger("stage").With("stage", string(kind))}
}

// Kind returns the stage kind.
func (b *Base) Kind() Kind { return b.kind }

// Name returns the stage name used by the control API.
func (b *Base) Name() string { return string(b.kind) }

// Init stores a validated geometry.
func (b *Base) Init(g Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	b.geom = g
	b.ready = true
	b.mu.Unlock()
	b.logger.Debug("Stage initialised", "width", g.Width, "height", g.Height, "src", g.Src, "dst", g.Dst)
	return nil
}

// Geometry returns the initialised geometry.
func (b *Base) Geometry() Geometry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.geom
}

// fits reports whether both buffers can hold a frame of the geometry.
func (b *Base) fits(g Geometry, src, dst []byte) bool {
	return len(src) >= g.SrcSize() && len(dst) >= g.DstSize()
}

// Ready reports whether Init has succeeded.
func (b *Base) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Logger returns the stage logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// RequireGray rejects layouts other than single-channel frames.
func RequireGray(g Geometry) error {
	if g.Src != FormatGray || g.Dst != FormatGray {
		return fmt.Errorf("%w: need gray frames, got %v/%v", ErrGeometry, g.Src, g.Dst)
	}
	return nil
}
