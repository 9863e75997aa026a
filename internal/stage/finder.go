package stage

import (
	"github.com/smazurov/tracknode/internal/events"
	"github.com/smazurov/tracknode/internal/tuio"
)

// Finder toggle keys.
const (
	FlagFingerDown      Flag = 'f'
	FlagFingerUp        Flag = 'F'
	FlagSensitivityDown Flag = 's'
	FlagSensitivityUp   Flag = 'S'
	FlagInvertX         Flag = Flag(tuio.AxisX)
	FlagInvertY         Flag = Flag(tuio.AxisY)
	FlagInvertAngle     Flag = Flag(tuio.AxisAngle)
)

const minRegionArea = 4

// Region is one 4-connected dark area of the threshold image.
type Region struct {
	MinX, MinY int
	MaxX, MaxY int
	Area       int
	// CX, CY is the centroid in pixels.
	CX, CY float64
}

// Width of the bounding box.
func (r Region) Width() int { return r.MaxX - r.MinX + 1 }

// Height of the bounding box.
func (r Region) Height() int { return r.MaxY - r.MinY + 1 }

// Symbol is a recognised fiducial in pixel coordinates.
type Symbol struct {
	ID    int
	X, Y  float64
	Angle float64
}

// Recognizer classifies regions of the threshold image into fiducial symbols.
type Recognizer interface {
	Recognize(frame []byte, g Geometry, regions []Region) []Symbol
}

// NopRecognizer finds no symbols.
type NopRecognizer struct{}

// Recognize returns nil.
func (NopRecognizer) Recognize([]byte, Geometry, []Region) []Symbol { return nil }

// Tracker receives the objects found in each frame and owns the inversion
// flags the finder forwards.
type Tracker interface {
	Send(objects []events.TrackedObject) error
	ToggleInversion(axis tuio.Axis) (bool, error)
}

// Finder labels dark regions of the thresholded frame, picks out finger-sized
// blobs, hands the rest to the recognizer and sends every object to the
// tracker in normalised coordinates. Frames pass through unchanged.
type Finder struct {
	Base

	tracker    Tracker
	recognizer Recognizer

	fingerSize  int
	sensitivity int

	// labels is scratch space reused by Process.
	labels []int32
	stack  []int
	failed bool
}

// NewFinder creates a finder reporting to tracker.
func NewFinder(tracker Tracker, recognizer Recognizer, fingerSize, sensitivity int) *Finder {
	if recognizer == nil {
		recognizer = NopRecognizer{}
	}
	return &Finder{
		Base:        NewBase(KindFinder),
		tracker:     tracker,
		recognizer:  recognizer,
		fingerSize:  fingerSize,
		sensitivity: sensitivity,
	}
}

// Init accepts gray frames and sizes the label buffer.
func (f *Finder) Init(g Geometry) error {
	if err := RequireGray(g); err != nil {
		return err
	}
	if err := f.Base.Init(g); err != nil {
		return err
	}
	f.labels = make([]int32, g.Width*g.Height)
	return nil
}

// Process finds objects in src and copies it to dst.
func (f *Finder) Process(src, dst []byte) {
	f.mu.RLock()
	g, ready := f.geom, f.ready
	fingerSize, sensitivity := f.fingerSize, f.sensitivity
	f.mu.RUnlock()

	if !ready || !f.fits(g, src, dst) {
		return
	}
	copy(dst[:g.DstSize()], src[:g.SrcSize()])

	regions := f.label(g, src)

	var objects []events.TrackedObject
	rest := regions[:0:0]
	for _, r := range regions {
		if isFinger(r, fingerSize, sensitivity) {
			objects = append(objects, events.TrackedObject{
				ID:     -1,
				Finger: true,
				X:      r.CX / float64(g.Width),
				Y:      r.CY / float64(g.Height),
			})
			continue
		}
		rest = append(rest, r)
	}
	for _, s := range f.recognizer.Recognize(src, g, rest) {
		objects = append(objects, events.TrackedObject{
			ID:    s.ID,
			X:     s.X / float64(g.Width),
			Y:     s.Y / float64(g.Height),
			Angle: s.Angle,
		})
	}

	if f.tracker == nil {
		return
	}
	if err := f.tracker.Send(objects); err != nil {
		if !f.failed {
			f.logger.Warn("Failed to send tracked objects", "error", err)
		}
		f.failed = true
		return
	}
	f.failed = false
}

// label flood-fills the dark pixels of frame into regions.
func (f *Finder) label(g Geometry, frame []byte) []Region {
	w, h := g.Width, g.Height
	labels := f.labels
	clear(labels)

	var regions []Region
	next := int32(0)
	for start, v := range frame[:w*h] {
		if v != 0 || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		r := Region{MinX: w, MinY: h, MaxX: -1, MaxY: -1}
		var sx, sy int

		stack := append(f.stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%w, p/w

			r.Area++
			sx += x
			sy += y
			r.MinX, r.MaxX = min(r.MinX, x), max(r.MaxX, x)
			r.MinY, r.MaxY = min(r.MinY, y), max(r.MaxY, y)

			nb := [4]int{-1, -1, -1, -1}
			if x > 0 {
				nb[0] = p - 1
			}
			if x < w-1 {
				nb[1] = p + 1
			}
			if y > 0 {
				nb[2] = p - w
			}
			if y < h-1 {
				nb[3] = p + w
			}
			for _, q := range nb {
				if q < 0 || frame[q] != 0 || labels[q] != 0 {
					continue
				}
				labels[q] = next
				stack = append(stack, q)
			}
		}
		f.stack = stack

		if r.Area < minRegionArea {
			continue
		}
		r.CX = float64(sx) / float64(r.Area)
		r.CY = float64(sy) / float64(r.Area)
		regions = append(regions, r)
	}
	return regions
}

// isFinger accepts roughly round blobs whose box is within the sensitivity
// tolerance of the finger size. Size 0 disables finger tracking.
func isFinger(r Region, size, sensitivity int) bool {
	if size <= 0 {
		return false
	}
	tol := size * sensitivity / (2 * 100)
	w, h := r.Width(), r.Height()
	if abs(w-size) > tol || abs(h-size) > tol {
		return false
	}
	return 2*r.Area >= w*h
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Toggle steps the finger parameters or forwards an inversion flag to the
// tracker, returning the resulting inversion state.
func (f *Finder) Toggle(flag Flag, persist bool) bool {
	switch flag {
	case FlagInvertX, FlagInvertY, FlagInvertAngle:
		if f.tracker == nil {
			return false
		}
		on, err := f.tracker.ToggleInversion(tuio.Axis(flag))
		if err != nil {
			f.logger.Warn("Inversion toggle rejected", "flag", flag.String(), "error", err)
			return false
		}
		return on
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var field *int
	var step int
	switch flag {
	case FlagFingerDown:
		field, step = &f.fingerSize, -1
	case FlagFingerUp:
		field, step = &f.fingerSize, 1
	case FlagSensitivityDown:
		field, step = &f.sensitivity, -1
	case FlagSensitivityUp:
		field, step = &f.sensitivity, 1
	default:
		return false
	}

	next := max(*field+step, 0)
	if next == *field {
		return false
	}
	*field = next
	f.logger.Debug("Finder adjusted", "finger_size", f.fingerSize, "sensitivity", f.sensitivity, "persist", persist)
	return true
}

// Flags lists the finder toggle keys.
func (f *Finder) Flags() []Flag {
	return []Flag{
		FlagFingerDown, FlagFingerUp, FlagSensitivityDown, FlagSensitivityUp,
		FlagInvertX, FlagInvertY, FlagInvertAngle,
	}
}

// Tuned reports the finger parameters.
func (f *Finder) Tuned() Tuned {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FinderState{FingerSize: f.fingerSize, FingerSensitivity: f.sensitivity}
}
