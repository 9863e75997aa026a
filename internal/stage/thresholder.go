package stage

import (
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/tracknode/internal/config"
)

// Thresholder toggle keys.
const (
	FlagGradientDown Flag = 'g'
	FlagGradientUp   Flag = 'G'
	FlagTileDown     Flag = 't'
	FlagTileUp       Flag = 'T'
)

// Thresholder binarises a gray frame against the mean of each square tile.
// Tiles whose contrast is below the gradient gate are treated as uniform and
// filled by their mean brightness. Tile rows are split into bands processed
// in parallel inside one Process call.
type Thresholder struct {
	Base

	gradient int
	tile     int
	threads  int
}

// NewThresholder creates a thresholder. Values are clamped to their bounds.
func NewThresholder(gradient, tile, threads int) *Thresholder {
	return &Thresholder{
		Base:     NewBase(KindThresholder),
		gradient: config.GradientBounds.Clamp(gradient),
		tile:     config.TileBounds.Clamp(tile),
		threads:  config.ThreadBounds().Clamp(threads),
	}
}

// Init accepts gray frames only.
func (t *Thresholder) Init(g Geometry) error {
	if err := RequireGray(g); err != nil {
		return err
	}
	return t.Base.Init(g)
}

// Threads returns the worker count.
func (t *Thresholder) Threads() int { return t.threads }

// Process writes 0 or 255 per pixel.
func (t *Thresholder) Process(src, dst []byte) {
	t.mu.RLock()
	g, ready := t.geom, t.ready
	gradient, tile, threads := t.gradient, t.tile, t.threads
	t.mu.RUnlock()

	if !ready || !t.fits(g, src, dst) {
		return
	}

	tile = min(tile, max(g.Width, g.Height))
	tileRows := (g.Height + tile - 1) / tile
	bands := min(threads, tileRows)
	perBand := (tileRows + bands - 1) / bands

	var eg errgroup.Group
	for first := 0; first < tileRows; first += perBand {
		last := min(first+perBand, tileRows)
		eg.Go(func() error {
			for ty := first; ty < last; ty++ {
				thresholdRow(g, src, dst, ty*tile, min((ty+1)*tile, g.Height), tile, gradient)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

func thresholdRow(g Geometry, src, dst []byte, y0, y1, tile, gradient int) {
	w := g.Width
	for x0 := 0; x0 < w; x0 += tile {
		x1 := min(x0+tile, w)

		sum, lo, hi := 0, 255, 0
		for y := y0; y < y1; y++ {
			for _, v := range src[y*w+x0 : y*w+x1] {
				sum += int(v)
				lo = min(lo, int(v))
				hi = max(hi, int(v))
			}
		}
		mean := sum / ((y1 - y0) * (x1 - x0))

		if hi-lo < gradient {
			fill := byte(0)
			if mean >= 128 {
				fill = 255
			}
			for y := y0; y < y1; y++ {
				row := dst[y*w+x0 : y*w+x1]
				for i := range row {
					row[i] = fill
				}
			}
			continue
		}

		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				if int(src[y*w+x]) > mean {
					dst[y*w+x] = 255
				} else {
					dst[y*w+x] = 0
				}
			}
		}
	}
}

// Toggle steps the gradient gate or the tile size. It reports whether the
// value changed.
func (t *Thresholder) Toggle(flag Flag, persist bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var field *int
	var bounds config.Bounds
	step := 1
	switch flag {
	case FlagGradientDown:
		field, bounds, step = &t.gradient, config.GradientBounds, -1
	case FlagGradientUp:
		field, bounds = &t.gradient, config.GradientBounds
	case FlagTileDown:
		field, bounds, step = &t.tile, config.TileBounds, -1
	case FlagTileUp:
		field, bounds = &t.tile, config.TileBounds
	default:
		return false
	}

	next := bounds.Clamp(*field + step)
	if next == *field {
		return false
	}
	*field = next
	t.logger.Debug("Thresholder adjusted", "gradient", t.gradient, "tile", t.tile, "persist", persist)
	return true
}

// Flags lists the thresholder toggle keys.
func (t *Thresholder) Flags() []Flag {
	return []Flag{FlagGradientDown, FlagGradientUp, FlagTileDown, FlagTileUp}
}

// Tuned reports the gradient gate and tile size.
func (t *Thresholder) Tuned() Tuned {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ThresholderState{Gradient: t.gradient, Tile: t.tile}
}
