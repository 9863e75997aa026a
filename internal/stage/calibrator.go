package stage

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/tracknode/internal/config"
)

// Calibrator toggle keys.
const (
	FlagCalibrate Flag = 'c'
	FlagResetGrid Flag = 'j'
)

// Default grid resolution used when no grid file is configured.
const (
	DefaultGridCols = 7
	DefaultGridRows = 5
)

// Point is a normalised grid vertex.
type Point struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
}

// Grid is the calibration mesh: (Cols+1)*(Rows+1) vertices in row order.
type Grid struct {
	Cols   int     `toml:"cols"`
	Rows   int     `toml:"rows"`
	Points []Point `toml:"points"`
}

type gridFile struct {
	Grid Grid `toml:"grid"`
}

// UniformGrid returns an undistorted mesh.
func UniformGrid(cols, rows int) Grid {
	g := Grid{Cols: cols, Rows: rows, Points: make([]Point, 0, (cols+1)*(rows+1))}
	for r := 0; r <= rows; r++ {
		for c := 0; c <= cols; c++ {
			g.Points = append(g.Points, Point{X: float64(c) / float64(cols), Y: float64(r) / float64(rows)})
		}
	}
	return g
}

// LoadGrid reads a grid file. Missing or mis-sized point lists fall back to
// a uniform mesh of the declared size.
func LoadGrid(path string) (Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, err
	}
	var f gridFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return Grid{}, fmt.Errorf("failed to parse grid %s: %w", path, err)
	}
	g := f.Grid
	if g.Cols < 1 || g.Rows < 1 {
		return Grid{}, fmt.Errorf("grid %s: invalid size %dx%d", path, g.Cols, g.Rows)
	}
	if len(g.Points) != (g.Cols+1)*(g.Rows+1) {
		return UniformGrid(g.Cols, g.Rows), nil
	}
	return g, nil
}

// Calibrator holds the calibration mesh. In calibration mode it draws the
// mesh onto the display frame. The grid file is reloaded when it changes on
// disk. Frames pass through unchanged.
type Calibrator struct {
	Base

	path        string
	grid        Grid
	calibrating bool
	watcher     *config.Watcher[Grid]
}

// NewCalibrator loads the grid at path, or a default mesh when path is
// config.NoPath, and starts watching the file.
func NewCalibrator(path string) *Calibrator {
	c := &Calibrator{
		Base: NewBase(KindCalibrator),
		path: path,
		grid: UniformGrid(DefaultGridCols, DefaultGridRows),
	}
	if path == "" || path == config.NoPath {
		return c
	}

	if g, err := LoadGrid(path); err != nil {
		c.logger.Warn("Failed to load calibration grid, using default", "path", path, "error", err)
	} else {
		c.grid = g
	}

	c.watcher = config.NewWatcher(path, LoadGrid, c.logger)
	c.watcher.OnReload(c.setGrid)
	if err := c.watcher.Start(); err != nil {
		c.logger.Warn("Calibration grid will not be reloaded", "path", path, "error", err)
		c.watcher = nil
	}
	return c
}

func (c *Calibrator) setGrid(g Grid) {
	c.mu.Lock()
	c.grid = g
	c.mu.Unlock()
	c.logger.Info("Calibration grid reloaded", "path", c.path, "cols", g.Cols, "rows", g.Rows)
}

// Grid returns a copy of the current mesh.
func (c *Calibrator) Grid() Grid {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g := c.grid
	g.Points = append([]Point(nil), c.grid.Points...)
	return g
}

// Init accepts gray frames only.
func (c *Calibrator) Init(g Geometry) error {
	if err := RequireGray(g); err != nil {
		return err
	}
	return c.Base.Init(g)
}

// Process passes the frame through.
func (c *Calibrator) Process(src, dst []byte) {
	c.mu.RLock()
	g, ready := c.geom, c.ready
	c.mu.RUnlock()
	if !ready || !c.fits(g, src, dst) {
		return
	}
	copy(dst[:g.DstSize()], src[:g.SrcSize()])
}

// PostProcess draws the mesh while calibrating.
func (c *Calibrator) PostProcess(display []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.calibrating || !c.ready || len(display) < c.geom.Width*c.geom.Height {
		return
	}

	w, h := c.geom.Width, c.geom.Height
	grid := c.grid
	at := func(col, row int) (int, int) {
		p := grid.Points[row*(grid.Cols+1)+col]
		return int(p.X * float64(w-1)), int(p.Y * float64(h-1))
	}
	for row := 0; row <= grid.Rows; row++ {
		for col := 0; col <= grid.Cols; col++ {
			x0, y0 := at(col, row)
			if col < grid.Cols {
				x1, y1 := at(col+1, row)
				drawLine(display, w, h, x0, y0, x1, y1)
			}
			if row < grid.Rows {
				x1, y1 := at(col, row+1)
				drawLine(display, w, h, x0, y0, x1, y1)
			}
		}
	}
}

// drawLine plots a white Bresenham line, clipped to the frame.
func drawLine(buf []byte, w, h, x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if x0 >= 0 && x0 < w && y0 >= 0 && y0 < h {
			buf[y0*w+x0] = 255
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Toggle switches calibration mode or resets the mesh.
func (c *Calibrator) Toggle(flag Flag, persist bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch flag {
	case FlagCalibrate:
		c.calibrating = !c.calibrating
		c.logger.Info("Calibration mode", "enabled", c.calibrating, "persist", persist)
		return c.calibrating
	case FlagResetGrid:
		c.grid = UniformGrid(c.grid.Cols, c.grid.Rows)
		c.logger.Info("Calibration grid reset", "cols", c.grid.Cols, "rows", c.grid.Rows)
		return true
	default:
		return false
	}
}

// Flags lists the calibrator toggle keys.
func (c *Calibrator) Flags() []Flag { return []Flag{FlagCalibrate, FlagResetGrid} }

// Tuned returns nil; the grid path is never changed at runtime.
func (c *Calibrator) Tuned() Tuned { return nil }

// Close stops watching the grid file.
func (c *Calibrator) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Stop()
}
