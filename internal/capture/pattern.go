package capture

import (
	"io"
	"sync"
	"time"
)

const (
	patternBackground = 200
	patternBlob       = 20
)

// PatternSource generates frames in process: a dark square circling on a
// bright background, paced at the configured rate. It needs no device and
// no ffmpeg.
type PatternSource struct {
	width, height int
	interval      time.Duration

	mu    sync.Mutex
	frame int
	next  time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewPatternSource creates a source of width x height frames at fps. A
// non-positive fps produces frames as fast as they are read.
func NewPatternSource(width, height, fps int) *PatternSource {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &PatternSource{
		width:    width,
		height:   height,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Size returns the frame dimensions.
func (p *PatternSource) Size() (int, int) { return p.width, p.height }

// Read waits for the next frame slot and draws it. It returns io.EOF after
// Close.
func (p *PatternSource) Read(buf []byte) error {
	n := p.width * p.height
	if len(buf) < n {
		return io.ErrShortBuffer
	}

	p.mu.Lock()
	now := time.Now()
	if p.next.IsZero() {
		p.next = now
	}
	wait := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	frame := p.frame
	p.frame++
	p.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-p.done:
			return io.EOF
		case <-timer.C:
		}
	} else {
		select {
		case <-p.done:
			return io.EOF
		default:
		}
	}

	p.draw(buf[:n], frame)
	return nil
}

// draw renders the square for frame. It moves one pixel per frame around
// the border inset by a quarter of the frame.
func (p *PatternSource) draw(buf []byte, frame int) {
	for i := range buf {
		buf[i] = patternBackground
	}

	side := max(min(p.width, p.height)/8, 1)
	x0, y0 := p.width/4, p.height/4
	spanX := max(p.width/2-side, 1)
	spanY := max(p.height/2-side, 1)
	pos := frame % (2 * (spanX + spanY))

	var x, y int
	switch {
	case pos < spanX:
		x, y = x0+pos, y0
	case pos < spanX+spanY:
		x, y = x0+spanX, y0+pos-spanX
	case pos < 2*spanX+spanY:
		x, y = x0+spanX-(pos-spanX-spanY), y0+spanY
	default:
		x, y = x0, y0+spanY-(pos-2*spanX-spanY)
	}

	for row := y; row < min(y+side, p.height); row++ {
		line := buf[row*p.width : (row+1)*p.width]
		for col := x; col < min(x+side, p.width); col++ {
			line[col] = patternBlob
		}
	}
}

// Close ends the pattern.
func (p *PatternSource) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
