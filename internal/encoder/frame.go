package encoder

import (
	"fmt"
	"sync"
)

// PixelFormat is the only frame layout sessions accept.
const PixelFormat = "yuv420p"

// Frame is a reusable yuv420p picture. Each plane row starts at a multiple
// of the alignment the frame was allocated with.
type Frame struct {
	Width  int
	Height int
	Format string
	Data   [3][]byte
	Stride [3]int

	mu    sync.Mutex
	freed bool
}

// NewFrame allocates a frame whose strides are rounded up to align bytes.
func NewFrame(width, height, align int) (*Frame, error) {
	if err := (Params{Width: width, Height: height}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %dx%d", err, width, height)
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("alignment %d is not a power of two", align)
	}

	f := &Frame{Width: width, Height: height, Format: PixelFormat}
	for i := range f.Data {
		w, h := f.planeSize(i)
		f.Stride[i] = (w + align - 1) &^ (align - 1)
		f.Data[i] = make([]byte, f.Stride[i]*h)
	}
	return f, nil
}

func (f *Frame) planeSize(plane int) (w, h int) {
	if plane == 0 {
		return f.Width, f.Height
	}
	return f.Width / 2, f.Height / 2
}

// MakeWritable readies the frame for a new picture.
func (f *Frame) MakeWritable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.freed {
		return ErrFrameFreed
	}
	return nil
}

// Free releases the planes. Freeing twice is a no-op.
func (f *Frame) Free() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freed = true
	f.Data = [3][]byte{}
}

// Freed reports whether Free was called.
func (f *Frame) Freed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freed
}

// PackedSize is the byte size of the frame without stride padding.
func (f *Frame) PackedSize() int {
	return f.Width*f.Height + 2*(f.Width/2)*(f.Height/2)
}

// Pack appends the planes to dst without stride padding.
func (f *Frame) Pack(dst []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.freed {
		return dst, ErrFrameFreed
	}
	for i := range f.Data {
		w, h := f.planeSize(i)
		for y := range h {
			row := y * f.Stride[i]
			dst = append(dst, f.Data[i][row:row+w]...)
		}
	}
	return dst, nil
}
