package encoder

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewFrameStrides(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		align         int
		wantStride    [3]int
	}{
		{"aligned", 64, 48, 32, [3]int{64, 32, 32}},
		{"padded", 40, 30, 32, [3]int{64, 32, 32}},
		{"byte aligned", 40, 30, 1, [3]int{40, 20, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFrame(tt.width, tt.height, tt.align)
			if err != nil {
				t.Fatalf("NewFrame() error: %v", err)
			}
			if f.Stride != tt.wantStride {
				t.Errorf("Stride = %v, want %v", f.Stride, tt.wantStride)
			}
			if len(f.Data[0]) != f.Stride[0]*tt.height {
				t.Errorf("luma plane = %d bytes, want %d", len(f.Data[0]), f.Stride[0]*tt.height)
			}
			if len(f.Data[1]) != f.Stride[1]*tt.height/2 {
				t.Errorf("chroma plane = %d bytes, want %d", len(f.Data[1]), f.Stride[1]*tt.height/2)
			}
			if f.Format != PixelFormat {
				t.Errorf("Format = %q", f.Format)
			}
		})
	}
}

func TestNewFrameRejects(t *testing.T) {
	tests := []struct {
		name                 string
		width, height, align int
	}{
		{"odd width", 41, 30, 32},
		{"odd height", 40, 31, 32},
		{"zero", 0, 0, 32},
		{"alignment not power of two", 40, 30, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFrame(tt.width, tt.height, tt.align); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFramePackDropsPadding(t *testing.T) {
	f, err := NewFrame(4, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	for i := range f.Data[0] {
		f.Data[0][i] = 0xEE // padding marker
	}
	copy(f.Data[0][0:4], []byte{1, 2, 3, 4})
	copy(f.Data[0][8:12], []byte{5, 6, 7, 8})
	f.Data[1][0], f.Data[1][1] = 9, 10
	f.Data[2][0], f.Data[2][1] = 11, 12

	got, err := f.Pack(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(got, want) {
		t.Errorf("Pack() = %v, want %v", got, want)
	}
	if f.PackedSize() != len(want) {
		t.Errorf("PackedSize() = %d, want %d", f.PackedSize(), len(want))
	}
}

func TestFrameFree(t *testing.T) {
	f, err := NewFrame(16, 16, 32)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.MakeWritable(); err != nil {
		t.Fatalf("MakeWritable() error: %v", err)
	}

	f.Free()
	f.Free()

	if !f.Freed() {
		t.Error("Freed() = false after Free")
	}
	if err := f.MakeWritable(); !errors.Is(err, ErrFrameFreed) {
		t.Errorf("MakeWritable() after Free = %v, want ErrFrameFreed", err)
	}
	if _, err := f.Pack(nil); !errors.Is(err, ErrFrameFreed) {
		t.Errorf("Pack() after Free = %v, want ErrFrameFreed", err)
	}
}
