package encoder

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func annexB(nals ...[]byte) []byte {
	var b []byte
	for _, n := range nals {
		b = append(b, startCode...)
		b = append(b, n...)
	}
	return b
}

var (
	aud   = []byte{0x09, 0xF0}
	sps   = []byte{0x67, 0x42, 0xC0, 0x1F, 0xDA}
	pps   = []byte{0x68, 0xCE, 0x3C, 0x80}
	idr   = []byte{0x65, 0x88, 0x84, 0x21}
	slice = []byte{0x41, 0x9A, 0x02, 0x11}
)

func TestAccessUnitReader(t *testing.T) {
	stream := annexB(aud, sps, pps, idr, aud, slice, aud, slice)

	r, err := newAccessUnitReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatal(err)
	}

	want := []Packet{
		{Data: annexB(sps, pps, idr), PTS: 0, Keyframe: true},
		{Data: annexB(slice), PTS: 1},
		{Data: annexB(slice), PTS: 2},
	}
	for i, w := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if !bytes.Equal(got.Data, w.Data) || got.PTS != w.PTS || got.Keyframe != w.Keyframe {
			t.Errorf("packet %d = {%x %d %v}, want {%x %d %v}", i, got.Data, got.PTS, got.Keyframe, w.Data, w.PTS, w.Keyframe)
		}
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after stream = %v, want io.EOF", err)
	}
}

func TestAccessUnitReaderEmpty(t *testing.T) {
	r, err := newAccessUnitReader(bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() = %v, want io.EOF", err)
	}
}
