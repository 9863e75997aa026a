package encoder

import (
	"errors"
	"io"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

// NAL unit types the splitter cares about.
const (
	nalIDR = 5
	nalAUD = 9
)

var startCode = []byte{0, 0, 0, 1}

// accessUnitReader groups the NAL units of an Annex-B stream into access
// units. The stream must carry access unit delimiters.
type accessUnitReader struct {
	nals    *h264reader.H264Reader
	pending []byte
	key     bool
	pts     int64
	done    bool
}

func newAccessUnitReader(r io.Reader) (*accessUnitReader, error) {
	nals, err := h264reader.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &accessUnitReader{nals: nals}, nil
}

// Next returns the next complete access unit, or io.EOF.
func (r *accessUnitReader) Next() (Packet, error) {
	for !r.done {
		nal, err := r.nals.NextNAL()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Packet{}, err
			}
			r.done = true
			break
		}

		if nal.UnitType == nalAUD {
			if pkt, ok := r.flush(); ok {
				return pkt, nil
			}
			continue
		}
		if nal.UnitType == nalIDR {
			r.key = true
		}
		r.pending = append(r.pending, startCode...)
		r.pending = append(r.pending, nal.Data...)
	}

	if pkt, ok := r.flush(); ok {
		return pkt, nil
	}
	return Packet{}, io.EOF
}

func (r *accessUnitReader) flush() (Packet, bool) {
	if len(r.pending) == 0 {
		return Packet{}, false
	}
	pkt := Packet{Data: r.pending, PTS: r.pts, Keyframe: r.key}
	r.pending = nil
	r.key = false
	r.pts++
	return pkt, true
}
