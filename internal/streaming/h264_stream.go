package streaming

import (
	"bytes"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

const (
	nalIDR = 5
	nalSPS = 7
	nalPPS = 8
)

var startCode = []byte{0, 0, 0, 1}

// parameterSets remembers the latest SPS/PPS of the stream and puts them in
// front of every IDR access unit that arrives without them. Encoders that
// only emit parameter sets once would otherwise leave late-joining peers
// unable to decode.
type parameterSets struct {
	sps, pps []byte
}

// prepare returns the access unit to packetize.
func (p *parameterSets) prepare(au []byte) []byte {
	nals := splitNALs(au)

	hasIDR, hasSPS, hasPPS := false, false, false
	for _, nal := range nals {
		switch nal[0] & 0x1F {
		case nalSPS:
			p.sps = append(p.sps[:0], nal...)
			hasSPS = true
		case nalPPS:
			p.pps = append(p.pps[:0], nal...)
			hasPPS = true
		case nalIDR:
			hasIDR = true
		}
	}

	if !hasIDR || (hasSPS && hasPPS) || len(p.sps) == 0 || len(p.pps) == 0 {
		return au
	}

	out := make([]byte, 0, len(au)+len(p.sps)+len(p.pps)+2*len(startCode))
	if !hasSPS {
		out = append(append(out, startCode...), p.sps...)
	}
	if !hasPPS {
		out = append(append(out, startCode...), p.pps...)
	}
	return append(out, au...)
}

// splitNALs returns the NAL units of an Annex-B buffer without start codes.
func splitNALs(au []byte) [][]byte {
	reader, err := h264reader.NewReader(bytes.NewReader(au))
	if err != nil {
		return nil
	}
	var nals [][]byte
	for {
		nal, err := reader.NextNAL()
		if err != nil {
			// io.EOF or a truncated unit; either ends the buffer
			return nals
		}
		if len(nal.Data) > 0 {
			nals = append(nals, nal.Data)
		}
	}
}
