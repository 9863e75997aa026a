// Package encoder is the boundary to the native H.264 encoder. A Backend
// finds a codec and creates sessions; a Session accepts raw frames and
// hands back encoded packets.
package encoder

import "errors"

var (
	// ErrNotFound is returned when no encoder for the requested codec exists.
	ErrNotFound = errors.New("encoder not found")
	// ErrAgain is returned when Send cannot take a frame now or Receive has
	// no packet ready.
	ErrAgain = errors.New("resource temporarily unavailable")
	// ErrEOF is returned by Receive once the encoder has exited.
	ErrEOF = errors.New("end of stream")
	// ErrNotOpen is returned by operations that need an open session.
	ErrNotOpen = errors.New("session not open")
	// ErrReleased is returned by a session after Release.
	ErrReleased = errors.New("session released")
	// ErrGeometry is returned for frame sizes the encoder cannot take.
	ErrGeometry = errors.New("invalid frame geometry")
	// ErrFrameFreed is returned when a freed frame is used.
	ErrFrameFreed = errors.New("frame freed")
)

// Codec identifies one encoder implementation.
type Codec struct {
	Name        string `json:"name"`
	Family      string `json:"family"`
	Description string `json:"description"`
	HWAccel     bool   `json:"hwaccel"`
}

// Params is the negotiated encode geometry and rate.
type Params struct {
	Width  int
	Height int
	FPS    int
	// Session names the session in logs and metrics.
	Session string
}

// Validate checks the geometry the encoder needs for yuv420p input.
func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return ErrGeometry
	}
	if p.Width%2 != 0 || p.Height%2 != 0 {
		return ErrGeometry
	}
	return nil
}

// Packet is one encoded access unit in Annex-B form.
type Packet struct {
	Data     []byte
	PTS      int64
	Keyframe bool
}

// Backend finds codecs and creates encoder sessions.
type Backend interface {
	Find(codec string) (Codec, error)
	NewSession(codec Codec) (Session, error)
}

// Session is one encoder context. Open may be called again to renegotiate;
// the previous encode is closed first. Close tolerates a session that was
// never opened. Release frees the context; the session is unusable after.
type Session interface {
	Open(p Params) error
	AllocFrame(align int) (*Frame, error)
	Send(f *Frame) error
	Receive() (Packet, error)
	Close() error
	Release() error
}
