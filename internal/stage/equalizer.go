package stage

// FlagBackground toggles background equalisation on the equalizer.
const FlagBackground Flag = ' '

// Equalizer flattens uneven illumination. When enabled, the next frame is
// captured as the background and every later frame is scaled per pixel so
// that background reads as its mean brightness. Disabled, it passes frames
// through.
type Equalizer struct {
	Base

	enabled bool
	capture bool
	// gain is 8.8 fixed point, replaced wholesale on capture.
	gain []uint16
}

// NewEqualizer creates a disabled equalizer.
func NewEqualizer() *Equalizer {
	return &Equalizer{Base: NewBase(KindEqualizer)}
}

// Init accepts gray frames only.
func (e *Equalizer) Init(g Geometry) error {
	if err := RequireGray(g); err != nil {
		return err
	}
	return e.Base.Init(g)
}

// Process applies the captured gain map.
func (e *Equalizer) Process(src, dst []byte) {
	e.mu.Lock()
	g := e.geom
	if !e.ready || !e.fits(g, src, dst) {
		e.mu.Unlock()
		return
	}
	if e.capture {
		e.gain = gainMap(src[:g.SrcSize()])
		e.capture = false
		e.logger.Info("Background captured")
	}
	enabled, gain := e.enabled, e.gain
	e.mu.Unlock()

	n := g.SrcSize()
	if !enabled || len(gain) != n {
		copy(dst[:n], src[:n])
		return
	}
	for i := range n {
		v := (int(src[i]) * int(gain[i])) >> 8
		dst[i] = byte(min(v, 255))
	}
}

func gainMap(bg []byte) []uint16 {
	var sum int
	for _, v := range bg {
		sum += int(v)
	}
	mean := sum / len(bg)

	gain := make([]uint16, len(bg))
	for i, v := range bg {
		gain[i] = uint16(min(mean*256/max(int(v), 1), 255*256))
	}
	return gain
}

// Toggle handles FlagBackground. Enabling schedules a background capture.
func (e *Equalizer) Toggle(flag Flag, persist bool) bool {
	if flag != FlagBackground {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = !e.enabled
	e.capture = e.enabled
	e.logger.Debug("Equalizer toggled", "enabled", e.enabled, "persist", persist)
	return e.enabled
}

// Flags lists the equalizer toggle keys.
func (e *Equalizer) Flags() []Flag { return []Flag{FlagBackground} }

// Enabled reports whether equalisation is on.
func (e *Equalizer) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// Tuned reports the background flag.
func (e *Equalizer) Tuned() Tuned {
	return EqualizerState{Background: e.Enabled()}
}
