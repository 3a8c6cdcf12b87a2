package reassembly

// Newer reports whether frame id a is newer than b under 16-bit wraparound,
// using serial-number arithmetic with a half-window of 32768. A long-running
// stream wraps its frame counter roughly every 18 minutes at 60 fps; plain
// integer comparison would freeze the picture for the next half of the id
// space, so the gate below must never use it.
func Newer(a, b uint16) bool {
	return a != b && a-b < 0x8000
}

// Gate is the caller-level monotonicity guard applied to completed frames.
// Reordering can complete an older frame after a newer one was already
// consumed; the gate drops it rather than regress the picture. Best-effort
// by design, not a delivery guarantee.
type Gate struct {
	last   uint16
	primed bool
}

// Admit reports whether the frame should be consumed, and records it as the
// latest if so. The first frame is always admitted.
func (g *Gate) Admit(frameID uint16) bool {
	if g.primed && !Newer(frameID, g.last) {
		return false
	}
	g.last = frameID
	g.primed = true
	return true
}
