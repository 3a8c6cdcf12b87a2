package streamer

import (
	"context"
	"encoding/binary"
)

// FrameSource supplies one compressed image buffer per broadcast tick. The
// camera pipeline (capture, overlay, JPEG encoding) lives behind this
// boundary; the streamer treats the result as opaque bytes.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// PatternSource is a camera stand-in that emits synthetic JPEG-shaped
// buffers: valid SOI/EOI markers around a deterministic moving payload.
// Buffer size scales with the quality knob the way a real encoder's output
// roughly would, so pacing and chunk counts behave realistically.
type PatternSource struct {
	counter uint32
	size    int
}

// NewPatternSource creates a source whose frames approximate the output of
// a 640-wide JPEG at the given quality (1-100).
func NewPatternSource(quality int) *PatternSource {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return &PatternSource{size: 2048 + quality*700}
}

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF, 0xE0}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Capture produces the next frame. Never blocks and never fails; a real
// camera source would honor ctx cancellation here.
func (p *PatternSource) Capture(_ context.Context) ([]byte, error) {
	p.counter++

	frame := make([]byte, p.size)
	copy(frame, jpegSOI)

	// Body: a rolling pattern derived from the frame counter, so every
	// frame differs and reassembly mismatches are detectable byte by byte.
	binary.BigEndian.PutUint32(frame[4:8], p.counter)
	for i := 8; i < p.size-len(jpegEOI); i++ {
		frame[i] = byte(i) ^ byte(p.counter)
	}

	copy(frame[p.size-len(jpegEOI):], jpegEOI)
	return frame, nil
}
