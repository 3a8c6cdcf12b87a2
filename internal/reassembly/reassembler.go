// Package reassembly reconstructs complete frames from the chunk datagrams
// of one upstream stream. A Reassembler is goroutine-local: it is owned by
// the single receive loop that feeds it and needs no locking. Completed
// frame buffers are immutable once returned and may be shared by reference
// across goroutine boundaries.
package reassembly

import (
	"time"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/protocol"
)

// DefaultStaleAfter bounds how long a partially received frame is retained.
// Under loss a frame may never complete; the sweep reclaims it.
const DefaultStaleAfter = 2 * time.Second

// pendingFrame accumulates the chunks of one in-flight frame.
type pendingFrame struct {
	totalChunks uint16
	chunks      map[uint16][]byte
	received    int
	firstSeen   time.Time
}

// Reassembler accumulates chunks keyed by frame id and emits completed
// frames. It enforces nothing about cross-frame ordering; that is the
// caller's Gate.
type Reassembler struct {
	pending    map[uint16]*pendingFrame
	staleAfter time.Duration
	lastSweep  time.Time
	now        func() time.Time

	// Diagnostic counters, read by the owning loop only.
	Completed uint64 // frames fully reassembled
	Expired   uint64 // frames dropped by the staleness sweep
	Malformed uint64 // datagrams rejected by the decoder
}

// New creates a Reassembler with the given staleness window. Zero or
// negative means DefaultStaleAfter.
func New(staleAfter time.Duration) *Reassembler {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Reassembler{
		pending:    make(map[uint16]*pendingFrame),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Feed processes one video datagram. When the datagram completes a frame,
// it returns the reassembled buffer and its frame id with ok=true; in every
// other case (partial frame, duplicate chunk, malformed datagram) ok is
// false and the loss is recovered locally.
func (r *Reassembler) Feed(datagram []byte) (frame []byte, frameID uint16, ok bool) {
	c, err := protocol.Decode(datagram)
	if err != nil {
		r.Malformed++
		return nil, 0, false
	}

	now := r.now()

	p, exists := r.pending[c.FrameID]
	if exists && c.TotalChunks != p.totalChunks {
		// The decoder only validates a chunk against its own header; a
		// disagreeing total could fake completeness and emit a short frame.
		r.Malformed++
		return nil, 0, false
	}
	if !exists {
		p = &pendingFrame{
			totalChunks: c.TotalChunks,
			chunks:      make(map[uint16][]byte, c.TotalChunks),
			firstSeen:   now,
		}
		r.pending[c.FrameID] = p
	}

	// Duplicate chunks are idempotent: stored once, counted once.
	if _, dup := p.chunks[c.ChunkID]; !dup {
		p.chunks[c.ChunkID] = c.Payload
		p.received++
	}

	r.sweep(now)

	if p.received != int(p.totalChunks) {
		return nil, 0, false
	}

	delete(r.pending, c.FrameID)
	return r.assemble(p), c.FrameID, true
}

// assemble concatenates the chunks in chunk-id order. The completeness check
// guarantees there are no gaps.
func (r *Reassembler) assemble(p *pendingFrame) []byte {
	size := 0
	for _, chunk := range p.chunks {
		size += len(chunk)
	}

	frame := make([]byte, 0, size)
	for id := uint16(0); id < p.totalChunks; id++ {
		frame = append(frame, p.chunks[id]...)
	}

	r.Completed++
	return frame
}

// Sweep drops pending frames older than the staleness window, complete or
// not. Feed calls it opportunistically; owning loops may also call it on
// idle ticks when no datagrams arrive to trigger it.
func (r *Reassembler) Sweep() {
	r.lastSweep = time.Time{}
	r.sweep(r.now())
}

// sweep runs at most once per window interval so Feed stays cheap.
func (r *Reassembler) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.staleAfter {
		return
	}
	r.lastSweep = now

	cutoff := now.Add(-r.staleAfter)
	for id, p := range r.pending {
		if p.firstSeen.Before(cutoff) {
			delete(r.pending, id)
			r.Expired++
		}
	}
}

// PendingFrames returns the number of in-flight partial frames.
func (r *Reassembler) PendingFrames() int {
	return len(r.pending)
}
