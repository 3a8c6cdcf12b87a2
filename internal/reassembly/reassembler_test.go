package reassembly

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/protocol"
)

// TestRoundTripAnyOrder verifies the core property: packetize then feed the
// datagrams in any order, and the completed frame is byte-identical.
func TestRoundTripAnyOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, size := range []int{1, 3, 1400, 1401, 7 * 1400, 10 * 1400} {
		frame := make([]byte, size)
		rng.Read(frame)

		chunks := protocol.Packetize(frame, 77, 1400)
		rng.Shuffle(len(chunks), func(i, j int) { chunks[i], chunks[j] = chunks[j], chunks[i] })

		r := New(0)
		var got []byte
		for i, c := range chunks {
			out, id, ok := r.Feed(protocol.Encode(c))
			if ok {
				if i != len(chunks)-1 {
					t.Fatalf("size %d: frame completed after %d of %d chunks", size, i+1, len(chunks))
				}
				if id != 77 {
					t.Errorf("size %d: frame id = %d, want 77", size, id)
				}
				got = out
			}
		}

		if got == nil {
			t.Fatalf("size %d: frame never completed", size)
		}
		if !bytes.Equal(got, frame) {
			t.Errorf("size %d: reassembled frame differs from input", size)
		}
		if r.PendingFrames() != 0 {
			t.Errorf("size %d: %d pending frames left after completion", size, r.PendingFrames())
		}
	}
}

// TestConcreteScenario pins the documented example: chunk size 4, frame
// "ABCDEFGHIJ", delivery order 2, 0, 1.
func TestConcreteScenario(t *testing.T) {
	chunks := protocol.Packetize([]byte("ABCDEFGHIJ"), 5, 4)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	r := New(0)
	for _, i := range []int{2, 0} {
		if _, _, ok := r.Feed(protocol.Encode(chunks[i])); ok {
			t.Fatalf("frame completed early after chunk %d", i)
		}
	}

	frame, id, ok := r.Feed(protocol.Encode(chunks[1]))
	if !ok {
		t.Fatal("frame did not complete")
	}
	if id != 5 {
		t.Errorf("frame id = %d, want 5", id)
	}
	if string(frame) != "ABCDEFGHIJ" {
		t.Errorf("frame = %q, want %q", frame, "ABCDEFGHIJ")
	}
}

// TestDuplicateChunkIdempotent feeds the same chunk twice; the duplicate
// must not count toward completion or corrupt the result.
func TestDuplicateChunkIdempotent(t *testing.T) {
	chunks := protocol.Packetize([]byte("ABCDEFGHIJ"), 9, 4)

	r := New(0)
	r.Feed(protocol.Encode(chunks[0]))
	if _, _, ok := r.Feed(protocol.Encode(chunks[0])); ok {
		t.Fatal("duplicate chunk completed a 3-chunk frame")
	}
	r.Feed(protocol.Encode(chunks[1]))

	frame, _, ok := r.Feed(protocol.Encode(chunks[2]))
	if !ok {
		t.Fatal("frame did not complete after all distinct chunks")
	}
	if string(frame) != "ABCDEFGHIJ" {
		t.Errorf("frame = %q, want %q", frame, "ABCDEFGHIJ")
	}
}

// TestStaleFrameSwept feeds all but one chunk, advances time past the
// staleness window, and checks the partial frame is reclaimed.
func TestStaleFrameSwept(t *testing.T) {
	now := time.Unix(100, 0)
	r := New(time.Second)
	r.now = func() time.Time { return now }

	chunks := protocol.Packetize(bytes.Repeat([]byte{0xCC}, 4000), 3, 1400)
	for _, c := range chunks[:len(chunks)-1] {
		if _, _, ok := r.Feed(protocol.Encode(c)); ok {
			t.Fatal("incomplete frame reported complete")
		}
	}
	if r.PendingFrames() != 1 {
		t.Fatalf("PendingFrames = %d, want 1", r.PendingFrames())
	}

	now = now.Add(1500 * time.Millisecond)
	r.Sweep()

	if r.PendingFrames() != 0 {
		t.Errorf("PendingFrames = %d after sweep, want 0", r.PendingFrames())
	}
	if r.Expired != 1 {
		t.Errorf("Expired = %d, want 1", r.Expired)
	}

	// The straggler chunk now starts a fresh (doomed) pending entry rather
	// than completing anything.
	if _, _, ok := r.Feed(protocol.Encode(chunks[len(chunks)-1])); ok {
		t.Error("stale straggler completed a frame")
	}
}

func TestMalformedDatagramCounted(t *testing.T) {
	r := New(0)
	if _, _, ok := r.Feed([]byte{0x01, 0x02}); ok {
		t.Error("short datagram reported a completed frame")
	}
	if r.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", r.Malformed)
	}
}

// TestTotalChunksMismatchRejected guards against a chunk whose header
// disagrees with the pending frame's chunk count faking completeness and
// emitting a short frame.
func TestTotalChunksMismatchRejected(t *testing.T) {
	frame := []byte("ABCDEFGHIJKL")
	chunks := protocol.Packetize(frame, 9, 4) // 3 chunks

	r := New(0)
	r.Feed(protocol.Encode(chunks[0]))

	// Same frame id, but a header claiming the frame has only 2 chunks.
	// Accepting it would bring received to 2 == total and assemble a gap.
	liar := &protocol.Chunk{FrameID: 9, TotalChunks: 2, ChunkID: 1, Payload: []byte("XXXX")}
	if got, _, ok := r.Feed(protocol.Encode(liar)); ok {
		t.Fatalf("mismatched chunk completed a %d-byte frame", len(got))
	}
	if r.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", r.Malformed)
	}

	// The honest remainder still completes the frame intact.
	r.Feed(protocol.Encode(chunks[1]))
	got, _, ok := r.Feed(protocol.Encode(chunks[2]))
	if !ok {
		t.Fatal("frame never completed after the mismatch was rejected")
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("reassembled frame = %q, want %q", got, frame)
	}
}

func TestInterleavedFrames(t *testing.T) {
	a := protocol.Packetize([]byte("first-frame-bytes"), 1, 6)
	b := protocol.Packetize([]byte("second-frame-data"), 2, 6)

	r := New(0)
	order := [][]byte{
		protocol.Encode(a[0]), protocol.Encode(b[2]), protocol.Encode(a[2]),
		protocol.Encode(b[0]), protocol.Encode(a[1]), protocol.Encode(b[1]),
	}

	var completed []uint16
	for _, d := range order {
		if frame, id, ok := r.Feed(d); ok {
			completed = append(completed, id)
			want := "first-frame-bytes"
			if id == 2 {
				want = "second-frame-data"
			}
			if string(frame) != want {
				t.Errorf("frame %d = %q, want %q", id, frame, want)
			}
		}
	}

	if len(completed) != 2 {
		t.Fatalf("completed %v, want both frames", completed)
	}
}

func TestNewer(t *testing.T) {
	testCases := []struct {
		a, b uint16
		want bool
	}{
		{1, 0, true},
		{0, 1, false},
		{100, 100, false},
		{0, 65535, true},     // wraparound: 0 follows 65535
		{65535, 0, false},
		{32768, 0, false},    // exactly half a window away is not newer
		{32767, 0, true},
		{10, 65530, true},    // reorder across the wrap boundary
		{65530, 10, false},
	}

	for _, tc := range testCases {
		if got := Newer(tc.a, tc.b); got != tc.want {
			t.Errorf("Newer(%d, %d) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestGate(t *testing.T) {
	var g Gate

	if !g.Admit(65530) {
		t.Fatal("first frame rejected")
	}
	if g.Admit(65528) {
		t.Error("older frame admitted")
	}
	if g.Admit(65530) {
		t.Error("repeated frame admitted")
	}
	if !g.Admit(2) {
		t.Error("post-wraparound frame rejected")
	}
	if g.Admit(65531) {
		t.Error("pre-wraparound frame admitted after the wrap")
	}
}
