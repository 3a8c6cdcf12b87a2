package protocol

import (
	"bytes"
	"testing"
)

// TestEncodeDecodeRoundTrip verifies that encoding and decoding are inverse
// operations for chunks of various shapes.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		chunk *Chunk
	}{
		{
			name:  "single-chunk frame",
			chunk: &Chunk{FrameID: 1, TotalChunks: 1, ChunkID: 0, Payload: []byte("hello world")},
		},
		{
			name:  "middle chunk of a large frame",
			chunk: &Chunk{FrameID: 4242, TotalChunks: 40, ChunkID: 17, Payload: bytes.Repeat([]byte{0xAB}, DefaultChunkSize)},
		},
		{
			name:  "last short chunk",
			chunk: &Chunk{FrameID: 65535, TotalChunks: 3, ChunkID: 2, Payload: []byte{0x01}},
		},
		{
			name:  "empty payload",
			chunk: &Chunk{FrameID: 9, TotalChunks: 2, ChunkID: 1, Payload: []byte{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := Decode(Encode(tc.chunk))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if decoded.FrameID != tc.chunk.FrameID {
				t.Errorf("FrameID mismatch: got %d, want %d", decoded.FrameID, tc.chunk.FrameID)
			}
			if decoded.TotalChunks != tc.chunk.TotalChunks {
				t.Errorf("TotalChunks mismatch: got %d, want %d", decoded.TotalChunks, tc.chunk.TotalChunks)
			}
			if decoded.ChunkID != tc.chunk.ChunkID {
				t.Errorf("ChunkID mismatch: got %d, want %d", decoded.ChunkID, tc.chunk.ChunkID)
			}
			if !bytes.Equal(decoded.Payload, tc.chunk.Payload) {
				t.Errorf("Payload mismatch: got %d bytes, want %d bytes", len(decoded.Payload), len(tc.chunk.Payload))
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty datagram", data: nil},
		{name: "shorter than header", data: []byte{0x00, 0x01, 0x00, 0x03, 0x00, 0x00}},
		{name: "declared length exceeds payload", data: []byte{0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x10, 0xFF}},
		{name: "chunk id out of range", data: Encode(&Chunk{FrameID: 1, TotalChunks: 2, ChunkID: 2, Payload: []byte("x")})},
		{name: "zero total chunks", data: []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data); err == nil {
				t.Errorf("Decode accepted malformed datagram %v", tc.data)
			}
		})
	}
}

// TestDecodeTruncatesToDeclaredLength checks that trailing bytes beyond the
// declared chunk length are ignored, since receive buffers are oversized.
func TestDecodeTruncatesToDeclaredLength(t *testing.T) {
	datagram := append(Encode(&Chunk{FrameID: 7, TotalChunks: 1, ChunkID: 0, Payload: []byte("abc")}), 0xDE, 0xAD)

	decoded, err := Decode(datagram)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded.Payload, []byte("abc")) {
		t.Errorf("Payload = %q, want %q", decoded.Payload, "abc")
	}
}

func TestPacketize(t *testing.T) {
	testCases := []struct {
		name      string
		frameLen  int
		chunkSize int
		wantTotal int
	}{
		{name: "empty frame yields no chunks", frameLen: 0, chunkSize: 1400, wantTotal: 0},
		{name: "exact single chunk", frameLen: 1400, chunkSize: 1400, wantTotal: 1},
		{name: "one byte over", frameLen: 1401, chunkSize: 1400, wantTotal: 2},
		{name: "typical jpeg frame", frameLen: 24 * 1024, chunkSize: 1400, wantTotal: 18},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := bytes.Repeat([]byte{0x5A}, tc.frameLen)
			chunks := Packetize(frame, 123, tc.chunkSize)

			if len(chunks) != tc.wantTotal {
				t.Fatalf("got %d chunks, want %d", len(chunks), tc.wantTotal)
			}

			reassembled := 0
			for i, c := range chunks {
				if c.FrameID != 123 {
					t.Errorf("chunk %d FrameID = %d, want 123", i, c.FrameID)
				}
				if int(c.TotalChunks) != tc.wantTotal {
					t.Errorf("chunk %d TotalChunks = %d, want %d", i, c.TotalChunks, tc.wantTotal)
				}
				if int(c.ChunkID) != i {
					t.Errorf("chunk %d ChunkID = %d", i, c.ChunkID)
				}
				reassembled += len(c.Payload)
			}
			if reassembled != tc.frameLen {
				t.Errorf("payloads sum to %d bytes, want %d", reassembled, tc.frameLen)
			}
		})
	}
}

// TestPacketizeConcrete pins the documented example: 10 bytes at chunk size
// 4 split as 4, 4, 2.
func TestPacketizeConcrete(t *testing.T) {
	chunks := Packetize([]byte("ABCDEFGHIJ"), 1, 4)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	want := []string{"ABCD", "EFGH", "IJ"}
	for i, w := range want {
		if string(chunks[i].Payload) != w {
			t.Errorf("chunk %d payload = %q, want %q", i, chunks[i].Payload, w)
		}
	}
}

func TestParseControl(t *testing.T) {
	for _, msg := range []ControlMessage{
		ControlConnect, ControlConnected, ControlDisconnect,
		ControlPing, ControlPong, ControlStreamEnd,
	} {
		got, ok := ParseControl(msg.Bytes())
		if !ok || got != msg {
			t.Errorf("ParseControl(%q) = (%v, %v), want (%v, true)", msg.Bytes(), got, ok, msg)
		}
	}

	for _, data := range [][]byte{
		nil,
		[]byte("connect"),
		[]byte("CONNECTX"),
		Encode(&Chunk{FrameID: 1, TotalChunks: 1, ChunkID: 0, Payload: []byte("jpeg")}),
	} {
		if _, ok := ParseControl(data); ok {
			t.Errorf("ParseControl(%q) accepted a non-control payload", data)
		}
	}
}
