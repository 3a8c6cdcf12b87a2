package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a Chunk into a single datagram payload.
func Encode(c *Chunk) []byte {
	buf := make([]byte, HeaderSize+len(c.Payload))
	binary.BigEndian.PutUint16(buf[0:2], c.FrameID)
	binary.BigEndian.PutUint16(buf[2:4], c.TotalChunks)
	binary.BigEndian.PutUint16(buf[4:6], c.ChunkID)
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(c.Payload)))
	copy(buf[HeaderSize:], c.Payload)
	return buf
}

// Decode parses a datagram into a Chunk. It rejects datagrams that are too
// short to hold the header, that declare more payload than they carry, or
// whose chunk id is out of range — all three are treated as malformed and
// dropped by callers.
func Decode(data []byte) (*Chunk, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("datagram too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}

	c := &Chunk{
		FrameID:     binary.BigEndian.Uint16(data[0:2]),
		TotalChunks: binary.BigEndian.Uint16(data[2:4]),
		ChunkID:     binary.BigEndian.Uint16(data[4:6]),
	}

	chunkLen := int(binary.BigEndian.Uint16(data[6:8]))
	if chunkLen > len(data)-HeaderSize {
		return nil, fmt.Errorf("declared chunk length %d exceeds payload %d", chunkLen, len(data)-HeaderSize)
	}
	if c.TotalChunks == 0 || c.ChunkID >= c.TotalChunks {
		return nil, fmt.Errorf("chunk id %d out of range (total %d)", c.ChunkID, c.TotalChunks)
	}

	c.Payload = make([]byte, chunkLen)
	copy(c.Payload, data[HeaderSize:HeaderSize+chunkLen])
	return c, nil
}

// Packetize slices one compressed frame into an ordered chunk sequence.
// An empty frame yields no chunks; the caller skips the broadcast tick.
// Pure computation, no I/O.
func Packetize(frame []byte, frameID uint16, chunkSize int) []*Chunk {
	if len(frame) == 0 || chunkSize <= 0 {
		return nil
	}

	total := (len(frame) + chunkSize - 1) / chunkSize
	chunks := make([]*Chunk, 0, total)

	for id := 0; id < total; id++ {
		start := id * chunkSize
		end := min(start+chunkSize, len(frame))

		chunks = append(chunks, &Chunk{
			FrameID:     frameID,
			TotalChunks: uint16(total),
			ChunkID:     uint16(id),
			Payload:     frame[start:end],
		})
	}

	return chunks
}
