// Package protocol defines the datagram wire format for the vehicle video
// stream: the fixed chunk header, the packetizer, and the ASCII control
// messages exchanged on the same socket.
package protocol

// Wire format constants.
const (
	// HeaderSize is the fixed chunk header size:
	// FrameID(2) + TotalChunks(2) + ChunkID(2) + ChunkLen(2), big-endian.
	HeaderSize = 8

	// DefaultChunkSize keeps a full datagram under the common path MTU
	// (1500) after IP/UDP overhead.
	DefaultChunkSize = 1400

	// MaxDatagramSize is the receive buffer size for one datagram.
	MaxDatagramSize = 2048
)

// Chunk is one MTU-sized fragment of a compressed frame.
type Chunk struct {
	FrameID     uint16 // per-frame counter, wraps modulo 65536
	TotalChunks uint16 // chunk count for this frame
	ChunkID     uint16 // 0-based position, always < TotalChunks
	Payload     []byte // at most the packetizer's chunk size
}
