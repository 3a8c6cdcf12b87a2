package bridge

import (
	"encoding/base64"
	"time"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/uplink"
)

// Envelope is the self-describing message sent to the downstream viewer.
// One message per event; frames carry their payload as a data URL so a
// browser can assign it straight to an image source.
type Envelope struct {
	Type      string  `json:"type"` // "video_frame" | "connection" | "pong"
	Status    string  `json:"status,omitempty"`
	Message   string  `json:"message,omitempty"`
	Data      string  `json:"data,omitempty"`
	FrameID   uint16  `json:"frame_id,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// Inbound is the only message shape the downstream viewer sends.
type Inbound struct {
	Type string `json:"type"`
}

const dataURLPrefix = "data:image/jpeg;base64,"

// Connection status values.
const (
	StatusConnected = "connected"
	StatusClosing   = "closing"
	StatusReplaced  = "replaced"
)

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FrameEnvelope wraps one reassembled frame.
func FrameEnvelope(f uplink.Frame) Envelope {
	return Envelope{
		Type:      "video_frame",
		Data:      dataURLPrefix + base64.StdEncoding.EncodeToString(f.Data),
		FrameID:   f.ID,
		Timestamp: unixSeconds(f.ReceivedAt),
	}
}

// ConnectionEnvelope announces a session state change.
func ConnectionEnvelope(status, message string) Envelope {
	return Envelope{Type: "connection", Status: status, Message: message}
}

// PongEnvelope answers an application-level ping.
func PongEnvelope() Envelope {
	return Envelope{Type: "pong", Timestamp: unixSeconds(time.Now())}
}
