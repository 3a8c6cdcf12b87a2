// Package rtc provides the optional WebRTC delivery path for the bridge:
// the downstream viewer negotiates over the bridge's WebSocket endpoint and
// then receives frame envelopes over an unordered data channel, trading the
// TCP-backed WebSocket for lower latency on lossy links.
package rtc

import (
	"github.com/pion/webrtc/v4"
)

// STUN servers for ICE candidate gathering. No TURN — the bridge and its
// viewer are expected to share a network or have direct reachability.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// NewPeerConnection creates a PeerConnection configured with Google STUN servers.
func NewPeerConnection() (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
	return webrtc.NewPeerConnection(config)
}

// NewVideoChannel creates the unordered data channel that carries frame
// envelopes. Unordered by design: every envelope is a complete frame, so
// ordering at the SCTP layer would only add head-of-line blocking; the
// frame ids already exist for the viewer to discard regressions.
func NewVideoChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := false
	return pc.CreateDataChannel("video", &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
}
