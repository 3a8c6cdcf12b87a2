package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
)

// messageType identifies the kind of signaling message.
type messageType string

const (
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket during signaling.
type message struct {
	Type      messageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}

// Answer performs the answering side of the SDP/ICE exchange over wsConn:
// the viewer sends an offer, the bridge answers, candidates trickle both
// ways, and the call returns once ready is closed (the data channel opened)
// or the exchange fails. The WebSocket is only used for signaling; the
// caller closes it afterwards.
func Answer(ctx context.Context, wsConn *websocket.Conn, pc *webrtc.PeerConnection, ready <-chan struct{}) error {
	var wsMu sync.Mutex
	wsSend := func(msg message) {
		wsMu.Lock()
		defer wsMu.Unlock()
		if err := wsConn.WriteJSON(msg); err != nil {
			// If the WS closed because ready already fired, that's fine.
			select {
			case <-ready:
			default:
				util.LogDebug("signaling send failed: %v", err)
			}
		}
	}

	// Trickle ICE candidates.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, _ := json.Marshal(c.ToJSON())
		wsSend(message{Type: msgTypeCandidate, Candidate: string(data)})
	})

	// Read loop: offer + ICE candidates.
	errCh := make(chan error, 1)
	go func() {
		for {
			var msg message
			if err := wsConn.ReadJSON(&msg); err != nil {
				errCh <- err
				return
			}
			switch msg.Type {
			case msgTypeOffer:
				if err := pc.SetRemoteDescription(webrtc.SessionDescription{
					Type: webrtc.SDPTypeOffer,
					SDP:  msg.SDP,
				}); err != nil {
					util.LogWarning("SetRemoteDescription failed: %v", err)
					continue
				}
				answer, err := pc.CreateAnswer(nil)
				if err != nil {
					util.LogWarning("CreateAnswer failed: %v", err)
					continue
				}
				if err := pc.SetLocalDescription(answer); err != nil {
					util.LogWarning("SetLocalDescription failed: %v", err)
					continue
				}
				wsSend(message{Type: msgTypeAnswer, SDP: answer.SDP})

			case msgTypeCandidate:
				var init webrtc.ICECandidateInit
				if err := json.Unmarshal([]byte(msg.Candidate), &init); err == nil {
					if err := pc.AddICECandidate(init); err != nil {
						util.LogWarning("AddICECandidate failed: %v", err)
					}
				}
			}
		}
	}()

	select {
	case <-ready:
		return nil
	case err := <-errCh:
		select {
		case <-ready:
			return nil
		default:
			return fmt.Errorf("signaling exchange: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
