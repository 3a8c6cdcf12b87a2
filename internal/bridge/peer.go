package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
)

// downstream is the single viewer the bridge serves, regardless of whether
// frames travel over the WebSocket itself or a negotiated data channel.
type downstream interface {
	// sendFrame delivers a frame envelope. It never blocks the caller; a
	// congested peer loses frames, not time.
	sendFrame(env Envelope)
	// sendControl delivers a connection/pong envelope, best effort.
	sendControl(env Envelope)
	// evict closes the peer after announcing the reason.
	evict(status, reason string)
	// gone is closed once the peer is unusable.
	gone() <-chan struct{}
}

const (
	outboxSize   = 16
	writeTimeout = 10 * time.Second
)

// wsPeer delivers envelopes over the WebSocket through a single writer
// goroutine, so envelope writes and keep-alive pings never interleave.
type wsPeer struct {
	conn      *websocket.Conn
	outbox    chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newWSPeer(conn *websocket.Conn, pingInterval time.Duration) *wsPeer {
	p := &wsPeer{
		conn:   conn,
		outbox: make(chan Envelope, outboxSize),
		done:   make(chan struct{}),
	}
	go p.writeLoop(pingInterval)
	return p
}

// writeLoop is the only goroutine that writes to the connection.
func (p *wsPeer) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-p.outbox:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteJSON(env); err != nil {
				util.LogDebug("downstream write failed: %v", err)
				p.shutdown()
				return
			}
			if env.Type == "video_frame" {
				util.Stats.AddFrameSent()
				util.Stats.AddSent(len(env.Data))
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.shutdown()
				return
			}

		case <-p.done:
			return
		}
	}
}

func (p *wsPeer) sendFrame(env Envelope) {
	for {
		select {
		case p.outbox <- env:
			return
		case <-p.done:
			return
		default:
		}

		// Full outbox: discard the oldest entry, the newest picture wins.
		select {
		case <-p.outbox:
			util.Stats.AddFrameDrop()
		default:
		}
	}
}

func (p *wsPeer) sendControl(env Envelope) {
	select {
	case p.outbox <- env:
	case <-p.done:
	case <-time.After(writeTimeout):
		util.LogDebug("downstream control send timed out")
	}
}

func (p *wsPeer) evict(status, reason string) {
	p.sendControl(ConnectionEnvelope(status, reason))

	// Give the writer a moment to flush the announcement, then close.
	time.AfterFunc(250*time.Millisecond, func() {
		p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(time.Second))
		p.shutdown()
	})
}

func (p *wsPeer) gone() <-chan struct{} {
	return p.done
}

// shutdown closes the connection exactly once, from whichever side noticed
// first.
func (p *wsPeer) shutdown() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// readLoop consumes inbound messages: application-level pings and the
// WS-native pong that refreshes the liveness deadline. Returns when the
// peer disconnects.
func (p *wsPeer) readLoop(pongTimeout time.Duration) {
	p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			p.shutdown()
			return
		}
		p.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		var msg Inbound
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			p.sendControl(PongEnvelope())
		}
	}
}
