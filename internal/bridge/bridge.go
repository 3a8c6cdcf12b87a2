// Package bridge forwards the UDP video stream into a browser-friendly
// transport. Upstream it behaves exactly like a viewer (CONNECT handshake,
// PING keep-alives, reassembly); downstream it runs a WebSocket server that
// serves at most one peer at a time, delivering each completed frame as a
// self-describing JSON envelope — either over the WebSocket itself or, in
// RTC mode, over a negotiated WebRTC data channel.
//
// The UDP receive loop and the downstream writer never share state
// directly: completed frames cross the goroutine boundary through the
// uplink's hand-off channel, and the frame buffers themselves are immutable
// once reassembled.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/config"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/rtc"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/uplink"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Bridge is the UDP → WebSocket/WebRTC translator.
type Bridge struct {
	cfg  config.BridgeConfig
	ucfg uplink.Config

	mu   sync.Mutex
	peer downstream // at most one, by policy
}

// New creates a bridge from its configuration.
func New(cfg config.BridgeConfig) *Bridge {
	return &Bridge{
		cfg: cfg,
		ucfg: uplink.Config{
			Host:       cfg.UDPHost,
			Port:       cfg.UDPPort,
			StaleAfter: cfg.StaleAfter,
		},
	}
}

// Run starts the downstream server and keeps the upstream link alive until
// ctx is cancelled or the stream ends. The downstream peer, if any, is told
// the stream is closing before teardown.
func (b *Bridge) Run(ctx context.Context) error {
	started := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWS)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", b.cfg.WSPort),
		Handler: mux,
	}

	mode := "websocket"
	if b.cfg.RTC {
		mode = "webrtc"
	}
	util.LogInfo("bridge serving ws://0.0.0.0:%d/ws (%s delivery)", b.cfg.WSPort, mode)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.serveUpstream(ctx) })

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("downstream server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	b.dropPeer(StatusClosing, "Stream ending")

	util.LogInfo("bridge stopped — %s", util.Summary(started))

	if errors.Is(err, uplink.ErrStreamEnded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveUpstream keeps one uplink connected, forwarding its frames
// downstream. A silently lost link (repeated timeouts) triggers a
// reconnect while the downstream server and its peer stay up; only an
// unreachable streamer or an explicit end of stream ends the loop.
func (b *Bridge) serveUpstream(ctx context.Context) error {
	for {
		u, err := uplink.Dial(ctx, b.ucfg)
		if err != nil {
			return fmt.Errorf("bridge uplink: %w", err)
		}

		done := make(chan error, 1)
		go func() { done <- u.Run(ctx) }()
		b.forward(u.Frames())
		err = <-done

		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, uplink.ErrStreamEnded):
			return err
		default:
			util.LogWarning("uplink lost (%v), reconnecting", err)
		}
	}
}

// forward drains completed frames into whatever peer is current. With no
// peer the frame simply falls on the floor, like a broadcast with no
// listeners. Returns when the uplink closes its channel.
func (b *Bridge) forward(frames <-chan uplink.Frame) {
	for f := range frames {
		b.mu.Lock()
		peer := b.peer
		b.mu.Unlock()

		if peer == nil {
			continue
		}
		peer.sendFrame(FrameEnvelope(f))
	}
}

// ---------------------------------------------------------------------------
// Downstream connection handling
// ---------------------------------------------------------------------------

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	util.LogInfo("downstream viewer connected: %s", conn.RemoteAddr())

	if b.cfg.RTC {
		b.handleRTC(r.Context(), conn)
		return
	}

	p := newWSPeer(conn, b.cfg.PingInterval)

	// Queue the ack before publishing the peer, so the outbox delivers it
	// ahead of any frame forward picks up.
	p.sendControl(ConnectionEnvelope(StatusConnected, "UDP video stream connected"))
	b.adopt(p)

	// Blocks for the lifetime of the connection.
	p.readLoop(b.cfg.PongTimeout)

	b.release(p)
	util.LogInfo("downstream viewer disconnected: %s", conn.RemoteAddr())
}

// handleRTC uses the WebSocket only for SDP/ICE signaling, then serves the
// viewer over the data channel and closes the WebSocket.
func (b *Bridge) handleRTC(ctx context.Context, wsConn *websocket.Conn) {
	defer wsConn.Close()

	pc, err := rtc.NewPeerConnection()
	if err != nil {
		util.LogError("failed to create peer connection: %v", err)
		return
	}

	dc, err := rtc.NewVideoChannel(pc)
	if err != nil {
		util.LogError("failed to create video channel: %v", err)
		pc.Close()
		return
	}

	ch := rtc.NewChannel(dc)
	ready := make(chan struct{})
	var openOnce sync.Once
	ch.OnOpen(func() { openOnce.Do(func() { close(ready) }) })

	if err := rtc.Answer(ctx, wsConn, pc, ready); err != nil {
		util.LogWarning("webrtc negotiation failed: %v", err)
		pc.Close()
		return
	}

	p := newRTCPeer(pc, ch)

	// Ack before publishing, same ordering as the WebSocket path.
	p.sendControl(ConnectionEnvelope(StatusConnected, "UDP video stream connected"))
	b.adopt(p)

	<-p.gone()
	b.release(p)
	util.LogInfo("webrtc viewer disconnected")
}

// adopt installs a new downstream peer. If one is already being served it
// is evicted first — closing announcement, then close — so the old viewer
// is never subscribed at the same time as the new one. Transport
// translation serves one screen; multiplexing belongs a layer up.
func (b *Bridge) adopt(p downstream) {
	b.mu.Lock()
	old := b.peer
	b.peer = nil
	b.mu.Unlock()

	if old != nil {
		util.LogInfo("evicting previous downstream viewer")
		old.evict(StatusReplaced, "another viewer connected")
	}

	b.mu.Lock()
	b.peer = p
	b.mu.Unlock()
}

// release clears the current peer if it is still p.
func (b *Bridge) release(p downstream) {
	b.mu.Lock()
	if b.peer == p {
		b.peer = nil
	}
	b.mu.Unlock()
}

// dropPeer evicts whatever peer is current, announcing the given status.
func (b *Bridge) dropPeer(status, reason string) {
	b.mu.Lock()
	p := b.peer
	b.peer = nil
	b.mu.Unlock()

	if p != nil {
		p.evict(status, reason)
		// Give the writer a beat to flush the announcement.
		time.Sleep(300 * time.Millisecond)
	}
}
