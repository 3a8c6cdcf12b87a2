package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/rtc"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
)

// rtcPeer delivers envelopes over a WebRTC data channel instead of the
// WebSocket. Same single-viewer contract as wsPeer; congestion drops frames
// at the high-water mark rather than queuing stale pictures.
type rtcPeer struct {
	pc        *webrtc.PeerConnection
	ch        *rtc.Channel
	done      chan struct{}
	closeOnce sync.Once
}

func newRTCPeer(pc *webrtc.PeerConnection, ch *rtc.Channel) *rtcPeer {
	p := &rtcPeer{pc: pc, ch: ch, done: make(chan struct{})}
	ch.OnClose(p.shutdown)
	return p
}

func (p *rtcPeer) sendFrame(env Envelope) {
	err := p.ch.TrySend(env)
	switch {
	case err == nil:
		util.Stats.AddFrameSent()
		util.Stats.AddSent(len(env.Data))
	case errors.Is(err, rtc.ErrBackpressure):
		util.Stats.AddFrameDrop()
	default:
		util.LogDebug("data channel send failed: %v", err)
		p.shutdown()
	}
}

func (p *rtcPeer) sendControl(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.ch.Send(ctx, env); err != nil {
		util.LogDebug("data channel control send failed: %v", err)
	}
}

func (p *rtcPeer) evict(status, reason string) {
	p.sendControl(ConnectionEnvelope(status, reason))
	time.AfterFunc(250*time.Millisecond, p.shutdown)
}

func (p *rtcPeer) gone() <-chan struct{} {
	return p.done
}

func (p *rtcPeer) shutdown() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.ch.Close()
		p.pc.Close()
	})
}
