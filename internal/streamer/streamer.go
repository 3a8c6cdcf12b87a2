// Package streamer implements the vehicle-side UDP video server: a control
// plane that manages viewer sessions and a broadcast loop that packetizes
// each captured frame and unicasts the chunks to every registered peer.
//
// Both loops share one datagram socket. Concurrent send and receive from
// different goroutines on a UDP socket is safe on the platforms this runs
// on; the loops never share any other state except the session registry.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/config"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/protocol"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/session"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
)

// Tuning constants, matched to the link the vehicle actually runs on.
const (
	readTimeout    = time.Second      // control-loop re-check interval
	pacingEvery    = 5                // sleep after every N chunks…
	pacingSleep    = 100 * time.Microsecond // …for this long…
	pacingMinTotal = 10               // …but only for frames larger than this
	idleSleep      = 10 * time.Millisecond  // no viewers registered
	rateSleep      = time.Millisecond // waiting out the frame interval
	sendBufferSize = 1024 * 1024      // kernel send buffer, absorbs chunk bursts
)

// Streamer owns the UDP socket and the session registry.
type Streamer struct {
	cfg      config.StreamConfig
	source   FrameSource
	conn     *net.UDPConn
	registry *session.Registry

	lastFrameID uint16
	started     time.Time

	// Injectable for tests; defaults to conn.WriteToUDP.
	writeTo func(b []byte, addr *net.UDPAddr) (int, error)
}

// New binds the UDP socket and returns a Streamer ready to Run.
func New(cfg config.StreamConfig, source FrameSource) (*Streamer, error) {
	laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("resolve listen address: %w", err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("bind udp socket: %w", err)
	}
	if err := conn.SetWriteBuffer(sendBufferSize); err != nil {
		util.LogWarning("failed to grow send buffer: %v", err)
	}

	// Only config.Load validates; a zero-value StreamConfig built in code
	// must not divide the frame interval by zero.
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = 60
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = protocol.DefaultChunkSize
	}

	s := &Streamer{
		cfg:      cfg,
		source:   source,
		conn:     conn,
		registry: session.NewRegistry(),
	}
	s.writeTo = conn.WriteToUDP
	return s, nil
}

// Addr returns the bound socket address.
func (s *Streamer) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Run drives both loops until ctx is cancelled, then notifies every session
// with STREAM_END and closes the socket.
func (s *Streamer) Run(ctx context.Context) error {
	s.started = time.Now()
	util.LogInfo("udp streamer listening on %s (max %d fps, chunk %d)", s.Addr(), s.cfg.MaxFPS, s.cfg.ChunkSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.controlLoop(ctx) })
	g.Go(func() error { return s.broadcastLoop(ctx) })
	err := g.Wait()

	s.shutdown()
	return err
}

// ---------------------------------------------------------------------------
// Control plane
// ---------------------------------------------------------------------------

// controlLoop receives datagrams and dispatches the control messages that
// share the video socket. The read deadline doubles as the tick for idle
// session eviction. Video chunks never arrive here in practice; anything
// that parses as neither control nor activity refresh is ignored.
func (s *Streamer) controlLoop(ctx context.Context) error {
	buf := make([]byte, protocol.MaxDatagramSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				s.evictIdle()
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				util.LogWarning("control read error: %v", err)
				continue
			}
		}

		msg, ok := protocol.ParseControl(buf[:n])
		if !ok {
			// Any datagram from a registered peer counts as activity.
			s.registry.Touch(addr)
			continue
		}

		switch msg {
		case protocol.ControlConnect:
			s.registry.Add(addr)
			util.Stats.AddSession()
			if _, err := s.writeTo(protocol.ControlConnected.Bytes(), addr); err != nil {
				util.LogWarning("failed to ack %s: %v", addr, err)
			}
			util.LogInfo("viewer connected: %s (%d total)", addr, s.registry.Count())

		case protocol.ControlDisconnect:
			if s.registry.Remove(addr) {
				util.Stats.RemoveSession()
				util.LogInfo("viewer disconnected: %s (%d left)", addr, s.registry.Count())
			}

		case protocol.ControlPing:
			s.registry.Touch(addr)
			if _, err := s.writeTo(protocol.ControlPong.Bytes(), addr); err != nil {
				util.LogDebug("failed to pong %s: %v", addr, err)
			}

		default:
			// CONNECTED / PONG / STREAM_END are server-to-client only.
		}
	}
}

func (s *Streamer) evictIdle() {
	for _, addr := range s.registry.Expire(s.cfg.SessionTimeout) {
		util.Stats.RemoveSession()
		util.LogInfo("viewer timed out: %s (%d left)", addr, s.registry.Count())
	}
}

// ---------------------------------------------------------------------------
// Broadcast loop
// ---------------------------------------------------------------------------

// broadcastLoop captures, packetizes and fans out frames at the configured
// rate. No retransmission and no acknowledgment: a lost chunk dooms that
// one frame, and the next frame recovers the picture within one interval.
func (s *Streamer) broadcastLoop(ctx context.Context) error {
	frameInterval := time.Second / time.Duration(s.cfg.MaxFPS)
	var lastFrame time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := time.Now()
		if now.Sub(lastFrame) < frameInterval {
			time.Sleep(rateSleep)
			continue
		}

		if s.registry.Count() == 0 {
			time.Sleep(idleSleep)
			continue
		}

		frame, err := s.source.Capture(ctx)
		if err != nil {
			util.LogWarning("frame capture failed: %v", err)
			time.Sleep(idleSleep)
			continue
		}
		if len(frame) == 0 {
			continue
		}

		s.broadcast(frame)
		lastFrame = now
	}
}

// broadcast packetizes one frame and unicasts every chunk to every peer in
// the current snapshot. A failed send evicts that one peer and never stalls
// the rest of the fan-out.
func (s *Streamer) broadcast(frame []byte) {
	s.lastFrameID++
	chunks := protocol.Packetize(frame, s.lastFrameID, s.cfg.ChunkSize)

	for _, addr := range s.registry.Snapshot() {
		if err := s.sendFrame(chunks, addr); err != nil {
			util.LogWarning("send to %s failed, dropping viewer: %v", addr, err)
			if s.registry.Remove(addr) {
				util.Stats.RemoveSession()
			}
		}
	}

	util.Stats.AddFrameSent()
}

// sendFrame writes one frame's chunks to a single peer in chunk-id order,
// pausing briefly every few chunks on large frames so the burst does not
// overrun the local network stack.
func (s *Streamer) sendFrame(chunks []*protocol.Chunk, addr *net.UDPAddr) error {
	for i, c := range chunks {
		data := protocol.Encode(c)
		if _, err := s.writeTo(data, addr); err != nil {
			return err
		}
		util.Stats.AddSent(len(data))

		if len(chunks) > pacingMinTotal && i%pacingEvery == 0 {
			time.Sleep(pacingSleep)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

// shutdown notifies every current session, clears the registry and closes
// the socket. Failed notifications are ignored; the peers will time out.
func (s *Streamer) shutdown() {
	for _, addr := range s.registry.Clear() {
		s.writeTo(protocol.ControlStreamEnd.Bytes(), addr)
	}
	s.conn.Close()
	util.LogInfo("udp streamer stopped — %s", util.Summary(s.started))
}
