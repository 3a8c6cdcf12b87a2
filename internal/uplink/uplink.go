// Package uplink implements the client side of the video transport: the
// CONNECT handshake, the receive loop with keep-alives, reassembly, the
// monotonicity gate, and the hand-off of completed frames to a consumer
// goroutine. Both the reference viewer and the bridge are built on it.
package uplink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/protocol"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/reassembly"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
)

// ErrStreamEnded reports that the streamer announced STREAM_END.
var ErrStreamEnded = errors.New("uplink: stream ended by server")

// Frame is one reassembled video frame. Data is immutable once delivered
// and may be shared by reference across goroutines.
type Frame struct {
	ID         uint16
	Data       []byte
	ReceivedAt time.Time
}

// Config tunes an uplink. Zero values take the defaults below.
type Config struct {
	Host             string
	Port             int
	StaleAfter       time.Duration // partial-frame retention
	HandshakeTimeout time.Duration // per-attempt CONNECT→CONNECTED wait
	Attempts         int           // handshake attempts before giving up
	ReadTimeout      time.Duration // receive timeout; each expiry sends PING
	SilenceLimit     int           // consecutive timeouts before declaring the link dead
	Buffer           int           // hand-off channel capacity
}

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultAttempts         = 5
	defaultReadTimeout      = time.Second
	defaultSilenceLimit     = 15
	defaultBuffer           = 8
	backoffCap              = 10 * time.Second
)

func (c *Config) fill() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.Attempts <= 0 {
		c.Attempts = defaultAttempts
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.SilenceLimit <= 0 {
		c.SilenceLimit = defaultSilenceLimit
	}
	if c.Buffer <= 0 {
		c.Buffer = defaultBuffer
	}
}

// Uplink is one connected subscription to the streamer.
type Uplink struct {
	cfg    Config
	conn   *net.UDPConn
	reasm  *reassembly.Reassembler
	gate   reassembly.Gate
	frames chan Frame
}

// Dial connects to the streamer and performs the CONNECT handshake,
// retrying with exponential backoff. The socket is a connected UDP socket,
// so ICMP unreachable errors surface on reads instead of vanishing.
func Dial(ctx context.Context, cfg Config) (*Uplink, error) {
	cfg.fill()

	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("resolve streamer address: %w", err)
	}

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		conn, err := net.DialUDP("udp", nil, raddr)
		if err != nil {
			return nil, fmt.Errorf("dial streamer: %w", err)
		}

		if err := handshake(conn, cfg.HandshakeTimeout); err == nil {
			util.LogInfo("connected to streamer at %s", raddr)
			return &Uplink{
				cfg:    cfg,
				conn:   conn,
				reasm:  reassembly.New(cfg.StaleAfter),
				frames: make(chan Frame, cfg.Buffer),
			}, nil
		} else {
			lastErr = err
			conn.Close()
		}

		util.LogWarning("handshake attempt %d/%d failed: %v", attempt, cfg.Attempts, lastErr)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff = min(backoff*2, backoffCap)
	}

	return nil, fmt.Errorf("streamer unreachable after %d attempts: %w", cfg.Attempts, lastErr)
}

// handshake sends CONNECT and waits for CONNECTED. Video chunks racing
// ahead of the ack are skipped rather than failing the attempt.
func handshake(conn *net.UDPConn, timeout time.Duration) error {
	if _, err := conn.Write(protocol.ControlConnect.Bytes()); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}

	buf := make([]byte, protocol.MaxDatagramSize)
	deadline := time.Now().Add(timeout)
	for {
		conn.SetReadDeadline(deadline)
		n, err := conn.Read(buf)
		if err != nil {
			return fmt.Errorf("await CONNECTED: %w", err)
		}
		if msg, ok := protocol.ParseControl(buf[:n]); ok {
			if msg == protocol.ControlConnected {
				return nil
			}
			return fmt.Errorf("unexpected handshake reply %s", msg)
		}
	}
}

// Frames returns the hand-off channel. It is closed when Run returns, which
// is the only signal a consumer needs.
func (u *Uplink) Frames() <-chan Frame {
	return u.frames
}

// Run drives the receive loop until ctx is cancelled, the server announces
// STREAM_END, or the link goes silent past the limit. On every read timeout
// it sends PING, which keeps NAT mappings alive and detects silent server
// loss. Always sends DISCONNECT and closes the socket on the way out.
func (u *Uplink) Run(ctx context.Context) error {
	defer func() {
		u.conn.Write(protocol.ControlDisconnect.Bytes())
		u.conn.Close()
		close(u.frames)
	}()

	buf := make([]byte, protocol.MaxDatagramSize)
	silent := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		u.conn.SetReadDeadline(time.Now().Add(u.cfg.ReadTimeout))
		n, err := u.conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				silent++
				if silent >= u.cfg.SilenceLimit {
					return fmt.Errorf("uplink silent for %v", time.Duration(silent)*u.cfg.ReadTimeout)
				}
				u.conn.Write(protocol.ControlPing.Bytes())
				u.reasm.Sweep()
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("uplink read: %w", err)
			}
		}
		silent = 0

		if msg, ok := protocol.ParseControl(buf[:n]); ok {
			switch msg {
			case protocol.ControlStreamEnd:
				util.LogInfo("streamer announced end of stream")
				return ErrStreamEnded
			case protocol.ControlPong:
				// Keep-alive answered; nothing to do.
			}
			continue
		}

		util.Stats.AddRecv(n)

		frame, id, ok := u.reasm.Feed(buf[:n])
		if !ok {
			continue
		}
		if !u.gate.Admit(id) {
			util.Stats.AddFrameDrop()
			continue
		}

		util.Stats.AddFrameRecv()
		u.deliver(Frame{ID: id, Data: frame, ReceivedAt: time.Now()})
	}
}

// deliver hands a frame to the consumer without ever blocking the receive
// loop. When the channel is full the oldest queued frame is discarded:
// for live video the newest picture always wins.
func (u *Uplink) deliver(f Frame) {
	for {
		select {
		case u.frames <- f:
			return
		default:
		}

		select {
		case <-u.frames:
			util.Stats.AddFrameDrop()
		default:
		}
	}
}

// Stats exposes the reassembler's diagnostic counters. The counters belong
// to the receive loop; read them only after Run has returned.
func (u *Uplink) Stats() (completed, expired, malformed uint64) {
	return u.reasm.Completed, u.reasm.Expired, u.reasm.Malformed
}
