package rtc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
)

const (
	highWaterMark = 256 * 1024 // stop queuing frames when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume once it drains below this
)

// ErrBackpressure reports that a frame was not queued because the channel
// buffer is above the high-water mark. For live video that is a drop, not
// a failure.
var ErrBackpressure = errors.New("rtc: data channel above high-water mark")

// Channel wraps a pion DataChannel with JSON envelope encoding and
// watermark-based backpressure.
type Channel struct {
	raw       *webrtc.DataChannel
	sendReady chan struct{}
}

// NewChannel wraps raw and wires the backpressure callback.
func NewChannel(raw *webrtc.DataChannel) *Channel {
	ch := &Channel{
		raw:       raw,
		sendReady: make(chan struct{}, 1),
	}

	raw.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case ch.sendReady <- struct{}{}:
		default:
		}
	})

	return ch
}

// TrySend marshals v and queues it unless the channel is congested, in
// which case it returns ErrBackpressure immediately. Used for frames.
func (c *Channel) TrySend(v any) error {
	if c.raw.BufferedAmount() > uint64(highWaterMark) {
		return ErrBackpressure
	}
	return c.sendJSON(v)
}

// Send marshals v and queues it, waiting out backpressure until ctx
// expires. Used for control envelopes that must not be dropped.
func (c *Channel) Send(ctx context.Context, v any) error {
	if c.raw.BufferedAmount() > uint64(highWaterMark) {
		select {
		case <-c.sendReady:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.sendJSON(v)
}

func (c *Channel) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.raw.Send(data)
}

// OnOpen / OnClose / Close proxy the underlying channel.
func (c *Channel) OnOpen(fn func())  { c.raw.OnOpen(fn) }
func (c *Channel) OnClose(fn func()) { c.raw.OnClose(fn) }
func (c *Channel) Close() error      { return c.raw.Close() }
