// Package viewer is the reference stream consumer: it pairs an uplink with
// a display sink and keeps running statistics. It doubles as the protocol
// verification tool and as the template for writing other integrators.
package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/config"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/uplink"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/util"
)

// Viewer consumes the video stream through a Sink.
type Viewer struct {
	cfg  config.ViewConfig
	sink Sink
}

// New creates a viewer. The sink is owned by the viewer and closed when
// Run returns.
func New(cfg config.ViewConfig, sink Sink) *Viewer {
	return &Viewer{cfg: cfg, sink: sink}
}

// Run connects to the streamer and consumes frames until ctx is cancelled
// or the server ends the stream. A silently lost link (repeated timeouts)
// triggers a reconnect; only an unreachable streamer ends the run with an
// error.
func (v *Viewer) Run(ctx context.Context) error {
	defer v.sink.Close()
	started := time.Now()
	defer func() { util.LogInfo("viewer stopped — %s", util.Summary(started)) }()

	for {
		u, err := uplink.Dial(ctx, uplink.Config{
			Host:       v.cfg.Host,
			Port:       v.cfg.Port,
			StaleAfter: v.cfg.StaleAfter,
		})
		if err != nil {
			return err
		}

		err = v.consume(ctx, u)
		completed, expired, malformed := u.Stats()
		util.LogDebug("uplink closed: %d complete, %d expired, %d malformed", completed, expired, malformed)

		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, uplink.ErrStreamEnded):
			return nil
		default:
			util.LogWarning("uplink lost (%v), reconnecting", err)
		}
	}
}

// consume drains the hand-off channel into the sink while the uplink's
// receive loop runs. It returns whatever ended the uplink.
func (v *Viewer) consume(ctx context.Context, u *uplink.Uplink) error {
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()

	var windowFrames int
	windowStart := time.Now()

	for f := range u.Frames() {
		if err := v.sink.Display(f); err != nil {
			util.LogWarning("sink rejected frame %d: %v", f.ID, err)
			continue
		}

		windowFrames++
		if elapsed := time.Since(windowStart); elapsed >= time.Second {
			util.LogDebug("rendering at %.1f fps", float64(windowFrames)/elapsed.Seconds())
			windowFrames = 0
			windowStart = time.Now()
		}
	}

	return <-done
}
