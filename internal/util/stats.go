package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide stream counter. Whichever role the process runs
// (streamer, viewer, bridge), the same counters apply: frames and bytes in
// each direction plus session churn.
var Stats = &stats{}

type stats struct {
	FramesSent    atomic.Int64 // complete frames broadcast or forwarded downstream
	FramesRecv    atomic.Int64 // complete frames reassembled from the uplink
	FramesDropped atomic.Int64 // frames lost to staleness, the gate, or hand-off overflow
	BytesSent     atomic.Int64 // cumulative bytes written to the socket
	BytesRecv     atomic.Int64 // cumulative bytes read from the socket
	Joined        atomic.Int64 // sessions registered since process start
	Left          atomic.Int64 // sessions removed since process start
}

func (s *stats) AddFrameSent()  { s.FramesSent.Add(1) }
func (s *stats) AddFrameRecv()  { s.FramesRecv.Add(1) }
func (s *stats) AddFrameDrop()  { s.FramesDropped.Add(1) }
func (s *stats) AddSent(n int)  { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)  { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddSession()    { s.Joined.Add(1) }
func (s *stats) RemoveSession() { s.Left.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

const reportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs stream statistics every
// 10 seconds when there is activity. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()

		var prevSent, prevRecv, prevFrames int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				frames := Stats.FramesSent.Load() + Stats.FramesRecv.Load()

				outS := float64(sent-prevSent) / reportInterval.Seconds()
				inS := float64(recv-prevRecv) / reportInterval.Seconds()
				fps := float64(frames-prevFrames) / reportInterval.Seconds()

				if fps > 0 || inS > 10 || outS > 10 {
					pterm.DefaultLogger.Info(formatStats(fps, inS, outS))
				}

				prevSent = sent
				prevRecv = recv
				prevFrames = frames

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Summary returns the cumulative totals for the end-of-run report.
func Summary(started time.Time) string {
	elapsed := time.Since(started).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	frames := Stats.FramesSent.Load() + Stats.FramesRecv.Load()
	bytes := Stats.BytesSent.Load() + Stats.BytesRecv.Load()

	return fmt.Sprintf("frames: %d | avg fps: %.1f | avg rate: %s/s | total: %s | dropped: %d",
		frames,
		float64(frames)/elapsed,
		formatBytes(float64(bytes)/elapsed),
		formatBytes(float64(bytes)),
		Stats.FramesDropped.Load(),
	)
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(fps, inS, outS float64) string {
	return fmt.Sprintf("%5.1f fps | In: %s/s | Out: %s/s", fps, formatBytes(inS), formatBytes(outS))
}
