package viewer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/config"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/streamer"
	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/uplink"
)

type captureSink struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *captureSink) Display(f uplink.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f.Data)
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type fixedSource struct{ frame []byte }

func (f *fixedSource) Capture(context.Context) ([]byte, error) { return f.frame, nil }

// TestViewerEndToEnd runs a real streamer and a real viewer over loopback
// and checks frames make it through to the sink intact.
func TestViewerEndToEnd(t *testing.T) {
	frame := bytes.Repeat([]byte("end-to-end frame"), 400)

	s, err := streamer.New(config.StreamConfig{
		Host: "127.0.0.1", Port: 0, ChunkSize: 1400, MaxFPS: 60, Quality: 30,
	}, &fixedSource{frame: frame})
	if err != nil {
		t.Fatalf("streamer.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	sink := &captureSink{}
	v := New(config.ViewConfig{Host: "127.0.0.1", Port: s.Addr().Port}, sink)

	viewCtx, viewCancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- v.Run(viewCtx) }()

	deadline := time.Now().Add(5 * time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	viewCancel()
	if err := <-done; err != nil {
		t.Errorf("viewer.Run returned %v", err)
	}

	if sink.count() < 3 {
		t.Fatalf("sink received %d frames, want at least 3", sink.count())
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for i, got := range sink.frames {
		if !bytes.Equal(got, frame) {
			t.Fatalf("frame %d differs from source", i)
		}
	}
	if !sink.closed {
		t.Error("sink was not closed when the viewer stopped")
	}
}

func TestDirSinkWritesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	defer sink.Close()

	want := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	if err := sink.Display(uplink.Frame{ID: 1, Data: want}); err != nil {
		t.Fatalf("Display: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "latest.jpg"))
	if err != nil {
		t.Fatalf("read latest.jpg: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("latest.jpg = %v, want %v", got, want)
	}

	// A second frame replaces the first.
	next := []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}
	sink.Display(uplink.Frame{ID: 2, Data: next})
	got, _ = os.ReadFile(filepath.Join(dir, "latest.jpg"))
	if !bytes.Equal(got, next) {
		t.Error("latest.jpg was not replaced by the newer frame")
	}
}
