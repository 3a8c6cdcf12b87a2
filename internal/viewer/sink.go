package viewer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ju-Daeng-E/Hannover-Makers-Fair-Team4/internal/uplink"
)

// Sink consumes admitted frames. Decoding and rendering are outside this
// subsystem; the built-in sinks either discard frames or hand them to the
// filesystem for an external display to pick up.
type Sink interface {
	Display(f uplink.Frame) error
	Close() error
}

// NullSink discards frames. Useful for protocol verification runs where
// only the statistics matter.
type NullSink struct{}

func (NullSink) Display(uplink.Frame) error { return nil }
func (NullSink) Close() error               { return nil }

// DirSink writes the most recent frame to <dir>/latest.jpg. The write goes
// through a temp file and rename so a reader never observes a torn frame.
type DirSink struct {
	dir string
	tmp string
	out string
}

// NewDirSink creates the directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	return &DirSink{
		dir: dir,
		tmp: filepath.Join(dir, ".latest.jpg.tmp"),
		out: filepath.Join(dir, "latest.jpg"),
	}, nil
}

func (d *DirSink) Display(f uplink.Frame) error {
	if err := os.WriteFile(d.tmp, f.Data, 0o644); err != nil {
		return err
	}
	return os.Rename(d.tmp, d.out)
}

func (d *DirSink) Close() error {
	os.Remove(d.tmp)
	return nil
}
