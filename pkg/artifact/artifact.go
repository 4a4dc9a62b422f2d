// Package artifact writes the images produced by a comparison run into a
// per-run namespace inside an output directory.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kataras/figma-droid/pkg/bitmap"
)

// DefaultDir is the output directory used when none is configured.
const DefaultDir = ".mcp_pixel_diff"

// Artifact names, used as file name suffixes.
const (
	EmulatorRaw     = "emulator_raw"
	FigmaNode       = "figma_node"
	EmulatorScaled  = "emulator_scaled"
	EmulatorAligned = "emulator_aligned"
	Heatmap         = "heatmap"
)

// NewRunID returns a time-sortable identifier that stays unique when two
// runs start within the same second.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("20060102_150405") + "_" + suffix
}

// Sink writes PNG files named "<run id>_<name>.png" under Dir.
type Sink struct {
	Dir   string
	RunID string
}

// NewSink creates dir if needed and returns a sink for runID.
func NewSink(dir, runID string) (*Sink, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}
	return &Sink{Dir: dir, RunID: runID}, nil
}

// Path returns the file path of the named artifact.
func (s *Sink) Path(name string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.png", s.RunID, name))
}

// WritePNG encodes bm as PNG into the named artifact and returns its path.
func (s *Sink) WritePNG(name string, bm *bitmap.Bitmap) (string, error) {
	path := s.Path(name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file %q: %w", path, err)
	}

	if err := bm.EncodePNG(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write file %q: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close file %q: %w", path, err)
	}

	return path, nil
}
