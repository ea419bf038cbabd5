// Package camera abstracts the frame producer behind a pull-based
// iterator so the pipeline does not care whether frames come from a
// V4L2 device or a synthetic generator.
package camera

import (
	"context"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
)

// Source yields decoded frames one at a time. Next blocks until a frame
// is available, ctx is done, or the stream ends; it returns io.EOF once
// the source is exhausted or closed.
type Source interface {
	Next(ctx context.Context) (*types.Frame, error)
	Close() error
}

// Settings holds the capture geometry shared by all sources.
type Settings struct {
	Device string // V4L2 device path, e.g. /dev/video0
	Width  int
	Height int
	FPS    int
}

// DefaultSettings matches the original Pi demo capture configuration.
func DefaultSettings() Settings {
	return Settings{
		Device: "/dev/video0",
		Width:  640,
		Height: 480,
		FPS:    30,
	}
}
