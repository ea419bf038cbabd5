package camera

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
)

// barColors is the classic test pattern: white, yellow, cyan, green,
// magenta, red, blue, black.
var barColors = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
}

// SyntheticSource generates color-bar frames at the configured rate.
// Used when no camera is attached (development, CI) and by tests.
type SyntheticSource struct {
	settings Settings
	ticker   *time.Ticker
	done     chan struct{}

	mu      sync.Mutex
	closed  bool
	frameNo uint64
}

// NewSynthetic creates a paced test-pattern source.
func NewSynthetic(settings Settings) *SyntheticSource {
	if settings.Width <= 0 || settings.Height <= 0 {
		settings.Width, settings.Height = 640, 480
	}
	fps := settings.FPS
	if fps <= 0 {
		fps = 30
	}
	return &SyntheticSource{
		settings: settings,
		ticker:   time.NewTicker(time.Second / time.Duration(fps)),
		done:     make(chan struct{}),
	}
}

// Next waits one frame interval and returns the next test-pattern frame.
// A dark band sweeps across the bars so consecutive frames differ.
func (s *SyntheticSource) Next(ctx context.Context) (*types.Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, io.EOF
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, io.EOF
	case <-s.ticker.C:
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, io.EOF
	}
	s.frameNo++
	n := s.frameNo
	s.mu.Unlock()

	return &types.Frame{
		Image:     s.render(n),
		Number:    n,
		Timestamp: time.Now(),
	}, nil
}

func (s *SyntheticSource) render(frameNo uint64) *image.RGBA {
	w, h := s.settings.Width, s.settings.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	barWidth := w / len(barColors)
	if barWidth == 0 {
		barWidth = 1
	}
	bandX := int(frameNo*4) % w

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bar := x / barWidth
			if bar >= len(barColors) {
				bar = len(barColors) - 1
			}
			c := barColors[bar]
			if x >= bandX && x < bandX+16 {
				c = color.RGBA{R: c.R / 4, G: c.G / 4, B: c.B / 4, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Close stops the generator; subsequent Next calls return io.EOF.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.ticker.Stop()
		close(s.done)
	}
	return nil
}
