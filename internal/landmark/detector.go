// Package landmark wraps the external face and eye-landmark detector
// behind a narrow interface. The decision core only ever sees the six
// eye-contour points per eye; which model produced them is a detail.
package landmark

import (
	"image"
	"image/draw"
	"sync"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
)

// Face is one detection: where the face is and its two eye contours.
type Face struct {
	Region     image.Rectangle
	Confidence float64
	Left       drowsy.EyeContour
	Right      drowsy.EyeContour
}

// Observation converts the detection into the decision core's input.
func (f Face) Observation() drowsy.Observation {
	return drowsy.Observation{Left: f.Left, Right: f.Right, Confidence: f.Confidence}
}

// Detector analyzes a grayscale frame and returns detected faces.
// Returns an empty slice when no face is present; that is not an error.
type Detector interface {
	Detect(img *image.Gray) ([]Face, error)
	Close() error
}

// Grayscale converts a frame to the luma-only image detectors consume.
func Grayscale(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)
	return gray
}

// Swappable is a Detector whose backing implementation can be replaced
// at runtime, used by the cascade hot-reload watcher. The zero value is
// a detector that finds nothing.
type Swappable struct {
	mu sync.RWMutex
	d  Detector
}

// NewSwappable wraps d; d may be nil.
func NewSwappable(d Detector) *Swappable {
	return &Swappable{d: d}
}

// Swap installs a new backing detector and returns the previous one.
func (s *Swappable) Swap(d Detector) Detector {
	s.mu.Lock()
	prev := s.d
	s.d = d
	s.mu.Unlock()
	return prev
}

// Detect delegates to the current backing detector.
func (s *Swappable) Detect(img *image.Gray) ([]Face, error) {
	s.mu.RLock()
	d := s.d
	s.mu.RUnlock()
	if d == nil {
		return nil, nil
	}
	return d.Detect(img)
}

// Close closes the current backing detector.
func (s *Swappable) Close() error {
	s.mu.Lock()
	d := s.d
	s.d = nil
	s.mu.Unlock()
	if d == nil {
		return nil
	}
	return d.Close()
}
