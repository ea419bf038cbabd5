// Package drowsy implements the eye-aspect-ratio drowsiness decision:
// a per-stream counter of consecutive low-EAR frames that raises an
// alert once the counter crosses a configurable threshold.
package drowsy

import "math"

// Point is a 2-D landmark coordinate in pixel space.
type Point struct {
	X float64
	Y float64
}

// EyeContour holds the six eye landmarks in the detector's fixed order:
// p0 outer corner, p1 p2 upper lid, p3 inner corner, p4 p5 lower lid.
type EyeContour [6]Point

// minEyeWidth guards the EAR denominator. A contour narrower than this
// is degenerate (duplicate or collinear points) and scores 0.
const minEyeWidth = 1e-9

// EAR computes the eye aspect ratio (||p1-p5|| + ||p2-p4||) / (2*||p0-p3||).
// A degenerate contour with zero eye width returns 0 rather than dividing
// by zero: a collapsed contour reads as a fully closed eye.
func EAR(c EyeContour) float64 {
	width := dist(c[0], c[3])
	if width < minEyeWidth {
		return 0
	}
	return (dist(c[1], c[5]) + dist(c[2], c[4])) / (2 * width)
}

// Observation is one detected face's eye geometry for a single frame.
type Observation struct {
	Left       EyeContour
	Right      EyeContour
	Confidence float64
}

// LeftEAR returns the aspect ratio of the left eye contour.
func (o Observation) LeftEAR() float64 { return EAR(o.Left) }

// RightEAR returns the aspect ratio of the right eye contour.
func (o Observation) RightEAR() float64 { return EAR(o.Right) }

// MeanEAR is the per-face signal the monitor thresholds on.
func (o Observation) MeanEAR() float64 {
	return (EAR(o.Left) + EAR(o.Right)) / 2
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
