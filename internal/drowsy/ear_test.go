package drowsy

import (
	"math"
	"testing"
)

// openEye is a symmetric 6-point contour with width 12 and lid
// separation 6, giving EAR = (6+6)/(2*12) = 0.5.
func openEye() EyeContour {
	return EyeContour{
		{0, 0},   // outer corner
		{4, -3},  // upper lid
		{8, -3},  // upper lid
		{12, 0},  // inner corner
		{8, 3},   // lower lid
		{4, 3},   // lower lid
	}
}

func closedEye() EyeContour {
	return EyeContour{
		{0, 0}, {4, 0}, {8, 0}, {12, 0}, {8, 0}, {4, 0},
	}
}

func TestEARKnownValue(t *testing.T) {
	got := EAR(openEye())
	if math.Abs(got-0.5) > 1e-12 {
		t.Errorf("EAR(openEye) = %v, want 0.5", got)
	}
}

func TestEARClosedEyeIsZero(t *testing.T) {
	if got := EAR(closedEye()); got != 0 {
		t.Errorf("EAR(closedEye) = %v, want 0", got)
	}
}

func TestEARNonNegative(t *testing.T) {
	contours := []EyeContour{
		openEye(),
		closedEye(),
		{{-5, 2}, {-1, -7}, {3, -6}, {9, 1}, {2, 8}, {-2, 6}},
	}
	for _, c := range contours {
		if got := EAR(c); got < 0 {
			t.Errorf("EAR(%v) = %v, want >= 0", c, got)
		}
	}
}

func TestEARTranslationInvariant(t *testing.T) {
	base := EAR(openEye())
	for _, off := range []Point{{100, 0}, {0, -250}, {33.5, 71.25}} {
		c := openEye()
		for i := range c {
			c[i].X += off.X
			c[i].Y += off.Y
		}
		if got := EAR(c); math.Abs(got-base) > 1e-12 {
			t.Errorf("EAR after translate %v = %v, want %v", off, got, base)
		}
	}
}

func TestEARScaleInvariant(t *testing.T) {
	base := EAR(openEye())
	for _, scale := range []float64{0.1, 2, 37.5} {
		c := openEye()
		for i := range c {
			c[i].X *= scale
			c[i].Y *= scale
		}
		if got := EAR(c); math.Abs(got-base) > 1e-12 {
			t.Errorf("EAR after scale %v = %v, want %v", scale, got, base)
		}
	}
}

func TestEARZeroWidthDoesNotPanic(t *testing.T) {
	// All six landmarks on one spot: zero eye width.
	degenerate := EyeContour{{5, 5}, {5, 5}, {5, 5}, {5, 5}, {5, 5}, {5, 5}}
	if got := EAR(degenerate); got != 0 {
		t.Errorf("EAR(degenerate) = %v, want 0", got)
	}
}

func TestObservationMeanEAR(t *testing.T) {
	o := Observation{Left: openEye(), Right: closedEye()}
	want := (0.5 + 0) / 2
	if got := o.MeanEAR(); math.Abs(got-want) > 1e-12 {
		t.Errorf("MeanEAR = %v, want %v", got, want)
	}
	if got := o.LeftEAR(); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("LeftEAR = %v, want 0.5", got)
	}
	if got := o.RightEAR(); got != 0 {
		t.Errorf("RightEAR = %v, want 0", got)
	}
}
