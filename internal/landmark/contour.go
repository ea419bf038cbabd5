package landmark

import (
	"sort"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
)

// BuildContour orders the raw landmark points detected around one eye
// into the fixed 6-point convention (outer corner, two upper lid points,
// inner corner, two lower lid points, winding around the eye).
//
// The landmark cascades do not always fire on every point, so missing
// positions are synthesized: absent corners sit at pupil.X +/- span/2 on
// the pupil line, and an absent lid mirrors the opposite lid across the
// corner midline. When no lid point fires at all, both lids collapse
// onto the midline, which reads as a closed eye downstream.
func BuildContour(pupil drowsy.Point, span float64, pts []drowsy.Point) drowsy.EyeContour {
	if span <= 0 {
		span = 1
	}

	var c drowsy.EyeContour

	// Corners: extreme-X points when available.
	rest := pts
	if len(pts) >= 2 {
		minIdx, maxIdx := 0, 0
		for i, p := range pts {
			if p.X < pts[minIdx].X {
				minIdx = i
			}
			if p.X > pts[maxIdx].X {
				maxIdx = i
			}
		}
		c[0] = pts[minIdx]
		c[3] = pts[maxIdx]
		rest = make([]drowsy.Point, 0, len(pts))
		for i, p := range pts {
			if i != minIdx && i != maxIdx {
				rest = append(rest, p)
			}
		}
	} else {
		c[0] = drowsy.Point{X: pupil.X - span/2, Y: pupil.Y}
		c[3] = drowsy.Point{X: pupil.X + span/2, Y: pupil.Y}
	}

	midY := (c[0].Y + c[3].Y) / 2

	var upper, lower []drowsy.Point
	for _, p := range rest {
		if p.Y < midY {
			upper = append(upper, p)
		} else {
			lower = append(lower, p)
		}
	}

	mirror := func(ps []drowsy.Point) []drowsy.Point {
		out := make([]drowsy.Point, len(ps))
		for i, p := range ps {
			out[i] = drowsy.Point{X: p.X, Y: 2*midY - p.Y}
		}
		return out
	}

	switch {
	case len(upper) == 0 && len(lower) == 0:
		// No lid landmarks: closed-eye contour on the midline.
		third := (c[3].X - c[0].X) / 3
		upper = []drowsy.Point{
			{X: c[0].X + third, Y: midY},
			{X: c[0].X + 2*third, Y: midY},
		}
		lower = mirror(upper)
	case len(upper) == 0:
		upper = mirror(lower)
	case len(lower) == 0:
		lower = mirror(upper)
	}

	p1, p2 := pickLidPair(upper, pupil)
	p4, p5 := pickLidPair(lower, pupil)

	c[1], c[2] = p1, p2
	// Lower lid winds back from the inner corner toward the outer one.
	c[4], c[5] = innerFirst(p4, p5)
	return c
}

// pickLidPair reduces a lid's points to two, ordered by ascending X.
// A single point is paired with its reflection across the pupil column.
func pickLidPair(ps []drowsy.Point, pupil drowsy.Point) (drowsy.Point, drowsy.Point) {
	if len(ps) == 1 {
		twin := drowsy.Point{X: 2*pupil.X - ps[0].X, Y: ps[0].Y}
		ps = append(ps, twin)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].X < ps[j].X })
	return ps[0], ps[len(ps)-1]
}

// innerFirst returns the lower-lid pair in contour winding order: the
// point nearer the inner corner first.
func innerFirst(a, b drowsy.Point) (drowsy.Point, drowsy.Point) {
	if a.X > b.X {
		return a, b
	}
	return b, a
}
