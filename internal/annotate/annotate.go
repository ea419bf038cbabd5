// Package annotate draws the eye-contour overlays and alert banner onto
// frames and encodes them for the MJPEG transport.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/landmark"
)

// DefaultJPEGQuality balances browser stream quality against the cost
// of encoding every frame on a Pi-class CPU.
const DefaultJPEGQuality = 75

var (
	contourColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	alertColor   = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	bannerBg     = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Draw overlays the detected eye contours, the EAR readout and, when
// alerting, the drowsiness banner. The image is modified in place.
func Draw(img *image.RGBA, faces []landmark.Face, dec drowsy.Decision) {
	for _, face := range faces {
		drawContour(img, face.Left)
		drawContour(img, face.Right)
	}

	bounds := img.Bounds()
	status := fmt.Sprintf("EAR: %.3f  low frames: %d  faces: %d", dec.MeanEAR, dec.LowFrames, dec.Faces)
	drawLabel(img, bounds.Min.X+8, bounds.Max.Y-8, status, textColor)

	if dec.Alert {
		drawBanner(img, "DROWSINESS ALERT!")
	}
}

// drawContour connects the six contour points into a closed polygon and
// marks each landmark.
func drawContour(img *image.RGBA, c drowsy.EyeContour) {
	for i := range c {
		a := c[i]
		b := c[(i+1)%len(c)]
		drawLine(img, int(a.X), int(a.Y), int(b.X), int(b.Y), contourColor)
	}
	for _, p := range c {
		drawDot(img, int(p.X), int(p.Y), contourColor)
	}
}

func drawBanner(img *image.RGBA, msg string) {
	bounds := img.Bounds()
	banner := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+28)
	draw.Draw(img, banner, image.NewUniform(alertColor), image.Point{}, draw.Src)

	width := font.MeasureString(basicfont.Face7x13, msg).Ceil()
	x := bounds.Min.X + (bounds.Dx()-width)/2
	drawLabel(img, x, bounds.Min.Y+18, msg, textColor)
}

// drawLabel renders text with a black backing box so it stays readable
// on any frame content.
func drawLabel(img *image.RGBA, x, y int, msg string, col color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, msg).Ceil()
	box := image.Rect(x-2, y-face.Ascent-1, x+width+2, y+face.Descent+1)
	draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(bannerBg), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(msg)
}

// drawLine plots a Bresenham segment clipped to the image bounds.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		setClipped(img, x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawDot(img *image.RGBA, x, y int, col color.RGBA) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			setClipped(img, x+dx, y+dy, col)
		}
	}
}

func setClipped(img *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// EncodeJPEG compresses the frame for the multipart stream.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
