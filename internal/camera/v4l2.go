package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/blackjack/webcam"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
)

// waitFrameTimeout is the per-call V4L2 frame wait, in seconds. Kept
// short so Next can notice context cancellation between waits.
const waitFrameTimeout = 1

// V4L2Source captures MJPEG frames from a V4L2 device (the Pi camera
// exposed through the bcm2835 driver, or any USB webcam).
type V4L2Source struct {
	cam      *webcam.Webcam
	settings Settings

	mu      sync.Mutex
	closed  bool
	frameNo uint64
}

// OpenV4L2 opens the device and negotiates an MJPEG stream at the
// requested geometry. The driver may adjust width/height; the effective
// values are logged and kept.
func OpenV4L2(settings Settings) (*V4L2Source, error) {
	cam, err := webcam.Open(settings.Device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", settings.Device, err)
	}

	format, err := findMJPEGFormat(cam)
	if err != nil {
		cam.Close()
		return nil, err
	}

	_, w, h, err := cam.SetImageFormat(format, uint32(settings.Width), uint32(settings.Height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("set image format: %w", err)
	}
	settings.Width, settings.Height = int(w), int(h)

	if settings.FPS > 0 {
		if err := cam.SetFramerate(float32(settings.FPS)); err != nil {
			logger.Warn("Camera", "Driver rejected %d fps, keeping its default: %v", settings.FPS, err)
		}
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("start streaming: %w", err)
	}

	logger.Info("Camera", "Capturing MJPEG %dx%d from %s", settings.Width, settings.Height, settings.Device)

	return &V4L2Source{cam: cam, settings: settings}, nil
}

// findMJPEGFormat picks the device's (Motion-)JPEG pixel format.
func findMJPEGFormat(cam *webcam.Webcam) (webcam.PixelFormat, error) {
	formats := cam.GetSupportedFormats()
	for format, desc := range formats {
		if strings.Contains(strings.ToUpper(desc), "JPEG") {
			return format, nil
		}
	}
	return 0, fmt.Errorf("device offers no MJPEG format (got: %v)", formats)
}

// Next blocks for the next captured frame and decodes it to RGBA.
// Returns io.EOF after Close.
func (s *V4L2Source) Next(ctx context.Context) (*types.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.mu.Unlock()

		err := s.cam.WaitForFrame(waitFrameTimeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return nil, fmt.Errorf("wait for frame: %w", err)
		}

		data, err := s.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			// Truncated MJPEG frames happen under load; skip them.
			logger.Debug("Camera", "Dropping undecodable frame: %v", err)
			continue
		}

		s.mu.Lock()
		s.frameNo++
		n := s.frameNo
		s.mu.Unlock()

		return &types.Frame{
			Image:     toRGBA(img),
			Number:    n,
			Timestamp: time.Now(),
		}, nil
	}
}

// Close stops streaming and releases the device.
func (s *V4L2Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.cam.StopStreaming(); err != nil {
		logger.Warn("Camera", "Stop streaming: %v", err)
	}
	return s.cam.Close()
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}
