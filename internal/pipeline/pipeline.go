// Package pipeline wires the camera, detector, decision monitor and
// annotator into a two-stage frame loop and fans results out to clients.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/annotate"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/camera"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/landmark"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/metrics"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/snapshot"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
)

const processQueueDepth = 4

// Options configures a Pipeline. Source, Detector and Monitor are
// required; the rest may be nil for callers that do not need them.
type Options struct {
	Source      camera.Source
	Detector    landmark.Detector
	Monitor     *drowsy.Monitor
	Frames      *FrameBroadcaster
	Events      *EventBroadcaster
	Stats       *Stats
	Metrics     *metrics.Metrics
	Snapshots   *snapshot.Keeper
	JPEGQuality int
	// QueueDepth bounds the capture-to-process queue; frames beyond it
	// are shed. Defaults to processQueueDepth.
	QueueDepth int
}

// Pipeline runs a capture goroutine feeding a bounded queue and a
// processing goroutine draining it. A slow processing stage sheds
// frames at the queue instead of backpressuring capture.
type Pipeline struct {
	opts     Options
	frames   chan *types.Frame
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a pipeline from opts.
func New(opts Options) *Pipeline {
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = annotate.DefaultJPEGQuality
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = processQueueDepth
	}
	return &Pipeline{
		opts:   opts,
		frames: make(chan *types.Frame, opts.QueueDepth),
		done:   make(chan struct{}),
	}
}

// Start launches the capture and processing goroutines. They run until
// ctx is cancelled, Stop is called, or the source ends.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(2)
	go p.captureLoop(ctx)
	go p.processLoop(ctx)
}

// Stop halts both loops and waits for them to exit.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Wait blocks until both loops have exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) captureLoop(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.frames)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		default:
		}

		frame, err := p.opts.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				logger.Info("Pipeline", "Camera source ended: %v", err)
				return
			}
			logger.Warn("Pipeline", "Capture error: %v", err)
			continue
		}

		if p.opts.Metrics != nil {
			p.opts.Metrics.FramesCaptured.Add(1)
		}

		select {
		case p.frames <- frame:
		default:
			// Processing is behind, shed this frame
			if p.opts.Stats != nil {
				p.opts.Stats.RecordDrop()
			}
			if p.opts.Metrics != nil {
				p.opts.Metrics.FramesDropped.Add(1)
			}
		}
	}
}

func (p *Pipeline) processLoop(ctx context.Context) {
	defer p.wg.Done()

	lastAlert := false
	for {
		var frame *types.Frame
		var ok bool
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case frame, ok = <-p.frames:
			if !ok {
				return
			}
		}

		started := time.Now()
		if p.opts.Metrics != nil {
			p.opts.Metrics.UpdateCaptureLatency(frame.Timestamp)
		}

		dec, faces := p.processFrame(frame)

		if p.opts.Metrics != nil {
			p.opts.Metrics.FramesProcessed.Add(1)
			p.opts.Metrics.FacesDetected.Add(uint64(len(faces)))
			p.opts.Metrics.ObserveEAR(dec.MeanEAR, dec.LowFrames, dec.Alert)
			p.opts.Metrics.UpdateProcessLatency(time.Since(started))
		}
		if p.opts.Stats != nil {
			p.opts.Stats.RecordFrame(dec, frame.Timestamp)
		}

		jpegData := p.render(frame, faces, dec)

		if dec.Alert != lastAlert {
			p.onTransition(frame, dec)
		}
		lastAlert = dec.Alert

		if jpegData == nil {
			continue
		}
		if p.opts.Snapshots != nil {
			if path, err := p.opts.Snapshots.OnFrame(jpegData, dec.Alert, frame.Timestamp); err != nil {
				logger.Warn("Pipeline", "Snapshot error: %v", err)
			} else if path != "" {
				logger.Info("Pipeline", "Alert snapshot saved: %s", path)
				if p.opts.Metrics != nil {
					p.opts.Metrics.SnapshotsSaved.Add(1)
					p.opts.Metrics.SnapshotBytes.Add(uint64(len(jpegData)))
				}
			}
		}
		if p.opts.Frames != nil {
			p.opts.Frames.Publish(jpegData)
		}
	}
}

// processFrame runs detection and the drowsiness decision for one frame.
func (p *Pipeline) processFrame(frame *types.Frame) (drowsy.Decision, []landmark.Face) {
	gray := landmark.Grayscale(frame.Image)

	faces, err := p.opts.Detector.Detect(gray)
	if err != nil {
		logger.Warn("Pipeline", "Detect error on frame %d: %v", frame.Number, err)
		if p.opts.Metrics != nil {
			p.opts.Metrics.DetectErrors.Add(1)
		}
		faces = nil
	}

	obs := make([]drowsy.Observation, len(faces))
	for i, f := range faces {
		obs[i] = f.Observation()
	}
	return p.opts.Monitor.ProcessFrame(obs), faces
}

func (p *Pipeline) render(frame *types.Frame, faces []landmark.Face, dec drowsy.Decision) []byte {
	annotate.Draw(frame.Image, faces, dec)
	jpegData, err := annotate.EncodeJPEG(frame.Image, p.opts.JPEGQuality)
	if err != nil {
		logger.Error("Pipeline", "JPEG encode error on frame %d: %v", frame.Number, err)
		if p.opts.Metrics != nil {
			p.opts.Metrics.EncodeErrors.Add(1)
		}
		return nil
	}
	return jpegData
}

// onTransition publishes an alert event when the alert state flips.
func (p *Pipeline) onTransition(frame *types.Frame, dec drowsy.Decision) {
	event := types.AlertEvent{
		FrameNumber: frame.Number,
		Timestamp:   float64(frame.Timestamp.UnixNano()) / float64(time.Second),
		Alert:       dec.Alert,
		MeanEAR:     dec.MeanEAR,
		LowFrames:   dec.LowFrames,
		Faces:       dec.Faces,
	}

	if dec.Alert {
		logger.Warn("Pipeline", "DROWSINESS ALERT at frame %d (EAR=%.3f, low frames=%d)",
			frame.Number, dec.MeanEAR, dec.LowFrames)
		if p.opts.Metrics != nil {
			p.opts.Metrics.AlertsTotal.Add(1)
		}
	} else {
		logger.Info("Pipeline", "Alert cleared at frame %d (EAR=%.3f)", frame.Number, dec.MeanEAR)
	}

	if p.opts.Stats != nil {
		p.opts.Stats.RecordAlert(event)
	}
	if p.opts.Events != nil {
		p.opts.Events.Publish(event)
	}
}
