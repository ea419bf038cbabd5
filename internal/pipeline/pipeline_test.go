package pipeline

import (
	"context"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/landmark"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
)

// scriptedSource emits a fixed number of frames, then io.EOF.
type scriptedSource struct {
	mu     sync.Mutex
	count  int
	limit  int
	width  int
	height int
}

func (s *scriptedSource) Next(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count >= s.limit {
		return nil, io.EOF
	}
	s.count++
	return &types.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, s.width, s.height)),
		Number:    uint64(s.count),
		Timestamp: time.Now(),
	}, nil
}

func (s *scriptedSource) Close() error { return nil }

// scriptedDetector replays a list of per-frame EAR values as single-face
// detections. Negative values mean "no face this frame".
type scriptedDetector struct {
	mu   sync.Mutex
	ears []float64
	pos  int
}

func (d *scriptedDetector) Detect(img *image.Gray) ([]landmark.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.ears) {
		return nil, nil
	}
	ear := d.ears[d.pos]
	d.pos++
	if ear < 0 {
		return nil, nil
	}
	eye := eyeWithEAR(ear)
	return []landmark.Face{{
		Region:     image.Rect(100, 100, 300, 300),
		Confidence: 50,
		Left:       eye,
		Right:      eye,
	}}, nil
}

func (d *scriptedDetector) Close() error { return nil }

// eyeWithEAR builds a width-2 contour whose aspect ratio equals ear.
func eyeWithEAR(ear float64) drowsy.EyeContour {
	const y = 120.0
	return drowsy.EyeContour{
		{X: 160, Y: y},
		{X: 160.5, Y: y - ear},
		{X: 161.5, Y: y - ear},
		{X: 162, Y: y},
		{X: 161.5, Y: y + ear},
		{X: 160.5, Y: y + ear},
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func runPipeline(t *testing.T, ears []float64, monitor *drowsy.Monitor) (*Stats, *EventBroadcaster, <-chan *SerializedEvent) {
	t.Helper()

	stats := NewStats(30)
	events := NewEventBroadcaster()
	frames := NewFrameBroadcaster()
	_, eventCh := events.Subscribe()

	p := New(Options{
		Source:   &scriptedSource{limit: len(ears), width: 320, height: 240},
		Detector: &scriptedDetector{ears: ears},
		Monitor:  monitor,
		Frames:   frames,
		Events:   events,
		Stats:    stats,
		// Deep enough that the instant scripted source never sheds.
		QueueDepth: len(ears),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Start(ctx)
	p.Wait()

	return stats, events, eventCh
}

func TestPipelineRaisesAlertAfterConsecutiveLowFrames(t *testing.T) {
	monitor := drowsy.NewMonitor(drowsy.Config{EARThreshold: 0.25, FrameCheckThreshold: 3})

	// 2 open, 3 closed: alert fires on the 5th frame.
	ears := append(repeat(0.4, 2), repeat(0.1, 3)...)
	stats, _, eventCh := runPipeline(t, ears, monitor)

	se, ok := <-eventCh
	if !ok {
		t.Fatal("no alert event published")
	}
	if !se.Event.Alert {
		t.Errorf("first event alert = false, want true")
	}
	if se.Event.FrameNumber != 5 {
		t.Errorf("alert at frame %d, want 5", se.Event.FrameNumber)
	}
	if se.Event.LowFrames != 3 {
		t.Errorf("low_frames = %d, want 3", se.Event.LowFrames)
	}

	monitorStats, drowsyStats, history := stats.Snapshot(monitor.Config())
	if monitorStats.FramesProcessed != 5 {
		t.Errorf("frames_processed = %d, want 5", monitorStats.FramesProcessed)
	}
	if !drowsyStats.AlertActive {
		t.Error("alert should still be active at end of run")
	}
	if drowsyStats.AlertsTotal != 1 {
		t.Errorf("alerts_total = %d, want 1", drowsyStats.AlertsTotal)
	}
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}

func TestPipelineRecoveryPublishesClearEvent(t *testing.T) {
	monitor := drowsy.NewMonitor(drowsy.Config{EARThreshold: 0.25, FrameCheckThreshold: 2})

	// Closed long enough to alert, then eyes open again.
	ears := append(repeat(0.1, 3), 0.4)
	_, _, eventCh := runPipeline(t, ears, monitor)

	first, ok := <-eventCh
	if !ok || !first.Event.Alert {
		t.Fatal("expected an alert event first")
	}
	second, ok := <-eventCh
	if !ok {
		t.Fatal("expected a clear event after recovery")
	}
	if second.Event.Alert {
		t.Error("second event should clear the alert")
	}
	if second.Event.LowFrames != 0 {
		t.Errorf("clear event low_frames = %d, want 0", second.Event.LowFrames)
	}
}

func TestPipelineBelowThresholdNeverAlerts(t *testing.T) {
	monitor := drowsy.NewMonitor(drowsy.Config{EARThreshold: 0.25, FrameCheckThreshold: 5})

	// Only 4 consecutive low frames, then a blink open.
	ears := append(repeat(0.1, 4), 0.4)
	_, _, eventCh := runPipeline(t, ears, monitor)

	select {
	case se, ok := <-eventCh:
		if ok {
			t.Errorf("unexpected event: %+v", se.Event)
		}
	default:
	}
}

func TestPipelineNoFaceFramesLeaveStateUntouched(t *testing.T) {
	monitor := drowsy.NewMonitor(drowsy.Config{EARThreshold: 0.25, FrameCheckThreshold: 3})

	// Low, low, face lost, low: the lost frame does not reset the counter.
	ears := []float64{0.1, 0.1, -1, 0.1}
	_, _, eventCh := runPipeline(t, ears, monitor)

	se, ok := <-eventCh
	if !ok {
		t.Fatal("no alert event published")
	}
	if !se.Event.Alert || se.Event.FrameNumber != 4 {
		t.Errorf("alert event = %+v, want alert at frame 4", se.Event)
	}
}

func TestPipelinePublishesAnnotatedFrames(t *testing.T) {
	monitor := drowsy.NewMonitor(drowsy.Config{})
	frames := NewFrameBroadcaster()
	_, frameCh := frames.Subscribe()

	p := New(Options{
		Source:     &scriptedSource{limit: 2, width: 320, height: 240},
		Detector:   &scriptedDetector{ears: repeat(0.4, 2)},
		Monitor:    monitor,
		Frames:     frames,
		QueueDepth: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Start(ctx)
	p.Wait()

	select {
	case data := <-frameCh:
		if len(data) < 4 || data[0] != 0xff || data[1] != 0xd8 {
			t.Errorf("published frame is not a JPEG (got % x...)", data[:min(4, len(data))])
		}
	default:
		t.Fatal("no frame published")
	}
}

func TestStatsDropAccounting(t *testing.T) {
	stats := NewStats(30)
	stats.RecordDrop()
	stats.RecordDrop()

	monitorStats, _, _ := stats.Snapshot(drowsy.DefaultConfig())
	if monitorStats.FramesDropped != 2 {
		t.Errorf("frames_dropped = %d, want 2", monitorStats.FramesDropped)
	}
}
