// Package metrics exposes the daemon's counters to Prometheus. Hot-path
// code updates plain atomics; the registry reads them lazily on scrape.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Frame pipeline counters
	FramesCaptured  atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesDropped   atomic.Uint64

	// Detection
	DetectErrors  atomic.Uint64
	FacesDetected atomic.Uint64
	EncodeErrors  atomic.Uint64

	// Decision state
	AlertActive atomic.Uint64 // 0 or 1
	AlertsTotal atomic.Uint64
	LowFrames   atomic.Uint64
	EARMilli    atomic.Uint64 // last mean EAR * 1000

	// Latency tracking
	CaptureLatencyMs atomic.Uint64
	ProcessLatencyMs atomic.Uint64

	// Consumers
	StreamClients atomic.Uint64
	EventClients  atomic.Uint64
	RTCClients    atomic.Uint64

	// Snapshots
	SnapshotsSaved atomic.Uint64
	SnapshotBytes  atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{"drowsy_frames_captured_total", "Total frames pulled from the camera source", m.FramesCaptured.Load},
		{"drowsy_frames_processed_total", "Total frames run through detection and decision", m.FramesProcessed.Load},
		{"drowsy_frames_dropped_total", "Total frames dropped between capture and processing", m.FramesDropped.Load},
		{"drowsy_detect_errors_total", "Total landmark detector errors", m.DetectErrors.Load},
		{"drowsy_faces_detected_total", "Total face observations across all frames", m.FacesDetected.Load},
		{"drowsy_encode_errors_total", "Total JPEG encode errors", m.EncodeErrors.Load},
		{"drowsy_alert_active", "Drowsiness alert state (0=armed, 1=alerting)", m.AlertActive.Load},
		{"drowsy_alerts_total", "Total drowsiness alerts raised", m.AlertsTotal.Load},
		{"drowsy_low_ear_frames", "Current consecutive low-EAR frame counter", m.LowFrames.Load},
		{"drowsy_last_ear_milli", "Last mean eye aspect ratio, scaled by 1000", m.EARMilli.Load},
		{"drowsy_capture_latency_ms", "Capture-to-processing latency in milliseconds", m.CaptureLatencyMs.Load},
		{"drowsy_process_latency_ms", "Per-frame processing latency in milliseconds", m.ProcessLatencyMs.Load},
		{"drowsy_stream_clients", "Connected MJPEG stream clients", m.StreamClients.Load},
		{"drowsy_event_clients", "Connected alert event clients (SSE and websocket)", m.EventClients.Load},
		{"drowsy_rtc_clients", "Connected WebRTC data-channel clients", m.RTCClients.Load},
		{"drowsy_snapshots_saved_total", "Total alert snapshots written to disk", m.SnapshotsSaved.Load},
		{"drowsy_snapshot_bytes_total", "Total bytes written as alert snapshots", m.SnapshotBytes.Load},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// ObserveEAR records the latest decision outputs.
func (m *Metrics) ObserveEAR(meanEAR float64, lowFrames int, alert bool) {
	m.EARMilli.Store(uint64(meanEAR * 1000))
	m.LowFrames.Store(uint64(lowFrames))
	if alert {
		m.AlertActive.Store(1)
	} else {
		m.AlertActive.Store(0)
	}
}

// UpdateCaptureLatency records the delay between capture and processing.
func (m *Metrics) UpdateCaptureLatency(captureTime time.Time) {
	m.CaptureLatencyMs.Store(uint64(time.Since(captureTime).Milliseconds()))
}

// UpdateProcessLatency records the per-frame processing duration.
func (m *Metrics) UpdateProcessLatency(d time.Duration) {
	m.ProcessLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr; blocks like http.ListenAndServe.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
