package drowsy

import "sync"

// Default thresholds, matching the original Pi demo.
const (
	DefaultEARThreshold        = 0.25
	DefaultFrameCheckThreshold = 20
)

// Config holds the tunable decision thresholds.
type Config struct {
	// EARThreshold is the mean EAR below which a frame counts as eyes-closed.
	EARThreshold float64
	// FrameCheckThreshold is how many consecutive low-EAR frames raise the alert.
	FrameCheckThreshold int
	// TrackFaces keys one counter per face index instead of the original
	// demo's single counter conflated across whatever faces the detector
	// returns. With it set, the frame alert is the OR of per-face alerts.
	TrackFaces bool
}

// DefaultConfig returns the demo's thresholds with single-counter behavior.
func DefaultConfig() Config {
	return Config{
		EARThreshold:        DefaultEARThreshold,
		FrameCheckThreshold: DefaultFrameCheckThreshold,
	}
}

func (c Config) withDefaults() Config {
	if c.EARThreshold <= 0 {
		c.EARThreshold = DefaultEARThreshold
	}
	if c.FrameCheckThreshold <= 0 {
		c.FrameCheckThreshold = DefaultFrameCheckThreshold
	}
	return c
}

// Decision is the per-frame output of the monitor.
type Decision struct {
	// Alert is true from the FrameCheckThreshold-th consecutive low-EAR
	// frame until the first frame at or above the threshold.
	Alert bool
	// MeanEAR is the signal of the frame's last processed observation,
	// or the previous frame's value when no face was detected.
	MeanEAR float64
	// LowFrames is the current consecutive-low counter (max across faces
	// when tracking per face).
	LowFrames int
	// Faces is the number of observations in this frame.
	Faces int
}

type faceState struct {
	lowFrames int
	alert     bool
}

// Monitor carries the mutable per-stream alert state. One monitor per
// camera stream; the caller owns it and feeds it one frame at a time.
// It is safe for the HTTP config surface to retune it while the capture
// loop is running.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	shared  faceState
	perFace map[int]*faceState
	lastEAR float64
}

// NewMonitor creates a monitor in the armed (non-alerting) state.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		cfg:     cfg.withDefaults(),
		perFace: make(map[int]*faceState),
	}
}

// Config returns the active thresholds.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// SetConfig retunes the thresholds without resetting counters.
func (m *Monitor) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg.withDefaults()
}

// Reset clears all counters and the alert flag, as at stream start.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared = faceState{}
	m.perFace = make(map[int]*faceState)
	m.lastEAR = 0
}

// State reports the shared counter and alert flag.
func (m *Monitor) State() (lowFrames int, alert bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.TrackFaces {
		for _, st := range m.perFace {
			if st.lowFrames > lowFrames {
				lowFrames = st.lowFrames
			}
			alert = alert || st.alert
		}
		return lowFrames, alert
	}
	return m.shared.lowFrames, m.shared.alert
}

// ProcessFrame consumes the frame's observations and returns the decision.
// An empty slice (no face detected) leaves all state untouched: the loop
// body that updates the counter simply does not run for that frame.
func (m *Monitor) ProcessFrame(obs []Observation) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(obs) == 0 {
		low, alert := m.stateLocked()
		return Decision{Alert: alert, MeanEAR: m.lastEAR, LowFrames: low}
	}

	if m.cfg.TrackFaces {
		return m.processTrackedLocked(obs)
	}
	return m.processSharedLocked(obs)
}

// processSharedLocked reproduces the original demo: every face in
// detector order updates the one shared counter, so the last observation
// of the frame wins.
func (m *Monitor) processSharedLocked(obs []Observation) Decision {
	for _, o := range obs {
		m.lastEAR = o.MeanEAR()
		m.step(&m.shared, m.lastEAR)
	}
	return Decision{
		Alert:     m.shared.alert,
		MeanEAR:   m.lastEAR,
		LowFrames: m.shared.lowFrames,
		Faces:     len(obs),
	}
}

func (m *Monitor) processTrackedLocked(obs []Observation) Decision {
	dec := Decision{Faces: len(obs)}
	for i, o := range obs {
		st, ok := m.perFace[i]
		if !ok {
			st = &faceState{}
			m.perFace[i] = st
		}
		m.lastEAR = o.MeanEAR()
		m.step(st, m.lastEAR)
		dec.Alert = dec.Alert || st.alert
		if st.lowFrames > dec.LowFrames {
			dec.LowFrames = st.lowFrames
		}
	}
	// Faces beyond this frame's count keep their state, like the
	// no-face case: absent is not the same as recovered.
	dec.MeanEAR = m.lastEAR
	return dec
}

func (m *Monitor) step(st *faceState, meanEAR float64) {
	if meanEAR < m.cfg.EARThreshold {
		st.lowFrames++
		st.alert = st.lowFrames >= m.cfg.FrameCheckThreshold
		return
	}
	st.lowFrames = 0
	st.alert = false
}

func (m *Monitor) stateLocked() (int, bool) {
	if !m.cfg.TrackFaces {
		return m.shared.lowFrames, m.shared.alert
	}
	low, alert := 0, false
	for _, st := range m.perFace {
		if st.lowFrames > low {
			low = st.lowFrames
		}
		alert = alert || st.alert
	}
	return low, alert
}
