package drowsy

import (
	"math"
	"testing"
)

// eyeWithEAR builds a contour of width 2 whose lid separation yields
// exactly the requested aspect ratio.
func eyeWithEAR(ear float64) EyeContour {
	return EyeContour{
		{0, 0},
		{0.7, -ear},
		{1.3, -ear},
		{2, 0},
		{1.3, ear},
		{0.7, ear},
	}
}

func obsWithEAR(ear float64) Observation {
	return Observation{Left: eyeWithEAR(ear), Right: eyeWithEAR(ear), Confidence: 1}
}

func TestEyeWithEARHelper(t *testing.T) {
	for _, want := range []float64{0.1, 0.25, 0.3} {
		if got := obsWithEAR(want).MeanEAR(); math.Abs(got-want) > 1e-12 {
			t.Fatalf("obsWithEAR(%v).MeanEAR() = %v", want, got)
		}
	}
}

func TestAlertRaisesOnExactThresholdFrame(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 5})

	for i := 1; i <= 10; i++ {
		dec := m.ProcessFrame([]Observation{obsWithEAR(0.1)})
		wantAlert := i >= 5
		if dec.Alert != wantAlert {
			t.Errorf("frame %d: alert = %v, want %v", i, dec.Alert, wantAlert)
		}
		if dec.LowFrames != i {
			t.Errorf("frame %d: lowFrames = %d, want %d", i, dec.LowFrames, i)
		}
	}
}

func TestNoAlertBelowThresholdCount(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 4})

	// frameCheckThreshold-1 low frames followed by a recovery frame:
	// alert must stay false throughout.
	for i := 0; i < 3; i++ {
		if dec := m.ProcessFrame([]Observation{obsWithEAR(0.2)}); dec.Alert {
			t.Fatalf("low frame %d: unexpected alert", i+1)
		}
	}
	dec := m.ProcessFrame([]Observation{obsWithEAR(0.3)})
	if dec.Alert {
		t.Error("recovery frame: unexpected alert")
	}
	if dec.LowFrames != 0 {
		t.Errorf("recovery frame: lowFrames = %d, want 0", dec.LowFrames)
	}
}

func TestRecoveryClearsAlertSameFrame(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 2})

	m.ProcessFrame([]Observation{obsWithEAR(0.1)})
	if dec := m.ProcessFrame([]Observation{obsWithEAR(0.1)}); !dec.Alert {
		t.Fatal("expected alert on second low frame")
	}

	// The very next frame at threshold clears the alert, no hysteresis.
	dec := m.ProcessFrame([]Observation{obsWithEAR(0.25)})
	if dec.Alert {
		t.Error("alert not cleared on recovery frame")
	}
	if dec.LowFrames != 0 {
		t.Errorf("lowFrames = %d, want 0", dec.LowFrames)
	}
}

func TestAlertRaisedOnThresholdFrameAndCleared(t *testing.T) {
	// threshold 0.25, frameCheckThreshold 3:
	// [0.30 0.20 0.18 0.15 0.28] -> [false false false true false]
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 3})
	ears := []float64{0.30, 0.20, 0.18, 0.15, 0.28}
	want := []bool{false, false, false, true, false}

	for i, ear := range ears {
		dec := m.ProcessFrame([]Observation{obsWithEAR(ear)})
		if dec.Alert != want[i] {
			t.Errorf("frame %d (ear=%v): alert = %v, want %v", i, ear, dec.Alert, want[i])
		}
	}
}

func TestEmptyFrameLeavesStateUntouched(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 3})

	m.ProcessFrame([]Observation{obsWithEAR(0.1)})
	m.ProcessFrame([]Observation{obsWithEAR(0.1)})

	// No face: counter neither incremented nor reset.
	dec := m.ProcessFrame(nil)
	if dec.Alert {
		t.Error("no-face frame raised alert")
	}
	if dec.LowFrames != 2 {
		t.Errorf("no-face frame: lowFrames = %d, want 2", dec.LowFrames)
	}

	// One more low frame completes the run of three.
	if dec := m.ProcessFrame([]Observation{obsWithEAR(0.1)}); !dec.Alert {
		t.Error("expected alert on third low frame after no-face gap")
	}
}

func TestEmptyFrameCarriesAlert(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 1})
	if dec := m.ProcessFrame([]Observation{obsWithEAR(0.1)}); !dec.Alert {
		t.Fatal("expected immediate alert with frameCheckThreshold 1")
	}
	if dec := m.ProcessFrame(nil); !dec.Alert {
		t.Error("no-face frame dropped an active alert")
	}
}

func TestConflatedCounterLastWriterWins(t *testing.T) {
	// Original demo behavior: all faces update one shared counter in
	// detector order, so a low face followed by a recovered face resets.
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 2})

	frame := []Observation{obsWithEAR(0.1), obsWithEAR(0.3)}
	for i := 0; i < 5; i++ {
		dec := m.ProcessFrame(frame)
		if dec.Alert {
			t.Fatalf("frame %d: alert despite trailing recovered face", i)
		}
		if dec.LowFrames != 0 {
			t.Fatalf("frame %d: lowFrames = %d, want 0", i, dec.LowFrames)
		}
	}

	// Reversed order: recovered face first, low face last. The shared
	// counter survives each frame and the alert fires.
	rev := []Observation{obsWithEAR(0.3), obsWithEAR(0.1)}
	m.Reset()
	m.ProcessFrame(rev)
	if dec := m.ProcessFrame(rev); !dec.Alert {
		t.Error("expected alert from trailing low face")
	}
}

func TestTrackedFacesAlertIndependently(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 2, TrackFaces: true})

	frame := []Observation{obsWithEAR(0.1), obsWithEAR(0.3)}
	m.ProcessFrame(frame)
	dec := m.ProcessFrame(frame)
	if !dec.Alert {
		t.Error("tracked mode: expected alert from the low face")
	}
	if dec.LowFrames != 2 {
		t.Errorf("tracked mode: lowFrames = %d, want 2", dec.LowFrames)
	}

	// Both faces recover: alert clears.
	clear := []Observation{obsWithEAR(0.3), obsWithEAR(0.3)}
	if dec := m.ProcessFrame(clear); dec.Alert {
		t.Error("tracked mode: alert not cleared after recovery")
	}
}

func TestSetConfigRetunesLive(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 100})
	m.ProcessFrame([]Observation{obsWithEAR(0.1)})
	m.ProcessFrame([]Observation{obsWithEAR(0.1)})

	m.SetConfig(Config{EARThreshold: 0.25, FrameCheckThreshold: 3})
	if dec := m.ProcessFrame([]Observation{obsWithEAR(0.1)}); !dec.Alert {
		t.Error("expected alert after lowering frameCheckThreshold")
	}
}

func TestDefaultsAppliedToZeroConfig(t *testing.T) {
	m := NewMonitor(Config{})
	cfg := m.Config()
	if cfg.EARThreshold != DefaultEARThreshold {
		t.Errorf("EARThreshold = %v, want %v", cfg.EARThreshold, DefaultEARThreshold)
	}
	if cfg.FrameCheckThreshold != DefaultFrameCheckThreshold {
		t.Errorf("FrameCheckThreshold = %v, want %v", cfg.FrameCheckThreshold, DefaultFrameCheckThreshold)
	}
}

func TestDegenerateContourCountsAsClosed(t *testing.T) {
	m := NewMonitor(Config{EARThreshold: 0.25, FrameCheckThreshold: 2})
	degenerate := Observation{} // zero-valued contours: zero eye width

	m.ProcessFrame([]Observation{degenerate})
	dec := m.ProcessFrame([]Observation{degenerate})
	if !dec.Alert {
		t.Error("degenerate contours should saturate below threshold and alert")
	}
	if dec.MeanEAR != 0 {
		t.Errorf("MeanEAR = %v, want 0", dec.MeanEAR)
	}
}
