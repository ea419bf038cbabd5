package camera

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestSyntheticNextSequentialFrames(t *testing.T) {
	src := NewSynthetic(Settings{Width: 64, Height: 48, FPS: 200})
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for want := uint64(1); want <= 3; want++ {
		frame, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if frame.Number != want {
			t.Errorf("frame number = %d, want %d", frame.Number, want)
		}
		if got := frame.Image.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
			t.Errorf("frame bounds = %v, want 64x48", got)
		}
		if frame.Timestamp.IsZero() {
			t.Error("frame timestamp unset")
		}
	}
}

func TestSyntheticFramesDiffer(t *testing.T) {
	src := NewSynthetic(Settings{Width: 64, Height: 8, FPS: 200})
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	b, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	same := true
	for i := range a.Image.Pix {
		if a.Image.Pix[i] != b.Image.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("consecutive synthetic frames are identical")
	}
}

func TestSyntheticNextHonorsContext(t *testing.T) {
	src := NewSynthetic(Settings{Width: 8, Height: 8, FPS: 1})
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next after cancel: err = %v, want context.Canceled", err)
	}
}

func TestSyntheticCloseEndsStream(t *testing.T) {
	src := NewSynthetic(Settings{Width: 8, Height: 8, FPS: 1})
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next after Close: err = %v, want io.EOF", err)
	}
	// Close is idempotent.
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
