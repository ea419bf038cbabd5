// Package snapshot persists annotated frames to disk when an alert fires.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Keeper writes alert snapshots. When armed, OnFrame saves the annotated
// JPEG on each rising edge of the alert state; Save stores one on demand.
type Keeper struct {
	mu        sync.Mutex
	dir       string
	armed     bool
	lastAlert bool
	saved     int
	bytes     int64
	lastFile  string
}

// NewKeeper creates a keeper writing into dir, creating it if needed.
func NewKeeper(dir string, armed bool) (*Keeper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	return &Keeper{dir: dir, armed: armed}, nil
}

// Dir returns the directory snapshots are written to.
func (k *Keeper) Dir() string {
	return k.dir
}

// SetArmed toggles automatic saving on alert transitions.
func (k *Keeper) SetArmed(armed bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.armed = armed
}

// OnFrame inspects the alert state for the given encoded frame and writes
// a snapshot when the alert has just gone active. Returns the written
// path, or "" when nothing was saved.
func (k *Keeper) OnFrame(jpegData []byte, alert bool, ts time.Time) (string, error) {
	k.mu.Lock()
	rising := alert && !k.lastAlert
	k.lastAlert = alert
	armed := k.armed
	k.mu.Unlock()

	if !rising || !armed {
		return "", nil
	}
	return k.write("alert", jpegData, ts)
}

// Save writes an on-demand snapshot regardless of alert state.
func (k *Keeper) Save(jpegData []byte, ts time.Time) (string, error) {
	return k.write("snapshot", jpegData, ts)
}

func (k *Keeper) write(prefix string, jpegData []byte, ts time.Time) (string, error) {
	name := fmt.Sprintf("%s_%s.jpg", prefix, ts.Format("20060102_150405.000"))
	path := filepath.Join(k.dir, name)

	if err := os.WriteFile(path, jpegData, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	k.mu.Lock()
	k.saved++
	k.bytes += int64(len(jpegData))
	k.lastFile = name
	k.mu.Unlock()

	return path, nil
}

// Status returns the keeper status payload.
func (k *Keeper) Status() map[string]any {
	k.mu.Lock()
	defer k.mu.Unlock()

	var last any
	if k.lastFile != "" {
		last = k.lastFile
	}

	return map[string]any{
		"armed":         k.armed,
		"saved":         k.saved,
		"bytes_written": k.bytes,
		"last_file":     last,
	}
}
