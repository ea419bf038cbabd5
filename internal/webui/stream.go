package webui

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"time"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/annotate"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/pipeline"
)

func writeSSE(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// blankJPEG renders the keepalive frame shown while the camera is idle.
func blankJPEG(width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dark := color.RGBA{R: 24, G: 24, B: 28, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, dark)
		}
	}
	return annotate.EncodeJPEG(img, annotate.DefaultJPEGQuality)
}

// streamMJPEGFromChannel streams MJPEG from a channel (fanout pattern).
func streamMJPEGFromChannel(w http.ResponseWriter, r *http.Request, frameCh <-chan []byte, size [2]int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	blank, err := blankJPEG(size[0], size[1])
	if err != nil {
		http.Error(w, "Failed to render frame", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		var jpegData []byte
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frameCh:
			if !ok {
				// Channel closed, client should disconnect
				return
			}
			jpegData = data
		case <-time.After(5 * time.Second):
			// No frame for 5 seconds, send blank to keep connection alive
			jpegData = blank
		}

		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during write: %v", err)
			return
		}
		if _, err := w.Write(jpegData); err != nil {
			logger.Debug("MJPEG", "Client disconnected during frame write: %v", err)
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during delimiter write: %v", err)
			return
		}
		flusher.Flush()
	}
}

// streamAlertEventsFromChannel streams pre-serialized alert events to an
// SSE client in the format negotiated by the Accept header.
func streamAlertEventsFromChannel(w http.ResponseWriter, r *http.Request, eventCh <-chan *pipeline.SerializedEvent, useProtobuf bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if useProtobuf {
		w.Header().Set("X-Content-Format", "application/protobuf")
	} else {
		w.Header().Set("X-Content-Format", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}

			data := event.JSONData
			if useProtobuf {
				data = event.ProtobufData
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				logger.Debug("SSE", "Client disconnected during event write: %v", err)
				return
			}
			flusher.Flush()

		case <-time.After(30 * time.Second):
			// Keepalive comment to prevent proxy timeouts
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
