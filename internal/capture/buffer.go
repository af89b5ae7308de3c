// Package capture holds the live webcam feed. Streaming clients push JPEG frames
// into a Buffer; the detection loops read the latest one.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/kozaktomas/facecheck/internal/metrics"
	"github.com/kozaktomas/facecheck/internal/overlay"
)

var (
	// ErrPermissionDenied is reported when the client could not open the camera.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrNoFrame is returned when no frame has been received yet.
	ErrNoFrame = errors.New("no frame captured yet")
	// ErrDecode wraps frames that are not valid JPEG images.
	ErrDecode = errors.New("invalid frame")
)

// Frame is one JPEG-encoded webcam frame.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	ReceivedAt time.Time
}

// Dimensions returns the native frame resolution.
func (f *Frame) Dimensions() overlay.Dimensions {
	return overlay.Dimensions{Width: f.Width, Height: f.Height}
}

// Buffer keeps the most recent frame of the live stream.
type Buffer struct {
	mu      sync.RWMutex
	frame   *Frame
	source  string
	err     error
	ready   chan struct{}
	isReady bool
}

// NewBuffer creates an empty frame buffer.
func NewBuffer() *Buffer {
	return &Buffer{ready: make(chan struct{})}
}

// DecodeFrame validates a JPEG frame and reads its dimensions.
func DecodeFrame(data []byte) (*Frame, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &Frame{Data: data, Width: cfg.Width, Height: cfg.Height, ReceivedAt: time.Now()}, nil
}

// Push validates and stores a new frame from the given client, replacing the
// previous one. A successful frame clears a previously reported capture failure.
func (b *Buffer) Push(source string, data []byte) error {
	f, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.frame = f
	b.source = source
	b.err = nil
	b.markReadyLocked()
	b.mu.Unlock()

	metrics.CaptureFramesTotal.Inc()
	return nil
}

// markReadyLocked releases Acquire waiters. Caller holds mu.
func (b *Buffer) markReadyLocked() {
	if !b.isReady {
		close(b.ready)
		b.isReady = true
	}
}

// Fail records a capture failure reported by the client. Waiting and later
// Latest calls return it until a new frame arrives.
func (b *Buffer) Fail(err error) {
	b.mu.Lock()
	b.err = err
	b.markReadyLocked()
	b.mu.Unlock()
}

// Latest returns the most recent frame.
func (b *Buffer) Latest() (*Frame, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	if b.frame == nil {
		return nil, ErrNoFrame
	}
	return b.frame, nil
}

// Acquire waits until the stream delivered its first frame or reported a failure.
func (b *Buffer) Acquire(ctx context.Context) (*Frame, error) {
	b.mu.RLock()
	ready := b.ready
	b.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for first frame: %w", ctx.Err())
	case <-ready:
	}
	return b.Latest()
}

// Drop forgets the current frame when source, the client that pushed it,
// disconnects. Frames of other clients are kept. Unlike Reset it keeps a
// completed acquisition, so Latest reports ErrNoFrame until a client streams again.
func (b *Buffer) Drop(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.source != source {
		return
	}
	b.frame = nil
	b.source = ""
}

// Reset forgets the current frame and failure, so the next Acquire waits again.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = nil
	b.source = ""
	b.err = nil
	if b.isReady {
		b.ready = make(chan struct{})
		b.isReady = false
	}
}
