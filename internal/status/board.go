// Package status is the sink of the detection pipeline: the found/not found
// indicator, both overlay canvases, and the pipeline phase, published to
// listeners as events.
package status

import (
	"sync"
	"time"

	"github.com/kozaktomas/facecheck/internal/constants"
	"github.com/kozaktomas/facecheck/internal/face"
	"github.com/kozaktomas/facecheck/internal/overlay"
)

// Target names an overlay canvas.
type Target string

// Overlay targets.
const (
	TargetVideo Target = "video"
	TargetPhoto Target = "photo"
)

// ParseTarget validates an overlay target name.
func ParseTarget(s string) (Target, bool) {
	switch Target(s) {
	case TargetVideo, TargetPhoto:
		return Target(s), true
	}
	return "", false
}

// Phase is the supervisor lifecycle stage.
type Phase string

// Pipeline phases.
const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading_models"
	PhaseAcquiring  Phase = "acquiring_capture"
	PhasePolling    Phase = "polling"
	PhaseRestarting Phase = "restarting"
)

// State is a snapshot of the board.
type State struct {
	Found     bool      `json:"found"`
	Message   string    `json:"message"`
	Border    string    `json:"border"`
	Phase     Phase     `json:"phase"`
	Attempt   int       `json:"attempt"`
	ErrorKind string    `json:"error_kind,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OverlayEvent is the payload of an overlay event.
type OverlayEvent struct {
	Target   Target           `json:"target"`
	Snapshot overlay.Snapshot `json:"snapshot"`
}

// Board holds the UI state. It is safe for concurrent use.
type Board struct {
	EventBroadcaster

	mu    sync.RWMutex
	state State

	video *overlay.Canvas
	photo *overlay.Canvas
}

// NewBoard creates an idle board with empty canvases in the not found state.
func NewBoard() *Board {
	return &Board{
		state: State{
			Border:    constants.NotFoundBorder,
			Phase:     PhaseIdle,
			UpdatedAt: time.Now(),
		},
		video: overlay.NewCanvas(),
		photo: overlay.NewCanvas(),
	}
}

// State returns the current state.
func (b *Board) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Canvas returns the canvas of a target.
func (b *Board) Canvas(t Target) *overlay.Canvas {
	if t == TargetPhoto {
		return b.photo
	}
	return b.video
}

func (b *Board) update(fn func(s *State) bool) {
	b.mu.Lock()
	changed := fn(&b.state)
	if changed {
		b.state.UpdatedAt = time.Now()
	}
	state := b.state
	b.mu.Unlock()

	if changed {
		b.SendEvent(Event{Type: EventStatus, Data: state})
	}
}

// SetFound marks the reference face as present in the webcam feed.
func (b *Board) SetFound() {
	b.update(func(s *State) bool {
		if s.Found {
			return false
		}
		s.Found = true
		s.Message = constants.FoundMessage
		s.Border = constants.FoundBorder
		return true
	})
}

// SetNotFound marks the reference face as absent.
func (b *Board) SetNotFound() {
	b.update(func(s *State) bool {
		if !s.Found && s.Border == constants.NotFoundBorder {
			return false
		}
		s.Found = false
		s.Message = ""
		s.Border = constants.NotFoundBorder
		return true
	})
}

// SetPhase records a supervisor phase change for the given attempt.
func (b *Board) SetPhase(phase Phase, attempt int) {
	b.update(func(s *State) bool {
		if s.Phase == phase && s.Attempt == attempt {
			return false
		}
		s.Phase = phase
		s.Attempt = attempt
		if phase == PhasePolling {
			s.ErrorKind = ""
			s.LastError = ""
		}
		return true
	})
}

// SetError records the failure that ended an attempt.
func (b *Board) SetError(kind string, err error) {
	b.update(func(s *State) bool {
		s.ErrorKind = kind
		s.LastError = err.Error()
		return true
	})
	b.SendEvent(Event{Type: EventError, Message: err.Error(), Data: map[string]string{"kind": kind}})
}

// PhotoChanged notifies listeners that a new reference photo version is current.
func (b *Board) PhotoChanged(version int) {
	b.SendEvent(Event{Type: EventPhoto, Data: map[string]int{"version": version}})
}

// Draw renders results on the target canvas sized to src.
func (b *Board) Draw(t Target, src overlay.MediaSource, results []face.Result, withBoxes bool) {
	c := b.Canvas(t)
	overlay.Draw(src, c, results, withBoxes)
	b.SendEvent(Event{Type: EventOverlay, Data: OverlayEvent{Target: t, Snapshot: c.Snapshot()}})
}

// Clear empties the target canvas sized to src. Clearing an already empty
// canvas of the same size publishes nothing.
func (b *Board) Clear(t Target, src overlay.MediaSource) {
	c := b.Canvas(t)
	d := src.Dimensions()
	if prev := c.Snapshot(); len(prev.Shapes) == 0 && prev.Width == d.Width && prev.Height == d.Height {
		return
	}
	overlay.Clear(src, c)
	b.SendEvent(Event{Type: EventOverlay, Data: OverlayEvent{Target: t, Snapshot: c.Snapshot()}})
}
