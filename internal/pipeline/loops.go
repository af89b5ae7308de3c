// Package pipeline runs face detection against the live webcam feed and the
// reference photo, and restarts everything when an attempt fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/capture"
	"github.com/kozaktomas/facecheck/internal/database"
	"github.com/kozaktomas/facecheck/internal/face"
	"github.com/kozaktomas/facecheck/internal/matcher"
	"github.com/kozaktomas/facecheck/internal/metrics"
	"github.com/kozaktomas/facecheck/internal/photo"
	"github.com/kozaktomas/facecheck/internal/status"
)

// Loop names used in logs and metrics.
const (
	loopPhoto = "photo_match"
	loopVideo = "video_overlay"
)

// recoverableBackoff is the minimum pause after a skipped iteration.
const recoverableBackoff = 100 * time.Millisecond

// Detector runs face detection on JPEG images.
type Detector interface {
	DetectAll(ctx context.Context, img []byte, opts face.DetectorOptions, withDescriptors bool) ([]face.Result, error)
	DetectSingle(ctx context.Context, img []byte, opts face.DetectorOptions, withDescriptor bool) (*face.Result, error)
}

// ModelLoader prepares the detector models.
type ModelLoader interface {
	LoadModels(ctx context.Context) error
}

// FrameSource provides webcam frames.
type FrameSource interface {
	Acquire(ctx context.Context) (*capture.Frame, error)
	Latest() (*capture.Frame, error)
	Reset()
}

// PhotoSource provides the reference photo.
type PhotoSource interface {
	Current() *photo.Photo
	Reset() *photo.Photo
}

// LoopOptions configures the detection loops.
type LoopOptions struct {
	Video             face.DetectorOptions
	Image             face.DetectorOptions
	DistanceThreshold float64
	PhotoInterval     time.Duration
	VideoInterval     time.Duration
}

// Loops holds the two detection loops and what they share.
type Loops struct {
	detector Detector
	frames   FrameSource
	photos   PhotoSource
	board    *status.Board
	history  database.HistoryWriter
	opts     LoopOptions
	logger   *zap.Logger

	// lastOutcome is only touched by the photo loop goroutine.
	lastOutcome string
}

// NewLoops creates the detection loops. history may be nil.
func NewLoops(detector Detector, frames FrameSource, photos PhotoSource, board *status.Board,
	history database.HistoryWriter, opts LoopOptions, logger *zap.Logger) *Loops {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loops{
		detector: detector,
		frames:   frames,
		photos:   photos,
		board:    board,
		history:  history,
		opts:     opts,
		logger:   logger,
	}
}

// PhotoMatchLoop matches the reference photo against the webcam every
// PhotoInterval until ctx is cancelled or an unrecoverable error occurs.
func (l *Loops) PhotoMatchLoop(ctx context.Context) error {
	return l.run(ctx, loopPhoto, l.opts.PhotoInterval, l.PhotoMatchTick)
}

// VideoOverlayLoop keeps the webcam overlay up to date until ctx is cancelled
// or an unrecoverable error occurs.
func (l *Loops) VideoOverlayLoop(ctx context.Context) error {
	return l.run(ctx, loopVideo, l.opts.VideoInterval, l.VideoOverlayTick)
}

// run re-schedules tick after each completion. Transient failures skip one
// iteration; any other error ends the loop.
func (l *Loops) run(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error) error {
	for {
		wait := interval
		err := tick(ctx)
		switch {
		case err == nil:
			metrics.LoopTicksTotal.WithLabelValues(name, "ok").Inc()
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			kind := Classify(err)
			if !kind.Recoverable() {
				metrics.LoopTicksTotal.WithLabelValues(name, "error").Inc()
				return fmt.Errorf("%s loop: %w", name, err)
			}
			metrics.LoopTicksTotal.WithLabelValues(name, "skipped").Inc()
			l.logger.Debug("skipping loop iteration",
				zap.String("loop", name), zap.String("kind", string(kind)), zap.Error(err))
			wait = max(wait, recoverableBackoff)
		}

		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// PhotoMatchTick runs one iteration of the reference photo matching loop.
func (l *Loops) PhotoMatchTick(ctx context.Context) error {
	p := l.photos.Current()
	photoResults, err := l.detector.DetectAll(ctx, p.Data, l.opts.Image, true)
	if err != nil {
		return fmt.Errorf("detecting faces in reference photo: %w", err)
	}
	if len(photoResults) == 0 {
		return nil
	}

	frame, err := l.frames.Latest()
	if err != nil {
		return err
	}
	videoResult, err := l.detector.DetectSingle(ctx, frame.Data, l.opts.Video, true)
	if err != nil {
		return fmt.Errorf("detecting face in webcam frame: %w", err)
	}

	// The photo was replaced while detecting.
	if l.photos.Current().Version != p.Version {
		return nil
	}

	if videoResult == nil || len(videoResult.Descriptor) == 0 {
		l.markNotFound()
		l.record(ctx, database.NewMatchEvent(false, "", 0, len(photoResults), p.Version, nil))
		return nil
	}

	m, err := matcher.New(photoResults, l.opts.DistanceThreshold)
	if errors.Is(err, matcher.ErrEmptyGallery) {
		l.markNotFound()
		return nil
	}
	if err != nil {
		return fmt.Errorf("building matcher: %w", err)
	}

	best := m.FindBestMatch(videoResult.Descriptor)
	idx, ok := matcher.ParsePersonIndex(best.Label)
	if !ok || idx >= len(photoResults) {
		l.markNotFound()
		l.record(ctx, database.NewMatchEvent(false, best.Label, best.Distance, len(photoResults), p.Version, videoResult.Descriptor))
		return nil
	}

	l.board.Draw(status.TargetPhoto, p, photoResults[idx:idx+1], true)
	l.board.SetFound()
	l.record(ctx, database.NewMatchEvent(true, best.Label, best.Distance, len(photoResults), p.Version, videoResult.Descriptor))
	return nil
}

// VideoOverlayTick runs one iteration of the webcam overlay loop.
func (l *Loops) VideoOverlayTick(ctx context.Context) error {
	frame, err := l.frames.Latest()
	if err != nil {
		return err
	}
	res, err := l.detector.DetectSingle(ctx, frame.Data, l.opts.Video, false)
	if err != nil {
		return fmt.Errorf("detecting face in webcam frame: %w", err)
	}
	if res != nil {
		l.board.Draw(status.TargetVideo, frame, []face.Result{*res}, true)
		return nil
	}
	l.board.Clear(status.TargetVideo, frame)
	l.markNotFound()
	return nil
}

// markNotFound clears the photo overlay and flips the status to not found.
func (l *Loops) markNotFound() {
	l.board.Clear(status.TargetPhoto, l.photos.Current())
	l.board.SetNotFound()
}

// record stores the event when the outcome differs from the previous one.
// History failures are logged and never end the loop.
func (l *Loops) record(ctx context.Context, event database.MatchEvent) {
	if l.history == nil || event.Outcome() == l.lastOutcome {
		return
	}
	if err := l.history.Record(ctx, event); err != nil {
		l.logger.Warn("failed to record match event", zap.Error(err))
		return
	}
	l.lastOutcome = event.Outcome()
}
