package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/capture"
	"github.com/kozaktomas/facecheck/internal/metrics"
	"github.com/kozaktomas/facecheck/internal/status"
)

// ErrRestartRequested is the cause of attempts ended by Restart.
var ErrRestartRequested = errors.New("restart requested")

// SupervisorOptions configures the top-level flow.
type SupervisorOptions struct {
	RestartDelay   time.Duration // pause between a failed attempt and the next one
	AcquireTimeout time.Duration // zero waits for the first frame indefinitely
}

// Supervisor loads the models, waits for the webcam and runs both detection
// loops. When anything fails it resets the reference photo and starts over,
// exactly once per failed attempt.
type Supervisor struct {
	loader ModelLoader
	frames FrameSource
	photos PhotoSource
	board  *status.Board
	loops  *Loops
	opts   SupervisorOptions
	logger *zap.Logger

	mu      sync.Mutex
	attempt int
	ending  bool
	cancel  context.CancelCauseFunc
}

// NewSupervisor creates a supervisor.
func NewSupervisor(loader ModelLoader, frames FrameSource, photos PhotoSource, board *status.Board,
	loops *Loops, opts SupervisorOptions, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		loader: loader,
		frames: frames,
		photos: photos,
		board:  board,
		loops:  loops,
		opts:   opts,
		logger: logger,
	}
}

// Attempt returns the number of the current attempt, starting at 1.
func (s *Supervisor) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Run executes attempts until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.runAttempt(ctx)
		if ctx.Err() != nil {
			s.board.SetPhase(status.PhaseIdle, s.Attempt())
			return nil
		}
		s.reset(err)

		if s.opts.RestartDelay > 0 {
			select {
			case <-ctx.Done():
				s.board.SetPhase(status.PhaseIdle, s.Attempt())
				return nil
			case <-time.After(s.opts.RestartDelay):
			}
		}
	}
}

// Restart ends the current attempt so a new one starts. It returns false when
// no attempt is running or the current one is already ending.
func (s *Supervisor) Restart() bool {
	s.mu.Lock()
	gen := s.attempt
	s.mu.Unlock()
	return s.fail(gen, ErrRestartRequested)
}

// begin starts a new attempt and returns its number and context.
func (s *Supervisor) begin(ctx context.Context) (int, context.Context, context.CancelCauseFunc) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	s.ending = false
	s.cancel = cancel
	return s.attempt, attemptCtx, cancel
}

// fail ends attempt gen with cause err. Only the first failure of an attempt
// has any effect.
func (s *Supervisor) fail(gen int, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.attempt || s.ending || s.cancel == nil {
		return false
	}
	s.ending = true
	s.cancel(err)
	return true
}

// runAttempt runs one attempt and returns why it ended.
func (s *Supervisor) runAttempt(ctx context.Context) error {
	gen, attemptCtx, cancel := s.begin(ctx)
	defer cancel(nil)

	log := s.logger.With(zap.Int("attempt", gen))
	cause := func(err error) error {
		if attemptCtx.Err() != nil {
			return context.Cause(attemptCtx)
		}
		s.fail(gen, err)
		return err
	}

	s.board.SetPhase(status.PhaseLoading, gen)
	log.Info("loading models")
	if err := s.loader.LoadModels(attemptCtx); err != nil {
		return cause(fmt.Errorf("loading models: %w", err))
	}

	s.board.SetPhase(status.PhaseAcquiring, gen)
	log.Info("waiting for webcam stream")
	frame, err := s.acquire(attemptCtx)
	if err != nil {
		return cause(fmt.Errorf("acquiring webcam stream: %w", err))
	}
	log.Info("webcam stream acquired", zap.Int("width", frame.Width), zap.Int("height", frame.Height))

	s.board.SetPhase(status.PhasePolling, gen)
	var wg sync.WaitGroup
	for _, loop := range []func(context.Context) error{s.loops.PhotoMatchLoop, s.loops.VideoOverlayLoop} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loop(attemptCtx); err != nil && attemptCtx.Err() == nil {
				s.fail(gen, err)
			}
		}()
	}
	wg.Wait()
	return context.Cause(attemptCtx)
}

func (s *Supervisor) acquire(ctx context.Context) (*capture.Frame, error) {
	if s.opts.AcquireTimeout <= 0 {
		return s.frames.Acquire(ctx)
	}
	acquireCtx, cancel := context.WithTimeout(ctx, s.opts.AcquireTimeout)
	defer cancel()
	frame, err := s.frames.Acquire(acquireCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: no frame within %s", capture.ErrNoFrame, s.opts.AcquireTimeout)
	}
	return frame, err
}

// reset reports a finished attempt and resets the shared state for the next one.
func (s *Supervisor) reset(err error) {
	gen := s.Attempt()
	if errors.Is(err, ErrRestartRequested) {
		metrics.PipelineRestartsTotal.WithLabelValues("manual").Inc()
		s.logger.Info("restarting pipeline on request", zap.Int("attempt", gen))
	} else {
		kind := Classify(err)
		metrics.PipelineRestartsTotal.WithLabelValues(string(kind)).Inc()
		s.logger.Error("pipeline attempt failed, restarting",
			zap.Int("attempt", gen), zap.String("kind", string(kind)), zap.Error(err))
		s.board.SetError(string(kind), err)
	}

	s.board.SetPhase(status.PhaseRestarting, gen)
	s.frames.Reset()
	p := s.photos.Reset()
	s.board.Clear(status.TargetPhoto, p)
	s.board.SetNotFound()
	s.board.PhotoChanged(p.Version)
}
