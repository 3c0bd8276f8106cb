// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session runs at most one conversion at a time on a background
// worker and reports its outcome exactly once.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdiddy/fsconvert/internal/planner"
	"github.com/pdiddy/fsconvert/pkg/types"
	"go.uber.org/zap"
)

// Runner executes one conversion. *planner.Planner implements it.
type Runner interface {
	Execute(ctx context.Context, req types.ConversionRequest, progress planner.ProgressFunc) (types.Decision, error)
}

// Recorder persists the outcome of each accepted conversion.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// Callbacks are invoked from the worker goroutine. Exactly one of
// OnSuccess and OnError fires per Start call. Any of them may be nil.
type Callbacks struct {
	OnSuccess  func(device string)
	OnError    func(err error)
	OnProgress func(p types.Progress)
}

func (c Callbacks) success(device string) {
	if c.OnSuccess != nil {
		c.OnSuccess(device)
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func (c Callbacks) progress(p types.Progress) {
	if c.OnProgress != nil {
		c.OnProgress(p)
	}
}

// Result is the terminal outcome of one conversion.
type Result struct {
	Request  types.ConversionRequest
	Decision types.Decision
	Err      error
	Started  time.Time
	Finished time.Time
}

// OK reports whether the conversion succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Session enforces the single-conversion invariant. The zero value is not
// usable; call New.
type Session struct {
	runner   Runner
	recorder Recorder
	log      *zap.Logger

	converting atomic.Bool

	// mu guards the cancel transition only; the conversion itself runs
	// without holding it.
	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// New returns an idle Session. recorder may be nil.
func New(runner Runner, recorder Recorder, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{runner: runner, recorder: recorder, log: log}
}

// Start begins converting req.Device to req.Target in the background and
// returns a channel that receives the single Result and is then closed.
//
// If a conversion is already running, Start fails synchronously with
// ConversionInProgress and touches nothing. An invalid request also fails
// synchronously. In both cases OnError fires once and no channel is
// returned.
func (s *Session) Start(req types.ConversionRequest, cb Callbacks) (<-chan Result, error) {
	if !s.converting.CompareAndSwap(false, true) {
		err := types.Errorf(types.KindConversionInProgress, req.Device, "a conversion is already in progress")
		s.log.Warn("conversion rejected", zap.String("device", req.Device), zap.Error(err))
		cb.fail(err)
		return nil, err
	}
	if err := req.Validate(); err != nil {
		s.converting.Store(false)
		cb.fail(err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.cancelled = false
	s.done = done
	s.mu.Unlock()

	results := make(chan Result, 1)
	go s.run(ctx, cancel, req, cb, results, done)
	return results, nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, req types.ConversionRequest, cb Callbacks, results chan<- Result, done chan struct{}) {
	defer close(done)
	defer close(results)

	s.log.Info("conversion started", zap.String("device", req.Device), zap.String("target", string(req.Target)))
	res := Result{Request: req, Started: time.Now()}
	res.Decision, res.Err = s.runner.Execute(ctx, req, cb.progress)
	res.Finished = time.Now()

	s.mu.Lock()
	cancelled := s.cancelled
	s.cancel = nil
	s.mu.Unlock()
	cancel()

	if res.Err != nil && cancelled && types.KindOf(res.Err) != types.KindCancelled {
		res.Err = types.Cancelled(req.Device, res.Err)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(context.Background(), res); err != nil {
			s.log.Warn("recording conversion failed", zap.String("device", req.Device), zap.Error(err))
		}
	}
	s.converting.Store(false)

	if res.Err != nil {
		s.log.Error("conversion finished with error",
			zap.String("device", req.Device),
			zap.String("kind", string(types.KindOf(res.Err))),
			zap.Duration("elapsed", res.Finished.Sub(res.Started)))
		cb.fail(res.Err)
	} else {
		s.log.Info("conversion finished",
			zap.String("device", req.Device),
			zap.String("plan", string(res.Decision.Plan)),
			zap.Duration("elapsed", res.Finished.Sub(res.Started)))
		cb.success(req.Device)
	}
	results <- res
}

// Cancel asks the running conversion to stop. The in-flight external
// process is killed and the staging area released; a reformat that has
// already happened is not undone. Cancel is safe from any goroutine and
// does nothing when idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancelled = true
	s.cancel()
	s.log.Info("cancel requested")
}

// Busy reports whether a conversion is in flight.
func (s *Session) Busy() bool {
	return s.converting.Load()
}

// Wait blocks until the most recently started conversion has delivered
// its outcome. It returns immediately if none was started.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
