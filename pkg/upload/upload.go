package upload

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/pdxmph/huskytrace/pkg/analyzer"
	"github.com/pdxmph/huskytrace/pkg/handoff"
	"github.com/pdxmph/huskytrace/pkg/intake"
	"github.com/pdxmph/huskytrace/pkg/logging"
)

var (
	// ErrInFlight is returned when submitting while an upload runs
	ErrInFlight = errors.New("an upload is already in progress")
	// ErrCompleted is returned when submitting after a success; Restart first
	ErrCompleted = errors.New("this upload already completed")
)

// Analyzer sends a candidate to the analysis service
type Analyzer interface {
	Analyze(ctx context.Context, candidate intake.Candidate) (json.RawMessage, error)
}

// PreviewMaker creates session-scoped preview references
type PreviewMaker interface {
	Create(ctx context.Context, candidate intake.Candidate) (string, error)
	Release(ref string) error
}

// Options for an Orchestrator
type Options struct {
	Logger *zap.Logger
	// OnChange is called after every state transition
	OnChange func(State)
}

// Orchestrator runs the submit flow of one session: clear the previous
// record, upload once, and write a new record only on success
type Orchestrator struct {
	analyzer Analyzer
	writer   handoff.Writer
	previews PreviewMaker
	logger   *zap.Logger
	onChange func(State)

	mu    sync.Mutex
	state State
}

// New creates a new Orchestrator in the Idle state
func New(a Analyzer, w handoff.Writer, p PreviewMaker, opts Options) *Orchestrator {
	return &Orchestrator{
		analyzer: a,
		writer:   w,
		previews: p,
		logger:   logging.OrNop(opts.Logger).Named("upload"),
		onChange: opts.OnChange,
		state:    Idle{},
	}
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether an upload is in flight
func (o *Orchestrator) Busy() bool {
	_, uploading := o.State().(Uploading)
	return uploading
}

// Submit analyzes candidate and blocks until a terminal state is reached,
// which it returns. It is accepted only in Idle or Failed; otherwise the
// state is left alone and ErrInFlight or ErrCompleted is returned.
func (o *Orchestrator) Submit(ctx context.Context, candidate intake.Candidate) (State, error) {
	finish, err := o.Begin(ctx, candidate)
	if err != nil {
		return o.State(), err
	}
	return finish(), nil
}

// Begin accepts a submit without waiting for the request. On return the
// orchestrator is already Uploading (or Failed, when the session could not
// be taken or cleared). The returned func performs the upload and must be
// called exactly once.
//
// The session lease is taken before anything else, so a submit running in
// another process for the same session also yields ErrInFlight.
func (o *Orchestrator) Begin(ctx context.Context, candidate intake.Candidate) (func() State, error) {
	o.mu.Lock()
	switch o.state.(type) {
	case Uploading:
		o.mu.Unlock()
		o.logger.Debug("submit ignored, upload in flight")
		return nil, ErrInFlight
	case Succeeded:
		o.mu.Unlock()
		return nil, ErrCompleted
	}

	release, err := o.writer.Acquire(ctx)
	if errors.Is(err, handoff.ErrLeaseHeld) {
		o.mu.Unlock()
		o.logger.Debug("submit ignored, session held elsewhere")
		return nil, ErrInFlight
	}
	if err != nil {
		return o.failEarly("failed to acquire session", err), nil
	}

	// Stale results must be gone before the request is made
	if err := o.writer.Clear(ctx); err != nil {
		o.releaseLease(ctx, release)
		return o.failEarly("failed to clear previous result", err), nil
	}

	uploading := Uploading{Candidate: candidate}
	o.state = uploading
	o.mu.Unlock()
	o.emit(uploading)

	return func() State {
		final := o.run(ctx, candidate)
		o.releaseLease(ctx, release)

		o.mu.Lock()
		o.state = final
		o.mu.Unlock()
		o.emit(final)
		return final
	}, nil
}

// failEarly moves to Failed before any request was made. o.mu must be held;
// it is released.
func (o *Orchestrator) failEarly(msg string, err error) func() State {
	o.logger.Error(msg, zap.Error(err))
	failed := Failed{Reason: analyzer.FallbackMessage, Err: err}
	o.state = failed
	o.mu.Unlock()
	o.emit(failed)
	return func() State { return failed }
}

func (o *Orchestrator) releaseLease(ctx context.Context, release handoff.ReleaseFunc) {
	// The lease must go back even when the submit was cancelled
	if err := release(context.WithoutCancel(ctx)); err != nil {
		o.logger.Warn("failed to release session", zap.Error(err))
	}
}

func (o *Orchestrator) run(ctx context.Context, candidate intake.Candidate) State {
	data, err := o.analyzer.Analyze(ctx, candidate)
	if err != nil {
		return Failed{Reason: analyzer.UserMessage(err), Err: err}
	}

	ref, err := o.previews.Create(ctx, candidate)
	if err != nil {
		o.logger.Error("failed to create preview", zap.String("file", candidate.Name), zap.Error(err))
		return Failed{Reason: analyzer.FallbackMessage, Err: err}
	}

	rec := handoff.Record{PreviewURL: ref, Metadata: data}
	if err := o.writer.Commit(ctx, rec); err != nil {
		o.logger.Error("failed to store result", zap.String("file", candidate.Name), zap.Error(err))
		if relErr := o.previews.Release(ref); relErr != nil {
			o.logger.Warn("failed to release preview", zap.Error(relErr))
		}
		return Failed{Reason: analyzer.FallbackMessage, Err: err}
	}

	o.logger.Debug("analysis stored", zap.String("file", candidate.Name), zap.String("preview", ref))
	return Succeeded{Record: rec}
}

// Restart returns a finished orchestrator to Idle for a new intake attempt.
// The stored record is left for the results screen until the next submit.
func (o *Orchestrator) Restart() error {
	o.mu.Lock()
	if _, uploading := o.state.(Uploading); uploading {
		o.mu.Unlock()
		return ErrInFlight
	}
	_, idle := o.state.(Idle)
	o.state = Idle{}
	o.mu.Unlock()

	if !idle {
		o.emit(Idle{})
	}
	return nil
}

func (o *Orchestrator) emit(s State) {
	if o.onChange != nil {
		o.onChange(s)
	}
}
