// Package session wires intake, upload, handoff and presentation together
// for one browsing context: a terminal tab, a shell, or a GUI window.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdxmph/huskytrace/pkg/config"
	"github.com/pdxmph/huskytrace/pkg/handoff"
	"github.com/pdxmph/huskytrace/pkg/intake"
	"github.com/pdxmph/huskytrace/pkg/logging"
	"github.com/pdxmph/huskytrace/pkg/present"
	"github.com/pdxmph/huskytrace/pkg/preview"
	"github.com/pdxmph/huskytrace/pkg/upload"
)

// ErrNoCandidate is returned when submitting with no file selected
var ErrNoCandidate = errors.New("no file selected")

// Screen is the logical screen a session is on
type Screen string

const (
	ScreenIntake  Screen = "intake"
	ScreenResults Screen = "results"
)

// Deps are the collaborators of a session
type Deps struct {
	ID         string
	Analyzer   upload.Analyzer
	Slots      handoff.Slots
	PreviewDir string // defaults to preview.DefaultDir(ID)
	// LeaseTTL bounds how long one submit may hold the session
	LeaseTTL time.Duration
	Logger   *zap.Logger
	// OnChange observes upload state transitions
	OnChange func(upload.State)
}

// Session is one intake/results pair with its own handoff record
type Session struct {
	ID string

	intake    *intake.Intake
	orch      *upload.Orchestrator
	presenter *present.Presenter
	store     *handoff.Store
	previews  *preview.Previews
	logger    *zap.Logger

	mu     sync.Mutex
	screen Screen
}

// New creates a new Session on the intake screen
func New(deps Deps) *Session {
	id := deps.ID
	if id == "" {
		id = NewID()
	}
	dir := deps.PreviewDir
	if dir == "" {
		dir = preview.DefaultDir(id)
	}
	logger := logging.OrNop(deps.Logger).With(zap.String("session", id))

	store := handoff.NewStore(deps.Slots, id)
	store.LeaseTTL = deps.LeaseTTL
	previews := preview.New(dir)
	orch := upload.New(deps.Analyzer, store.Writer(), previews, upload.Options{
		Logger:   logger,
		OnChange: deps.OnChange,
	})

	return &Session{
		ID:        id,
		intake:    intake.New(orch),
		orch:      orch,
		presenter: present.New(store.Reader(), logger),
		store:     store,
		previews:  previews,
		logger:    logger.Named("session"),
		screen:    ScreenIntake,
	}
}

// DefaultID names the session of a command-line invocation.
// HUSKYTRACE_SESSION wins; otherwise invocations from the same shell share
// a session, the way tabs of a browser each keep their own storage.
func DefaultID() string {
	if id := os.Getenv(config.EnvSession); id != "" {
		return id
	}
	return fmt.Sprintf("ppid-%d", os.Getppid())
}

// NewID returns a fresh random session id
func NewID() string {
	return uuid.NewString()
}

// Screen returns the current screen
func (s *Session) Screen() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen
}

func (s *Session) setScreen(screen Screen) {
	s.mu.Lock()
	s.screen = screen
	s.mu.Unlock()
}

// Select picks an in-memory candidate
func (s *Session) Select(c intake.Candidate) (intake.Candidate, error) {
	if err := s.toIntake(); err != nil {
		return intake.Candidate{}, err
	}
	return s.intake.Select(c)
}

// SelectPath picks a file through the picker entry point
func (s *Session) SelectPath(path string) (intake.Candidate, error) {
	if err := s.toIntake(); err != nil {
		return intake.Candidate{}, err
	}
	return s.intake.SelectPath(path)
}

// Drop picks a file through the drag-and-drop entry point
func (s *Session) Drop(text string) (intake.Candidate, error) {
	if err := s.toIntake(); err != nil {
		return intake.Candidate{}, err
	}
	return s.intake.Drop(text)
}

// Reset clears the selected file
func (s *Session) Reset() error {
	return s.intake.Reset()
}

// SetDragging toggles the drop highlight
func (s *Session) SetDragging(dragging bool) {
	s.intake.SetDragging(dragging)
}

// Dragging reports the drop highlight
func (s *Session) Dragging() bool {
	return s.intake.Dragging()
}

// Candidate returns the selected file
func (s *Session) Candidate() (intake.Candidate, bool) {
	return s.intake.Current()
}

// State returns the upload state
func (s *Session) State() upload.State {
	return s.orch.State()
}

// Busy reports whether an upload is in flight
func (s *Session) Busy() bool {
	return s.orch.Busy()
}

// Submit uploads the selected file. On success the selection is cleared
// and the session moves to the results screen.
func (s *Session) Submit(ctx context.Context) (upload.State, error) {
	finish, err := s.Begin(ctx)
	if err != nil {
		return s.orch.State(), err
	}
	return finish(), nil
}

// Begin accepts a submit of the selected file and returns the func that
// performs it. See upload.Orchestrator.Begin.
func (s *Session) Begin(ctx context.Context) (func() upload.State, error) {
	c, ok := s.intake.Current()
	if !ok {
		return nil, ErrNoCandidate
	}

	finish, err := s.orch.Begin(ctx, c)
	if err != nil {
		return nil, err
	}

	return func() upload.State {
		state := finish()
		if _, ok := state.(upload.Succeeded); ok {
			if err := s.intake.Reset(); err != nil {
				s.logger.Warn("failed to reset intake", zap.Error(err))
			}
			s.setScreen(ScreenResults)
		}
		return state
	}, nil
}

// Results loads the results screen. present.ErrNoResult means the session
// went back to the intake screen instead.
func (s *Session) Results(ctx context.Context) (*present.View, error) {
	view, err := s.presenter.Load(ctx)
	if err != nil {
		if errors.Is(err, present.ErrNoResult) {
			s.setScreen(ScreenIntake)
		}
		return nil, err
	}
	s.setScreen(ScreenResults)
	return view, nil
}

// Back leaves the results screen for a new intake attempt
func (s *Session) Back() error {
	if err := s.orch.Restart(); err != nil {
		return err
	}
	s.setScreen(ScreenIntake)
	return nil
}

// toIntake returns to the intake screen when a file is picked from results
func (s *Session) toIntake() error {
	if s.Screen() == ScreenResults {
		return s.Back()
	}
	return nil
}

// Discard forgets everything the session stored, as closing a tab would
func (s *Session) Discard(ctx context.Context) error {
	if s.Busy() {
		return upload.ErrInFlight
	}
	var errs []error
	if err := s.store.Writer().Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.previews.Purge(); err != nil {
		errs = append(errs, err)
	}
	if err := s.intake.Reset(); err != nil {
		errs = append(errs, err)
	}
	s.setScreen(ScreenIntake)
	return errors.Join(errs...)
}
