// Package saga runs an ordered list of steps across independent stores that cannot
// co-commit. Each step pairs an action with an optional compensation. When a required
// step fails, the compensations of the steps that already succeeded run in reverse order
// and the original failure is returned. Best-effort steps are logged on failure and never
// abort the saga; a best-effort step that succeeded is still compensated if it has a
// Compensate.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Step is one unit of work in a saga.
type Step struct {
	// Name identifies the step in logs and errors.
	Name string
	// Action performs the write.
	Action func(ctx context.Context) error
	// Compensate undoes Action. Nil means the step has nothing to undo.
	Compensate func(ctx context.Context) error
	// BestEffort marks writes whose failure must not fail the saga.
	BestEffort bool
}

// Observer receives saga lifecycle notifications, typically for metrics.
type Observer interface {
	StepSkipped(saga, step string, err error)
	Compensated(saga, step string)
	CompensationFailed(saga, step string, err error)
}

// Error reports a failed saga. It unwraps to the cause so callers can keep matching
// on the original store error.
type Error struct {
	Saga              string
	Step              string
	Cause             error
	CompensationFails []CompensationFailure
}

// CompensationFailure records a compensation that could not be applied.
type CompensationFailure struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("saga %s: step %s failed: %v", e.Saga, e.Step, e.Cause)
	if n := len(e.CompensationFails); n > 0 {
		msg += fmt.Sprintf(" (%d compensation(s) failed)", n)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Compensated reports whether every compensation ran cleanly.
func (e *Error) Compensated() bool {
	return len(e.CompensationFails) == 0
}

// Saga is an ordered sequence of steps. Build one per invocation; a Saga is not
// safe for concurrent Run calls.
type Saga struct {
	name     string
	steps    []Step
	logger   *slog.Logger
	observer Observer
}

type Option func(*Saga)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Saga) {
		s.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Saga) {
		s.observer = observer
	}
}

// New creates an empty saga.
func New(name string, opts ...Option) *Saga {
	s := &Saga{name: name}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Then appends a step and returns the saga for chaining.
func (s *Saga) Then(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order. Later steps only run after earlier required steps
// succeed. On a required failure the completed steps are compensated in reverse and a
// *Error wrapping the original cause is returned.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		err := step.Action(ctx)
		if err == nil {
			completed = append(completed, step)
			continue
		}
		if step.BestEffort {
			s.logger.WarnContext(ctx, "best-effort saga step failed",
				"saga", s.name,
				"step", step.Name,
				"error", err,
			)
			if s.observer != nil {
				s.observer.StepSkipped(s.name, step.Name, err)
			}
			continue
		}
		return s.compensate(ctx, step.Name, err, completed)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, failedStep string, cause error, completed []Step) error {
	sagaErr := &Error{Saga: s.name, Step: failedStep, Cause: cause}

	// Compensations run even if the caller's context is already done.
	cctx := context.WithoutCancel(ctx)
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(cctx); err != nil {
			sagaErr.CompensationFails = append(sagaErr.CompensationFails, CompensationFailure{Step: step.Name, Err: err})
			s.logger.ErrorContext(ctx, "saga compensation failed",
				"saga", s.name,
				"failed_step", failedStep,
				"compensated_step", step.Name,
				"error", cause,
				"compensation_error", err,
			)
			if s.observer != nil {
				s.observer.CompensationFailed(s.name, step.Name, err)
			}
			continue
		}
		s.logger.InfoContext(ctx, "saga step compensated",
			"saga", s.name,
			"failed_step", failedStep,
			"compensated_step", step.Name,
		)
		if s.observer != nil {
			s.observer.Compensated(s.name, step.Name)
		}
	}
	return sagaErr
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
