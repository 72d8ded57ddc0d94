// Package workflow runs an ordered plan of named steps.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInterrupted = errors.New("interrupted")

type Policy int

const (
	// Required steps abort the plan on failure.
	Required Policy = iota
	// BestEffort failures are recorded as warnings.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "required"
}

type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Step is one named unit of work. Run may return a Warning to report a
// non-fatal problem from an otherwise successful step.
type Step struct {
	Name   string
	Policy Policy
	// Skip, when non-empty, is the reason the step is not run.
	Skip string
	Run  func(ctx context.Context) error
}

type Plan struct {
	Name  string
	Steps []Step
}

// Warning marks an error as non-fatal regardless of the step's policy.
type Warning struct{ Err error }

func (w *Warning) Error() string { return w.Err.Error() }
func (w *Warning) Unwrap() error { return w.Err }

// Warn wraps a formatted message as a Warning.
func Warn(format string, args ...any) error {
	return &Warning{Err: fmt.Errorf(format, args...)}
}

type StepResult struct {
	Seq      int
	Name     string
	Status   Status
	Message  string
	Duration time.Duration
}

// Report is the outcome of a plan. Err is nil unless a required step
// failed or the run was interrupted.
type Report struct {
	Plan    string
	Steps   []StepResult
	Started time.Time
	Elapsed time.Duration
	Err     error
}

func (r *Report) Warnings() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StatusWarning {
			out = append(out, s)
		}
	}
	return out
}

func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *Report) Interrupted() bool {
	return errors.Is(r.Err, ErrInterrupted)
}

// Observer is notified around every step.
type Observer interface {
	StepStarted(seq int, s Step)
	StepFinished(res StepResult)
}

type Runner struct {
	Observer Observer
	now      func() time.Time
}

func NewRunner(obs Observer) *Runner {
	return &Runner{Observer: obs, now: time.Now}
}

// Run executes the plan's steps in order. It stops at the first failing
// required step or when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, p Plan) *Report {
	rep := &Report{Plan: p.Name, Started: r.now()}
	defer func() { rep.Elapsed = r.now().Sub(rep.Started) }()

	for i, s := range p.Steps {
		seq := i + 1
		if ctx.Err() != nil {
			rep.Err = fmt.Errorf("%w before %s", ErrInterrupted, s.Name)
			return rep
		}

		if s.Skip != "" {
			r.finish(rep, StepResult{Seq: seq, Name: s.Name, Status: StatusSkipped, Message: s.Skip})
			continue
		}

		if r.Observer != nil {
			r.Observer.StepStarted(seq, s)
		}
		start := r.now()
		err := s.Run(ctx)
		res := StepResult{Seq: seq, Name: s.Name, Status: StatusOK, Duration: r.now().Sub(start)}

		switch {
		case err == nil:
		case ctx.Err() != nil:
			res.Status = StatusFailed
			res.Message = err.Error()
			r.finish(rep, res)
			rep.Err = fmt.Errorf("%w during %s", ErrInterrupted, s.Name)
			return rep
		case isWarning(err) || s.Policy == BestEffort:
			res.Status = StatusWarning
			res.Message = err.Error()
		default:
			res.Status = StatusFailed
			res.Message = err.Error()
			r.finish(rep, res)
			rep.Err = fmt.Errorf("%s: %w", s.Name, err)
			return rep
		}
		r.finish(rep, res)
	}
	return rep
}

func (r *Runner) finish(rep *Report, res StepResult) {
	rep.Steps = append(rep.Steps, res)
	if r.Observer != nil {
		r.Observer.StepFinished(res)
	}
}

func isWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}
