// Package teardown runs ordered cleanup steps with per-step failure
// isolation, so one failing step never prevents later steps from running.
package teardown

import (
	"fmt"
	"log/slog"
)

// Step is a named, independently fallible cleanup operation.
type Step struct {
	Label string
	Run   func() error
}

// Failure records one failed step.
type Failure struct {
	Label   string
	Message string
}

// Report aggregates the outcome of a teardown run.
type Report struct {
	// Attempted lists every step label in execution order.
	Attempted []string
	// Failures lists the steps that returned an error, in execution order.
	Failures []Failure
}

// OK reports whether every step succeeded.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

// Err derives the overall status: nil on full success, otherwise a summary
// error. Partial failure is the expected mode for teardown and is reported,
// not raised per step; the point is maximal forward progress.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("completed with %d error(s)", len(r.Failures))
}

// Run executes every step in order. A failing step is recorded and the run
// continues with the next step; there is no early abort and no rollback of
// prior steps.
func Run(logger *slog.Logger, steps []Step) *Report {
	report := &Report{}
	for _, step := range steps {
		report.Attempted = append(report.Attempted, step.Label)
		if err := step.Run(); err != nil {
			report.Failures = append(report.Failures, Failure{
				Label:   step.Label,
				Message: err.Error(),
			})
			if logger != nil {
				logger.Warn("teardown step failed", "step", step.Label, "error", err)
			}
			continue
		}
		if logger != nil {
			logger.Debug("teardown step completed", "step", step.Label)
		}
	}
	return report
}
