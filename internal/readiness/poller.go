// Package readiness provides a bounded wait-until-condition poller and the
// Kubernetes readiness checks used during cluster and add-on bootstrap.
package readiness

import (
	"fmt"
	"time"
)

// Check is a readiness probe. It reports whether the condition holds and a
// short diagnostic describing the current state, used in timeout errors.
type Check func() (ready bool, diagnostic string)

// TimeoutError reports that a condition did not become true within its budget.
// It carries the diagnostic from the last probe.
type TimeoutError struct {
	Timeout    time.Duration
	Diagnostic string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("condition not met within %s", e.Timeout)
	}
	return fmt.Sprintf("condition not met within %s: %s", e.Timeout, e.Diagnostic)
}

// Wait repeatedly invokes check until it reports ready, sleeping interval
// between probes. The budget is measured from the first invocation, never
// reset per iteration. A ready result returns immediately with no trailing
// sleep; exhausting the budget returns a *TimeoutError with the last
// diagnostic. The loop is deliberately a plain synchronous sleep-and-retry:
// the whole process is single threaded and short lived.
func Wait(check Check, timeout, interval time.Duration) error {
	start := time.Now()
	for {
		ready, diagnostic := check()
		if ready {
			return nil
		}
		if time.Since(start) >= timeout {
			return &TimeoutError{Timeout: timeout, Diagnostic: diagnostic}
		}
		time.Sleep(interval)
	}
}
