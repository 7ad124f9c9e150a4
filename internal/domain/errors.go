package domain

import "fmt"

// InsufficientComparablesError is fatal for a run: the scope is too
// narrow or the market too thin to defend any estimate.
type InsufficientComparablesError struct {
	Found   int
	Minimum int
}

func (e InsufficientComparablesError) Error() string {
	return fmt.Sprintf("insufficient comparables: %d passed the similarity floor, need %d", e.Found, e.Minimum)
}

// MethodUnavailableError is local to one evaluator and tolerated; it
// lowers coverage instead of aborting the run.
type MethodUnavailableError struct {
	Method MethodID
	Reason string
}

func (e MethodUnavailableError) Error() string {
	return fmt.Sprintf("method %s unavailable: %s", e.Method, e.Reason)
}

// NoUsableMethodError is fatal: every evaluator was unavailable.
type NoUsableMethodError struct {
	Failures map[MethodID]string
}

func (e NoUsableMethodError) Error() string {
	return fmt.Sprintf("no usable valuation method: all %d evaluators unavailable", len(e.Failures))
}

// DataUnavailableError wraps collaborator failures. Fatal only when it
// blocks comparable resolution; trend and condition degrade on it.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable from %s: %v", e.Source, e.Err)
}

func (e DataUnavailableError) Unwrap() error {
	return e.Err
}
