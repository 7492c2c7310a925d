package sim

import "fmt"

// GraphValidationError reports a structural problem found while compiling a Group tree:
// a dangling reference, a negative delay, an unresolved or cyclic Group port alias.
// A build that returns it has not produced any Graph.
type GraphValidationError struct {
	Path   string // qualified name of the offending element
	Reason string
}

func (e *GraphValidationError) Error() string {
	if e.Path == "" {
		return "graph validation: " + e.Reason
	}
	return fmt.Sprintf("graph validation: %s: %s", e.Path, e.Reason)
}

func invalid(path, format string, args ...any) *GraphValidationError {
	return &GraphValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// SchedulingError halts a run. Event is the offending event.
type SchedulingError struct {
	Reason string
	Event  Event
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling: %s (event seq=%d %s)", e.Reason, e.Event.Seq, e.Event.Spike)
}

// PlasticityBoundsError records a weight update that left the synapse's configured
// bounds. It is recoverable: the weight is clamped and the run continues.
type PlasticityBoundsError struct {
	Synapse   string  `json:"synapse"`
	Time      float64 `json:"time"`
	Requested float64 `json:"requested"`
	Clamped   float64 `json:"clamped"`
}

func (e *PlasticityBoundsError) Error() string {
	return fmt.Sprintf("plasticity: synapse %s weight %g out of bounds at t=%g, clamped to %g",
		e.Synapse, e.Requested, e.Time, e.Clamped)
}
