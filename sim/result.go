package sim

import (
	"fmt"

	"github.com/pathway-sim/pathway-sim/sim/trace"
)

// RunStatus is the lifecycle state of a Pathway.
type RunStatus string

const (
	StatusBuilding  RunStatus = "building"
	StatusReady     RunStatus = "ready"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// String implements fmt.Stringer.
func (s RunStatus) String() string { return string(s) }

// FinalStates holds every component's state keyed by endpoint id.
type FinalStates struct {
	Neurons  map[EndpointID]NeuronState  `json:"neurons"`
	Synapses map[EndpointID]SynapseState `json:"synapses"`
	Windows  map[EndpointID]WindowState  `json:"windows"`
	Channels map[EndpointID]float64      `json:"channels"`
}

// RunResult is the outcome of a run.
type RunResult struct {
	Status RunStatus
	// Reason explains a Failed status.
	Reason string
	// Err is the error behind a Failed status, usually a *SchedulingError.
	Err error
	// FailedEvent is the offending event of a Failed run.
	FailedEvent *Event
	Clock       float64
	// Truncated is set when a stop signal ended the run before MaxTime.
	Truncated   bool
	SpikeLog    []Spike
	FinalStates FinalStates
	Warnings    []PlasticityBoundsError
	Traces      *trace.Recorder
}

// Summary returns a one-line description of the result.
func (r *RunResult) Summary() string {
	s := fmt.Sprintf("%s at t=%g: %d spikes delivered, %d warnings", r.Status, r.Clock, len(r.SpikeLog), len(r.Warnings))
	if r.Truncated {
		s += " (truncated)"
	}
	if r.Status == StatusFailed {
		s += ": " + r.Reason
	}
	return s
}

// SpikesTo returns the delivered spikes whose destination is id, in delivery order.
func (r *RunResult) SpikesTo(id EndpointID) []Spike {
	var out []Spike
	for _, s := range r.SpikeLog {
		if s.Destination == id {
			out = append(out, s)
		}
	}
	return out
}
