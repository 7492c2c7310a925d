package sim

import (
	"fmt"
	"math"
)

// EndpointID identifies an addressable element of a compiled Graph.
// IDs are dense arena indices assigned by Compile and are never reused within a Graph.
type EndpointID int

// NoEndpoint marks the absence of an endpoint, e.g. the source of an externally supplied spike.
const NoEndpoint EndpointID = -1

// Interval is a spike time with uncertainty. A zero-width interval is a precise spike.
type Interval struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// At returns a zero-width interval at t.
func At(t float64) Interval {
	return Interval{Start: t, End: t}
}

// Width returns End - Start.
func (iv Interval) Width() float64 {
	return iv.End - iv.Start
}

// Shift returns the interval moved forward by d.
func (iv Interval) Shift(d float64) Interval {
	return Interval{Start: iv.Start + d, End: iv.End + d}
}

// Validate reports whether both bounds are finite and Start <= End.
func (iv Interval) Validate() error {
	if math.IsNaN(iv.Start) || math.IsInf(iv.Start, 0) || math.IsNaN(iv.End) || math.IsInf(iv.End, 0) {
		return fmt.Errorf("non-finite interval bounds [%v, %v]", iv.Start, iv.End)
	}
	if iv.Start > iv.End {
		return fmt.Errorf("interval start %v after end %v", iv.Start, iv.End)
	}
	return nil
}

func (iv Interval) String() string {
	if iv.Start == iv.End {
		return fmt.Sprintf("%g", iv.Start)
	}
	return fmt.Sprintf("[%g, %g]", iv.Start, iv.End)
}

// Spike is an immutable timed event travelling between two endpoints.
type Spike struct {
	Source      EndpointID `json:"source"`
	Destination EndpointID `json:"destination"`
	// Via is the synapse that carried the spike, or NoEndpoint for direct deliveries.
	Via      EndpointID `json:"via"`
	Interval Interval   `json:"interval"`
	Payload  *float64   `json:"payload,omitempty"`
}

// Amplitude returns the payload value, or 1 when the spike carries no payload.
func (s Spike) Amplitude() float64 {
	if s.Payload == nil {
		return 1
	}
	return *s.Payload
}

func (s Spike) String() string {
	if s.Payload != nil {
		return fmt.Sprintf("%d->%d @%s (%g)", s.Source, s.Destination, s.Interval, *s.Payload)
	}
	return fmt.Sprintf("%d->%d @%s", s.Source, s.Destination, s.Interval)
}

// InputSpike is one element of an externally supplied input stream.
type InputSpike struct {
	Interval Interval `json:"interval" yaml:"interval"`
	Payload  *float64 `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Inputs maps destination endpoints to ordered input streams.
type Inputs map[EndpointID][]InputSpike

// Value returns a pointer to v, for spike payloads.
func Value(v float64) *float64 {
	return &v
}
