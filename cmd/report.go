package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pathway-sim/pathway-sim/sim"
	"github.com/pathway-sim/pathway-sim/sim/trace"
)

// Report is the JSON summary printed after a run.
type Report struct {
	Circuit         string               `json:"circuit"`
	Status          string               `json:"status"`
	Reason          string               `json:"reason,omitempty"`
	Clock           float64              `json:"clock"`
	Truncated       bool                 `json:"truncated,omitempty"`
	SpikesDelivered int                  `json:"spikes_delivered"`
	Outputs         map[string][]float64 `json:"outputs"`
	Warnings        int                  `json:"plasticity_warnings"`
	CheckpointID    string               `json:"checkpoint_id,omitempty"`
	Endpoints       []EndpointReport     `json:"endpoints,omitempty"`
}

// EndpointReport summarizes the recorded spikes of one endpoint.
type EndpointReport struct {
	Name    string  `json:"name"`
	Spikes  int     `json:"spikes"`
	Rate    float64 `json:"rate"`
	MeanISI float64 `json:"mean_isi,omitempty"`
}

// NewReport builds the report of res over g. Outputs lists the delivery times of
// every spike reaching one of the root group's output ports.
func NewReport(name string, g *sim.Graph, res *sim.RunResult) *Report {
	r := &Report{
		Circuit:         name,
		Status:          res.Status.String(),
		Reason:          res.Reason,
		Clock:           res.Clock,
		Truncated:       res.Truncated,
		SpikesDelivered: len(res.SpikeLog),
		Outputs:         make(map[string][]float64),
		Warnings:        len(res.Warnings),
	}
	for port, id := range g.Groups()[0].Outputs {
		times := []float64{}
		for _, s := range res.SpikesTo(id) {
			times = append(times, s.Interval.Start)
		}
		r.Outputs[port] = times
	}
	for _, es := range trace.Summarize(res.Traces, res.Clock).Endpoints {
		r.Endpoints = append(r.Endpoints, EndpointReport{
			Name:    g.Name(sim.EndpointID(es.Endpoint)),
			Spikes:  es.SpikeCount,
			Rate:    es.Rate,
			MeanISI: es.MeanISI,
		})
	}
	return r
}

// Print writes the report to w.
func (r *Report) Print(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "=== Simulation Results ===\n%s\n", data)
	return err
}

// writeTraces exports the recorded traces as JSON to path.
func writeTraces(path string, rec *trace.Recorder) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing traces: %w", err)
	}
	return nil
}
