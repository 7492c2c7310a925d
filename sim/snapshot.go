package sim

import (
	"fmt"
	"slices"

	"github.com/pathway-sim/pathway-sim/sim/trace"
)

// SnapshotVersion is bumped whenever the Snapshot layout changes incompatibly.
const SnapshotVersion = 1

// Snapshot is the complete resumable state of a Ready or Running pathway.
// Restoring it against the same graph and continuing produces the same spike log
// and final states as the uninterrupted run.
type Snapshot struct {
	Version  int                     `json:"version"`
	Graph    GraphDescriptor         `json:"graph"`
	Config   RunConfig               `json:"config"`
	TieBreak string                  `json:"tie_break"`
	Status   RunStatus               `json:"status"`
	Clock    float64                 `json:"clock"`
	NextSeq  uint64                  `json:"next_seq"`
	Queue    []Event                 `json:"queue"`
	States   FinalStates             `json:"states"`
	SpikeLog []Spike                 `json:"spike_log,omitempty"`
	Warnings []PlasticityBoundsError `json:"warnings,omitempty"`
	Traces   *trace.Recorder         `json:"traces,omitempty"`
}

// Snapshot exports the pathway's state. The queue is stored in canonical order.
func (p *Pathway) Snapshot() (*Snapshot, error) {
	if p.status != StatusReady && p.status != StatusRunning {
		return nil, fmt.Errorf("snapshot: pathway is %s", p.status)
	}
	return &Snapshot{
		Version:  SnapshotVersion,
		Graph:    p.graph.Describe(),
		Config:   p.config,
		TieBreak: p.order.TieBreakName(),
		Status:   p.status,
		Clock:    p.clock,
		NextSeq:  p.nextSeq,
		Queue:    p.queue.Sorted(),
		States:   p.states(),
		SpikeLog: slices.Clone(p.spikeLog),
		Warnings: slices.Clone(p.warnings),
		Traces:   p.traces.Clone(),
	}, nil
}

// Restore rebuilds a pathway over g from snap. cfg may extend MaxTime but must use
// the tie-break policy the snapshot was taken with.
func Restore(g *Graph, snap *Snapshot, cfg RunConfig) (*Pathway, error) {
	if snap == nil {
		return nil, fmt.Errorf("restore: nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("restore: unsupported snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}
	if snap.Status != StatusReady && snap.Status != StatusRunning {
		return nil, fmt.Errorf("restore: cannot resume a %s snapshot", snap.Status)
	}
	if err := snap.Graph.Matches(g); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	p, err := NewPathwayFromGraph(g, cfg)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	if name := p.order.TieBreakName(); name != snap.TieBreak {
		return nil, fmt.Errorf("restore: snapshot uses tie-break %q, config uses %q", snap.TieBreak, name)
	}

	for i, n := range g.neurons {
		st, ok := snap.States.Neurons[n.ID]
		if !ok {
			return nil, fmt.Errorf("restore: no state for neuron %s", n.Name)
		}
		if err := p.neurons[i].Restore(st); err != nil {
			return nil, fmt.Errorf("restore: neuron %s: %w", n.Name, err)
		}
	}
	for _, s := range p.synapses {
		st, ok := snap.States.Synapses[s.node.ID]
		if !ok {
			return nil, fmt.Errorf("restore: no state for synapse %s", s.node.Name)
		}
		s.state = st
	}
	for _, w := range p.windows {
		st, ok := snap.States.Windows[w.node.ID]
		if !ok {
			return nil, fmt.Errorf("restore: no state for window %s", w.node.Name)
		}
		st.Buffer = slices.Clone(st.Buffer)
		w.state = st
	}
	for _, c := range p.channels {
		v, ok := snap.States.Channels[c.node.ID]
		if !ok {
			return nil, fmt.Errorf("restore: no state for channel %s", c.node.Name)
		}
		c.value = v
	}

	p.clock = snap.Clock
	p.nextSeq = snap.NextSeq
	for _, ev := range snap.Queue {
		if ev.Seq >= snap.NextSeq {
			return nil, fmt.Errorf("restore: queued event seq %d not below next seq %d", ev.Seq, snap.NextSeq)
		}
		if err := p.check(ev); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		p.queue.Schedule(ev)
	}
	p.spikeLog = slices.Clone(snap.SpikeLog)
	p.warnings = slices.Clone(snap.Warnings)
	if snap.Traces != nil {
		p.traces = snap.Traces.Clone()
	}
	p.status = snap.Status
	return p, nil
}
