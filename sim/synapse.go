package sim

import "github.com/sirupsen/logrus"

// SynapseState is the mutable state of a synapse during a run.
type SynapseState struct {
	Weight     float64 `json:"weight"`
	LastPre    float64 `json:"last_pre"`
	HasPre     bool    `json:"has_pre"`
	LastPost   float64 `json:"last_post"`
	HasPost    bool    `json:"has_post"`
	Modulation float64 `json:"modulation"`
	Updates    int     `json:"updates"`
}

// synapseRuntime pairs a graph synapse with its per-run state.
type synapseRuntime struct {
	node  *SynapseNode
	state SynapseState
}

func newSynapseRuntime(node *SynapseNode) *synapseRuntime {
	return &synapseRuntime{
		node:  node,
		state: SynapseState{Weight: node.Weight, Modulation: 1},
	}
}

// transmit delays a spike that reached the pre endpoint and retargets it at post.
// The weight is not applied here; the receiving neuron reads it at integration time.
func (s *synapseRuntime) transmit(in Spike) Spike {
	return Spike{
		Source:      s.node.Pre,
		Destination: s.node.Post,
		Via:         s.node.ID,
		Interval:    in.Interval.Shift(s.node.Delay),
		Payload:     in.Payload,
	}
}

// onPre records a pre-synaptic spike and runs the plasticity rule.
func (s *synapseRuntime) onPre(t float64) *PlasticityBoundsError {
	if s.node.Plasticity == nil {
		return nil
	}
	s.state.LastPre, s.state.HasPre = t, true
	return s.evaluate(t)
}

// onPost records a post-synaptic spike and runs the plasticity rule.
func (s *synapseRuntime) onPost(t float64) *PlasticityBoundsError {
	if s.node.Plasticity == nil {
		return nil
	}
	s.state.LastPost, s.state.HasPost = t, true
	return s.evaluate(t)
}

// evaluate applies the rule to the latest pre/post pair. Without both times the
// weight is left alone.
func (s *synapseRuntime) evaluate(now float64) *PlasticityBoundsError {
	if !s.state.HasPre || !s.state.HasPost {
		return nil
	}
	delta := s.node.Plasticity.WeightChange(s.state.LastPost-s.state.LastPre, s.state.Modulation)
	if delta == 0 || !finite(delta) {
		return nil
	}
	next := s.state.Weight + delta
	s.state.Updates++
	if s.node.Bounds == nil {
		s.state.Weight = next
		return nil
	}
	clamped, hit := s.node.Bounds.Clamp(next)
	s.state.Weight = clamped
	if !hit {
		return nil
	}
	warn := &PlasticityBoundsError{Synapse: s.node.Name, Time: now, Requested: next, Clamped: clamped}
	logrus.Warnf("[t=%g] %v", now, warn)
	return warn
}
