// Package circuit loads circuit definitions from YAML into sim.Group trees and
// provides stock circuits.
package circuit

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pathway-sim/pathway-sim/sim"
)

// Spec is the YAML form of a sim.Group. Nested groups use the same layout.
type Spec struct {
	Name     string        `yaml:"name"`
	Relays   []string      `yaml:"relays,omitempty"`
	Neurons  []NeuronSpec  `yaml:"neurons,omitempty"`
	Synapses []SynapseSpec `yaml:"synapses,omitempty"`
	Windows  []WindowSpec  `yaml:"windows,omitempty"`
	Channels []ChannelSpec `yaml:"channels,omitempty"`
	Groups   []Spec        `yaml:"groups,omitempty"`
	Inputs   []PortSpec    `yaml:"inputs,omitempty"`
	Outputs  []PortSpec    `yaml:"outputs,omitempty"`
}

// NeuronSpec declares a neuron of a registered kind.
type NeuronSpec struct {
	Name    string    `yaml:"name"`
	Kind    string    `yaml:"kind"`
	Params  yaml.Node `yaml:"params"`
	Inputs  []string  `yaml:"inputs,omitempty"`
	Outputs []string  `yaml:"outputs,omitempty"`
}

// SynapseSpec declares a synapse.
type SynapseSpec struct {
	Name       string            `yaml:"name,omitempty"`
	Pre        string            `yaml:"pre"`
	Post       string            `yaml:"post"`
	Weight     float64           `yaml:"weight"`
	Delay      float64           `yaml:"delay"`
	Plasticity *PlasticitySpec   `yaml:"plasticity,omitempty"`
	Bounds     *sim.WeightBounds `yaml:"bounds,omitempty"`
}

// PlasticitySpec selects a plasticity rule. Unset constants take sim.DefaultSTDP values.
type PlasticitySpec struct {
	Rule     string   `yaml:"rule"`
	APlus    *float64 `yaml:"a_plus,omitempty"`
	AMinus   *float64 `yaml:"a_minus,omitempty"`
	TauPlus  *float64 `yaml:"tau_plus,omitempty"`
	TauMinus *float64 `yaml:"tau_minus,omitempty"`
	Window   *float64 `yaml:"window,omitempty"`
}

// WindowSpec declares a coincidence window.
type WindowSpec struct {
	Name       string   `yaml:"name"`
	Subscribe  []string `yaml:"subscribe"`
	Span       float64  `yaml:"span"`
	Mode       string   `yaml:"mode,omitempty"`
	MinSources int      `yaml:"min_sources"`
	Cooldown   float64  `yaml:"cooldown,omitempty"`
	Retain     bool     `yaml:"retain,omitempty"`
}

// ChannelSpec declares a broadcast channel.
type ChannelSpec struct {
	Name        string   `yaml:"name"`
	Initial     float64  `yaml:"initial,omitempty"`
	Subscribers []string `yaml:"subscribers,omitempty"`
}

// PortSpec aliases a group port onto a member.
type PortSpec struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
}

// Load reads and parses a YAML circuit file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading circuit: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML circuit document.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing circuit: %w", err)
	}
	return &spec, nil
}

// LoadGroup loads a circuit file and builds its group tree.
func LoadGroup(path string) (*sim.Group, error) {
	spec, err := Load(path)
	if err != nil {
		return nil, err
	}
	return spec.Group()
}

// Group builds the sim.Group tree. Reference errors (dangling names, cycles) are
// left to sim.Compile; Group only reports problems with the definitions themselves.
func (s *Spec) Group() (*sim.Group, error) {
	return s.build(s.Name)
}

func (s *Spec) build(path string) (*sim.Group, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("%s: group has no name", path)
	}
	g := sim.NewGroup(s.Name).Relay(s.Relays...)
	for _, n := range s.Neurons {
		params := &n.Params
		model, err := NewNeuron(n.Kind, params)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", path, n.Name, err)
		}
		g.Neuron(n.Name, model, n.Inputs, n.Outputs)
	}
	for i, syn := range s.Synapses {
		def := sim.SynapseDef{
			Name:   syn.Name,
			Pre:    syn.Pre,
			Post:   syn.Post,
			Weight: syn.Weight,
			Delay:  syn.Delay,
			Bounds: syn.Bounds,
		}
		if syn.Plasticity != nil {
			rule, err := syn.Plasticity.PlasticityRule()
			if err != nil {
				return nil, fmt.Errorf("%s: synapse %d: %w", path, i, err)
			}
			def.Plasticity = rule
		}
		g.AddSynapse(def)
	}
	for _, w := range s.Windows {
		mode := sim.WindowMode(w.Mode)
		if mode == "" {
			mode = sim.WindowRolling
		}
		g.AddWindow(sim.WindowDef{
			Name:       w.Name,
			Subscribe:  w.Subscribe,
			Span:       w.Span,
			Mode:       mode,
			MinSources: w.MinSources,
			Cooldown:   w.Cooldown,
			Retain:     w.Retain,
		})
	}
	for _, c := range s.Channels {
		g.Channel(c.Name, c.Initial, c.Subscribers...)
	}
	for i := range s.Groups {
		sub, err := s.Groups[i].build(path + "/" + s.Groups[i].Name)
		if err != nil {
			return nil, err
		}
		g.Add(sub)
	}
	for _, p := range s.Inputs {
		g.Input(p.Name, p.Target)
	}
	for _, p := range s.Outputs {
		g.Output(p.Name, p.Target)
	}
	return g, nil
}

// PlasticityRule returns the configured plasticity rule, or nil for "none".
func (p *PlasticitySpec) PlasticityRule() (sim.PlasticityRule, error) {
	stdp := sim.DefaultSTDP()
	for _, f := range []struct {
		src *float64
		dst *float64
	}{
		{p.APlus, &stdp.APlus},
		{p.AMinus, &stdp.AMinus},
		{p.TauPlus, &stdp.TauPlus},
		{p.TauMinus, &stdp.TauMinus},
		{p.Window, &stdp.Window},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	switch name := sim.NormalizePlasticityRuleName(p.Rule); name {
	case sim.PlasticityNone:
		return nil, nil
	case sim.PlasticitySTDP:
		return stdp, nil
	case sim.PlasticityReward:
		return sim.RewardSTDP{STDP: stdp}, nil
	default:
		return nil, fmt.Errorf("unknown plasticity rule %q", p.Rule)
	}
}
