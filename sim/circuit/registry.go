package circuit

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pathway-sim/pathway-sim/sim"
)

// NeuronFactory builds a neuron model from its YAML params node. params is nil when
// the definition has no params block.
type NeuronFactory func(params *yaml.Node) (sim.NeuronModel, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NeuronFactory)
)

// Register makes a neuron kind available to circuit definitions. It panics if kind
// is empty, factory is nil or kind is already registered.
func Register(kind string, factory NeuronFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if kind == "" || factory == nil {
		panic("circuit: Register needs a kind and a factory")
	}
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("circuit: Register called twice for kind %q", kind))
	}
	registry[kind] = factory
}

// Kinds returns the registered neuron kinds in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewNeuron builds a neuron of the given kind.
func NewNeuron(kind string, params *yaml.Node) (sim.NeuronModel, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown neuron kind %q; registered: %v", kind, Kinds())
	}
	return factory(params)
}

func init() {
	Register("lif", newLIF)
	Register("dlif", newDendriticLIF)
}

// decodeStrict decodes node into out, rejecting unknown keys.
func decodeStrict(node *yaml.Node, out any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(out)
}

type lifParams struct {
	Tau        float64 `yaml:"tau"`
	Threshold  float64 `yaml:"threshold"`
	Reset      string  `yaml:"reset"`
	Refractory float64 `yaml:"refractory"`
	Latency    float64 `yaml:"latency"`
}

func newLIF(params *yaml.Node) (sim.NeuronModel, error) {
	p := lifParams{Threshold: 1}
	if err := decodeStrict(params, &p); err != nil {
		return nil, fmt.Errorf("lif params: %w", err)
	}
	return sim.NewLIF(sim.LIFParams{
		Tau:        p.Tau,
		Threshold:  p.Threshold,
		Reset:      p.Reset,
		Refractory: p.Refractory,
		Latency:    p.Latency,
	})
}

type compartmentParams struct {
	Name      string             `yaml:"name"`
	Inputs    map[string]float64 `yaml:"inputs"`
	Tau       float64            `yaml:"tau"`
	Threshold float64            `yaml:"threshold"`
	// Gain defaults to 1 when omitted; an explicit 0 mutes the compartment.
	Gain *float64 `yaml:"gain"`
}

type dlifParams struct {
	Compartments  []compartmentParams `yaml:"compartments"`
	Combine       string              `yaml:"combine"`
	SomaThreshold float64             `yaml:"soma_threshold"`
	Reset         string              `yaml:"reset"`
	Latency       float64             `yaml:"latency"`
}

func newDendriticLIF(params *yaml.Node) (sim.NeuronModel, error) {
	var p dlifParams
	if err := decodeStrict(params, &p); err != nil {
		return nil, fmt.Errorf("dlif params: %w", err)
	}
	comps := make([]sim.Compartment, len(p.Compartments))
	for i, c := range p.Compartments {
		comps[i] = sim.Compartment{Name: c.Name, Inputs: c.Inputs, Tau: c.Tau, Threshold: c.Threshold, Gain: c.Gain}
	}
	return sim.NewDendriticLIF(sim.DendriticLIFParams{
		Compartments:  comps,
		Combine:       p.Combine,
		SomaThreshold: p.SomaThreshold,
		Reset:         p.Reset,
		Latency:       p.Latency,
	})
}
