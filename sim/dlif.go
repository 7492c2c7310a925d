package sim

import (
	"fmt"
	"math"
)

// Soma combination rules for dendritic LIF neurons.
const (
	// CombineSum fires on Σ gainᵢ·[vᵢ >= θᵢ] (thresholded sum).
	CombineSum = "sum"
	// CombineProduct fires on Π gainᵢ·[vᵢ >= θᵢ]; every compartment must be active.
	CombineProduct = "product"
)

// ValidCombines is the set of recognized soma combination rules.
var ValidCombines = map[string]bool{"": true, CombineSum: true, CombineProduct: true}

// Compartment is one dendritic branch of a DendriticLIF neuron.
type Compartment struct {
	Name string
	// Inputs maps neuron input ports to the coefficient applied to their drive.
	// Ports absent from the map do not reach this compartment.
	Inputs    map[string]float64
	Tau       float64
	Threshold float64
	// Gain scales the compartment's contribution to the soma; nil means 1.
	Gain *float64
}

func (c Compartment) gain() float64 {
	if c.Gain == nil {
		return 1
	}
	return *c.Gain
}

// DendriticLIFParams configures a DendriticLIF neuron.
type DendriticLIFParams struct {
	Compartments  []Compartment
	Combine       string
	SomaThreshold float64
	Reset         string
	Latency       float64
}

// Validate checks parameter ranges.
func (p DendriticLIFParams) Validate() error {
	if len(p.Compartments) == 0 {
		return fmt.Errorf("dendritic lif needs at least one compartment")
	}
	if !ValidCombines[p.Combine] {
		return fmt.Errorf("unknown soma combination %q", p.Combine)
	}
	if !ValidResets[p.Reset] {
		return fmt.Errorf("unknown reset policy %q", p.Reset)
	}
	if math.IsNaN(p.SomaThreshold) || math.IsInf(p.SomaThreshold, 0) || p.SomaThreshold <= 0 {
		return fmt.Errorf("soma threshold must be positive and finite, got %v", p.SomaThreshold)
	}
	if p.Latency < 0 || math.IsNaN(p.Latency) || math.IsInf(p.Latency, 0) {
		return fmt.Errorf("latency must be non-negative and finite, got %v", p.Latency)
	}
	seen := make(map[string]bool, len(p.Compartments))
	for i, c := range p.Compartments {
		if c.Name == "" {
			return fmt.Errorf("compartment %d has no name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate compartment %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Inputs) == 0 {
			return fmt.Errorf("compartment %q has no inputs", c.Name)
		}
		if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
			return fmt.Errorf("compartment %q threshold must be finite", c.Name)
		}
		if math.IsNaN(c.Tau) || math.IsInf(c.Tau, 0) {
			return fmt.Errorf("compartment %q tau must be finite", c.Name)
		}
		if c.Gain != nil && (math.IsNaN(*c.Gain) || math.IsInf(*c.Gain, 0)) {
			return fmt.Errorf("compartment %q gain must be finite", c.Name)
		}
	}
	return nil
}

// DendriticLIF has independent leaky compartments feeding a shared soma through a
// nonlinear combination, which lets one neuron separate XOR-like input patterns.
type DendriticLIF struct {
	params DendriticLIFParams
	v      []float64
	soma   float64
	last   float64
	spikes int
}

// NewDendriticLIF creates a dendritic LIF neuron at rest.
func NewDendriticLIF(params DendriticLIFParams) (*DendriticLIF, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	comps := make([]Compartment, len(params.Compartments))
	for i, c := range params.Compartments {
		inputs := make(map[string]float64, len(c.Inputs))
		for port, coef := range c.Inputs {
			inputs[port] = coef
		}
		c.Inputs = inputs
		if c.Gain != nil {
			c.Gain = Value(*c.Gain)
		}
		comps[i] = c
	}
	params.Compartments = comps
	return &DendriticLIF{params: params, v: make([]float64, len(comps))}, nil
}

// MustDendriticLIF is NewDendriticLIF for statically known parameters; it panics on invalid ones.
func MustDendriticLIF(params DendriticLIFParams) *DendriticLIF {
	n, err := NewDendriticLIF(params)
	if err != nil {
		panic(err)
	}
	return n
}

func (n *DendriticLIF) Kind() string { return "dlif" }

// InputPorts lists every port some compartment listens to, in compartment order.
func (n *DendriticLIF) InputPorts() []string {
	var ports []string
	seen := map[string]bool{}
	for _, c := range n.params.Compartments {
		for _, p := range sortedKeys(c.Inputs) {
			if !seen[p] {
				seen[p] = true
				ports = append(ports, p)
			}
		}
	}
	return ports
}

func (n *DendriticLIF) Process(env ProcessEnv, inputs []Input) ([]Emission, error) {
	now := env.Now()
	dt := now - n.last
	for i, c := range n.params.Compartments {
		n.v[i] = leak(n.v[i], dt, c.Tau)
	}
	n.last = now
	// Inputs are applied in delivery order so float sums are reproducible.
	for _, in := range inputs {
		drive := in.Drive()
		for i, c := range n.params.Compartments {
			if coef, ok := c.Inputs[in.Port]; ok {
				n.v[i] += coef * drive
			}
		}
	}
	n.soma = n.combine()
	if n.soma < n.params.SomaThreshold {
		return nil, nil
	}
	for i, c := range n.params.Compartments {
		if n.params.Reset == ResetSubtract {
			if n.v[i] >= c.Threshold {
				n.v[i] -= c.Threshold
			}
			continue
		}
		n.v[i] = 0
	}
	n.spikes++
	return []Emission{{Latency: n.params.Latency}}, nil
}

func (n *DendriticLIF) combine() float64 {
	if n.params.Combine == CombineProduct {
		out := 1.0
		for i, c := range n.params.Compartments {
			if n.v[i] < c.Threshold {
				return 0
			}
			out *= c.gain()
		}
		return out
	}
	var out float64
	for i, c := range n.params.Compartments {
		if n.v[i] >= c.Threshold {
			out += c.gain()
		}
	}
	return out
}

func (n *DendriticLIF) Potential() float64 { return n.soma }

func (n *DendriticLIF) State() NeuronState {
	return NeuronState{
		Kind:         n.Kind(),
		Potential:    n.soma,
		LastUpdate:   n.last,
		Compartments: append([]float64(nil), n.v...),
		SpikeCount:   n.spikes,
	}
}

func (n *DendriticLIF) Restore(s NeuronState) error {
	if s.Kind != n.Kind() {
		return fmt.Errorf("cannot restore %s state into dlif neuron", s.Kind)
	}
	if len(s.Compartments) != len(n.v) {
		return fmt.Errorf("dlif state has %d compartments, neuron has %d", len(s.Compartments), len(n.v))
	}
	copy(n.v, s.Compartments)
	n.soma = s.Potential
	n.last = s.LastUpdate
	n.spikes = s.SpikeCount
	return nil
}

func (n *DendriticLIF) Clone() NeuronModel {
	c := *n
	c.v = append([]float64(nil), n.v...)
	return &c
}
