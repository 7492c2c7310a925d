package sim

import (
	"fmt"
	"math"
)

// LIFParams configures a leaky integrate-and-fire neuron.
type LIFParams struct {
	// Tau is the membrane time constant; Tau <= 0 disables leak.
	Tau       float64
	Threshold float64
	// Reset is ResetHard (default) or ResetSubtract.
	Reset string
	// Refractory is the absolute refractory period following a spike.
	Refractory float64
	// Latency is the intrinsic delay between threshold crossing and the emitted spike.
	Latency float64
}

// Validate checks parameter ranges.
func (p LIFParams) Validate() error {
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) || p.Threshold <= 0 {
		return fmt.Errorf("lif threshold must be positive and finite, got %v", p.Threshold)
	}
	if math.IsNaN(p.Tau) || math.IsInf(p.Tau, 0) {
		return fmt.Errorf("lif tau must be finite, got %v", p.Tau)
	}
	if !ValidResets[p.Reset] {
		return fmt.Errorf("unknown reset policy %q", p.Reset)
	}
	if p.Refractory < 0 || math.IsNaN(p.Refractory) || math.IsInf(p.Refractory, 0) {
		return fmt.Errorf("lif refractory must be non-negative and finite, got %v", p.Refractory)
	}
	if p.Latency < 0 || math.IsNaN(p.Latency) || math.IsInf(p.Latency, 0) {
		return fmt.Errorf("lif latency must be non-negative and finite, got %v", p.Latency)
	}
	return nil
}

// LIF is a leaky integrate-and-fire neuron:
//
//	v ← v·exp(-(now-last)/τ) + Σ wᵢ·aᵢ
//
// firing on every output once v >= Threshold.
type LIF struct {
	params       LIFParams
	v            float64
	sampled      float64
	last         float64
	refractUntil float64
	spikes       int
}

// NewLIF creates a LIF neuron at rest.
func NewLIF(params LIFParams) (*LIF, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &LIF{params: params}, nil
}

// MustLIF is NewLIF for statically known parameters; it panics on invalid ones.
func MustLIF(params LIFParams) *LIF {
	n, err := NewLIF(params)
	if err != nil {
		panic(err)
	}
	return n
}

func (n *LIF) Kind() string { return "lif" }

// Params returns the neuron's parameters.
func (n *LIF) Params() LIFParams { return n.params }

func (n *LIF) Process(env ProcessEnv, inputs []Input) ([]Emission, error) {
	now := env.Now()
	n.v = leak(n.v, now-n.last, n.params.Tau)
	n.last = now
	if now < n.refractUntil {
		n.sampled = n.v
		return nil, nil
	}
	for _, in := range inputs {
		n.v += in.Drive()
	}
	n.sampled = n.v
	if n.v < n.params.Threshold {
		return nil, nil
	}
	n.v = resetPotential(n.v, n.params.Threshold, n.params.Reset)
	n.spikes++
	n.refractUntil = now + n.params.Refractory
	return []Emission{{Latency: n.params.Latency}}, nil
}

func (n *LIF) Potential() float64 { return n.sampled }

func (n *LIF) State() NeuronState {
	return NeuronState{
		Kind:         n.Kind(),
		Potential:    n.v,
		LastUpdate:   n.last,
		RefractUntil: n.refractUntil,
		SpikeCount:   n.spikes,
	}
}

func (n *LIF) Restore(s NeuronState) error {
	if s.Kind != n.Kind() {
		return fmt.Errorf("cannot restore %s state into lif neuron", s.Kind)
	}
	n.v = s.Potential
	n.sampled = s.Potential
	n.last = s.LastUpdate
	n.refractUntil = s.RefractUntil
	n.spikes = s.SpikeCount
	return nil
}

func (n *LIF) Clone() NeuronModel {
	c := *n
	return &c
}

// leak decays v over dt with time constant tau.
func leak(v, dt, tau float64) float64 {
	if dt <= 0 || tau <= 0 || v == 0 {
		return v
	}
	return v * math.Exp(-dt/tau)
}

func resetPotential(v, threshold float64, policy string) float64 {
	if policy == ResetSubtract {
		return v - threshold
	}
	return 0
}
