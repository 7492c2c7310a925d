package sim

// NeuronModel is the capability contract every neuron variant implements.
// The engine knows nothing about a model's internals beyond this interface.
//
// Process must be deterministic: the same state and the same inputs at the same time
// produce the same emissions and the same next state. The engine calls Process on a
// clone and keeps it only when the whole delivery batch succeeds.
type NeuronModel interface {
	// Kind names the model variant, e.g. "lif".
	Kind() string
	// Process integrates every input delivered at env.Now() and returns the spikes to emit.
	Process(env ProcessEnv, inputs []Input) ([]Emission, error)
	// Potential returns the membrane (or soma) potential after the last Process call.
	Potential() float64
	// State exports the model's mutable state.
	State() NeuronState
	// Restore replaces the model's mutable state.
	Restore(NeuronState) error
	// Clone returns an independent copy with identical parameters and state.
	Clone() NeuronModel
}

// ProcessEnv is the read-only view of the run a neuron sees while processing.
type ProcessEnv interface {
	// Now returns the delivery time being processed.
	Now() float64
	// Broadcast returns the current value of the named broadcast channel.
	Broadcast(name string) (float64, bool)
}

// Input is one spike delivered to a neuron input port.
type Input struct {
	Port   string
	Spike  Spike
	Weight float64
}

// Drive returns the weighted contribution of the input.
func (in Input) Drive() float64 {
	return in.Weight * in.Spike.Amplitude()
}

// Emission asks the engine to emit a spike from the neuron.
type Emission struct {
	// Port names the output port; empty emits on every output.
	Port    string
	Latency float64
	Payload *float64
}

// NeuronState is the exported mutable state of a neuron model.
type NeuronState struct {
	Kind         string             `json:"kind"`
	Potential    float64            `json:"potential"`
	LastUpdate   float64            `json:"last_update"`
	RefractUntil float64            `json:"refract_until,omitempty"`
	Compartments []float64          `json:"compartments,omitempty"`
	SpikeCount   int                `json:"spike_count"`
	Extra        map[string]float64 `json:"extra,omitempty"`
}

// Reset policies applied after a neuron fires.
const (
	ResetHard     = "hard"
	ResetSubtract = "subtract"
)

// ValidResets is the set of recognized reset policy names.
var ValidResets = map[string]bool{"": true, ResetHard: true, ResetSubtract: true}
