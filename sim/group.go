package sim

import "fmt"

// Group is the authoring-time container for a reusable subcircuit. It is purely
// structural: Compile flattens the whole tree into one Graph, and groups have no
// runtime identity beyond the membership index sets the Graph keeps.
//
// References inside a group (synapse pre/post, window subscriptions, channel
// subscribers, port targets) are local paths:
//
//	a            relay, window, channel or synapse named a
//	sum.a        port a of neuron sum (input or output)
//	coinc.out    output of window coinc
//	inner.X      port X of nested group inner
//	X            a port of this group, when no member is named X
type Group struct {
	Name     string
	Relays   []string
	Neurons  []NeuronDef
	Synapses []SynapseDef
	Windows  []WindowDef
	Channels []ChannelDef
	Groups   []*Group
	Inputs   []PortDef
	Outputs  []PortDef
}

// NeuronDef declares a neuron. Nil Inputs default to the model's InputPorts (when it
// declares them) or ["in"]; nil Outputs default to ["out"].
type NeuronDef struct {
	Name    string
	Model   NeuronModel
	Inputs  []string
	Outputs []string
}

// SynapseDef declares a directed, weighted, delayed connection.
type SynapseDef struct {
	Name       string
	Pre        string
	Post       string
	Weight     float64
	Delay      float64
	Plasticity PlasticityRule
	Bounds     *WeightBounds
}

// WindowMode selects how a Window expires buffered spikes.
type WindowMode string

const (
	// WindowRolling keeps spikes whose interval ends within Span of the clock.
	WindowRolling WindowMode = "rolling"
	// WindowFixed keeps spikes from the current Span-aligned bucket only.
	WindowFixed WindowMode = "fixed"
)

// WindowDef declares a coincidence window.
type WindowDef struct {
	Name      string
	Subscribe []string
	Span      float64
	Mode      WindowMode
	// MinSources is the number of distinct endpoints that must be present to fire.
	MinSources int
	// Cooldown suppresses firing for this long after a fire. Zero disables it.
	Cooldown float64
	// Retain keeps the buffer after firing instead of consuming it.
	Retain bool
}

// ChannelDef declares a broadcast channel.
type ChannelDef struct {
	Name        string
	Subscribers []string
	Initial     float64
}

// PortDef aliases a group port onto a member endpoint.
type PortDef struct {
	Name   string
	Target string
}

// NewGroup creates an empty group.
func NewGroup(name string) *Group {
	return &Group{Name: name}
}

// Relay declares pass-through endpoints.
func (g *Group) Relay(names ...string) *Group {
	g.Relays = append(g.Relays, names...)
	return g
}

// Neuron declares a neuron with the given ports.
func (g *Group) Neuron(name string, model NeuronModel, inputs, outputs []string) *Group {
	g.Neurons = append(g.Neurons, NeuronDef{Name: name, Model: model, Inputs: inputs, Outputs: outputs})
	return g
}

// Connect declares a static synapse.
func (g *Group) Connect(pre, post string, weight, delay float64) *Group {
	return g.AddSynapse(SynapseDef{Pre: pre, Post: post, Weight: weight, Delay: delay})
}

// ConnectPlastic declares a synapse whose weight follows rule within bounds.
func (g *Group) ConnectPlastic(pre, post string, weight, delay float64, rule PlasticityRule, bounds WeightBounds) *Group {
	return g.AddSynapse(SynapseDef{Pre: pre, Post: post, Weight: weight, Delay: delay, Plasticity: rule, Bounds: &bounds})
}

// AddSynapse declares a synapse; unnamed synapses are named syn<N> in declaration order.
func (g *Group) AddSynapse(def SynapseDef) *Group {
	if def.Name == "" {
		def.Name = fmt.Sprintf("syn%d", len(g.Synapses))
	}
	g.Synapses = append(g.Synapses, def)
	return g
}

// AddWindow declares a coincidence window.
func (g *Group) AddWindow(def WindowDef) *Group {
	g.Windows = append(g.Windows, def)
	return g
}

// Channel declares a broadcast channel.
func (g *Group) Channel(name string, initial float64, subscribers ...string) *Group {
	g.Channels = append(g.Channels, ChannelDef{Name: name, Initial: initial, Subscribers: subscribers})
	return g
}

// Add nests sub inside g.
func (g *Group) Add(sub *Group) *Group {
	g.Groups = append(g.Groups, sub)
	return g
}

// Input declares an input port aliasing target.
func (g *Group) Input(name, target string) *Group {
	g.Inputs = append(g.Inputs, PortDef{Name: name, Target: target})
	return g
}

// Output declares an output port aliasing target.
func (g *Group) Output(name, target string) *Group {
	g.Outputs = append(g.Outputs, PortDef{Name: name, Target: target})
	return g
}
