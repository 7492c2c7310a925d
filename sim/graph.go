package sim

import (
	"fmt"
	"sort"
)

// EndpointKind classifies graph endpoints.
type EndpointKind int

const (
	KindRelay EndpointKind = iota
	KindNeuron
	KindNeuronInput
	KindNeuronOutput
	KindSynapse
	KindWindow
	KindWindowOutput
	KindChannel
)

var kindNames = [...]string{
	KindRelay:        "relay",
	KindNeuron:       "neuron",
	KindNeuronInput:  "neuron-input",
	KindNeuronOutput: "neuron-output",
	KindSynapse:      "synapse",
	KindWindow:       "window",
	KindWindowOutput: "window-output",
	KindChannel:      "channel",
}

func (k EndpointKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// emits reports whether spikes delivered to an endpoint of this kind fan out along synapses.
func (k EndpointKind) emits() bool {
	return k == KindRelay || k == KindNeuronOutput || k == KindWindowOutput
}

// receives reports whether a synapse may target an endpoint of this kind.
func (k EndpointKind) receives() bool {
	return k == KindRelay || k == KindNeuronInput || k == KindWindow || k == KindChannel
}

// Endpoint is one addressable element of the flattened graph.
type Endpoint struct {
	ID   EndpointID
	Name string
	Kind EndpointKind
	// Owner indexes the owning neuron, synapse, window or channel; -1 for relays.
	Owner int
	// Port is the port name for neuron ports and window outputs.
	Port string
}

// NeuronNode is a neuron in the flattened graph. Model is a prototype that every
// Pathway clones; it is never mutated by a run.
type NeuronNode struct {
	ID      EndpointID
	Name    string
	Model   NeuronModel
	Inputs  []EndpointID
	Outputs []EndpointID
	// Incoming lists synapses whose post endpoint is one of Inputs.
	Incoming []int
}

// SynapseNode is a synapse in the flattened graph with its initial weight.
type SynapseNode struct {
	ID         EndpointID
	Name       string
	Pre        EndpointID
	Post       EndpointID
	Weight     float64
	Delay      float64
	Plasticity PlasticityRule
	Bounds     *WeightBounds
}

// WindowNode is a coincidence window in the flattened graph.
type WindowNode struct {
	ID         EndpointID
	Output     EndpointID
	Name       string
	Subscribed []EndpointID
	Span       float64
	Mode       WindowMode
	MinSources int
	Cooldown   float64
	Retain     bool
}

// ChannelNode is a broadcast channel in the flattened graph.
type ChannelNode struct {
	ID          EndpointID
	Name        string
	Subscribers []EndpointID
	Initial     float64
}

// GroupInfo records a flattened group's membership and resolved ports.
type GroupInfo struct {
	Name    string
	Parent  int // -1 for the root
	Members []EndpointID
	Inputs  map[string]EndpointID
	Outputs map[string]EndpointID
}

// Graph is the flattened, validated circuit. It is immutable after Compile and
// may be shared by any number of Pathways.
type Graph struct {
	endpoints []Endpoint
	byName    map[string]EndpointID
	neurons   []*NeuronNode
	synapses  []*SynapseNode
	windows   []*WindowNode
	channels  []*ChannelNode
	groups    []GroupInfo

	fanout    [][]int // endpoint → synapses leaving it
	observers [][]int // endpoint → windows subscribed to it
	postOf    [][]int // non-neuron endpoint → synapses targeting it
}

// Len returns the number of endpoints.
func (g *Graph) Len() int { return len(g.endpoints) }

// Endpoint returns the endpoint with the given id.
func (g *Graph) Endpoint(id EndpointID) (Endpoint, bool) {
	if id < 0 || int(id) >= len(g.endpoints) {
		return Endpoint{}, false
	}
	return g.endpoints[id], true
}

// Name returns the qualified name of id, or a placeholder for unknown ids.
func (g *Graph) Name(id EndpointID) string {
	if ep, ok := g.Endpoint(id); ok {
		return ep.Name
	}
	if id == NoEndpoint {
		return "<external>"
	}
	return fmt.Sprintf("<unknown %d>", id)
}

// Lookup resolves a qualified endpoint name or group port name.
func (g *Graph) Lookup(name string) (EndpointID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// MustLookup is Lookup for names known to exist; it panics otherwise.
func (g *Graph) MustLookup(name string) EndpointID {
	id, ok := g.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("graph has no endpoint %q", name))
	}
	return id
}

// Names returns every resolvable name in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.byName))
	for n := range g.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Neurons returns the neuron nodes in declaration order.
func (g *Graph) Neurons() []*NeuronNode { return g.neurons }

// Synapses returns the synapse nodes in declaration order.
func (g *Graph) Synapses() []*SynapseNode { return g.synapses }

// Windows returns the window nodes in declaration order.
func (g *Graph) Windows() []*WindowNode { return g.windows }

// Channels returns the channel nodes in declaration order.
func (g *Graph) Channels() []*ChannelNode { return g.channels }

// Groups returns the flattened group table; index 0 is the root.
func (g *Graph) Groups() []GroupInfo { return g.groups }

// Fanout returns the synapses leaving id.
func (g *Graph) Fanout(id EndpointID) []*SynapseNode {
	if id < 0 || int(id) >= len(g.fanout) {
		return nil
	}
	out := make([]*SynapseNode, len(g.fanout[id]))
	for i, s := range g.fanout[id] {
		out[i] = g.synapses[s]
	}
	return out
}

// NeuronOf returns the neuron owning a neuron body or port endpoint.
func (g *Graph) NeuronOf(id EndpointID) (*NeuronNode, bool) {
	ep, ok := g.Endpoint(id)
	if !ok {
		return nil, false
	}
	switch ep.Kind {
	case KindNeuron, KindNeuronInput, KindNeuronOutput:
		return g.neurons[ep.Owner], true
	}
	return nil, false
}

// EndpointDescriptor is the serializable identity of an endpoint.
type EndpointDescriptor struct {
	ID   EndpointID `json:"id"`
	Name string     `json:"name"`
	Kind string     `json:"kind"`
}

// SynapseDescriptor is the serializable wiring of a synapse.
type SynapseDescriptor struct {
	ID    EndpointID `json:"id"`
	Pre   EndpointID `json:"pre"`
	Post  EndpointID `json:"post"`
	Delay float64    `json:"delay"`
}

// GraphDescriptor captures graph structure for snapshots.
type GraphDescriptor struct {
	Endpoints []EndpointDescriptor `json:"endpoints"`
	Synapses  []SynapseDescriptor  `json:"synapses"`
}

// Describe returns the graph's structural descriptor.
func (g *Graph) Describe() GraphDescriptor {
	d := GraphDescriptor{
		Endpoints: make([]EndpointDescriptor, len(g.endpoints)),
		Synapses:  make([]SynapseDescriptor, len(g.synapses)),
	}
	for i, ep := range g.endpoints {
		d.Endpoints[i] = EndpointDescriptor{ID: ep.ID, Name: ep.Name, Kind: ep.Kind.String()}
	}
	for i, s := range g.synapses {
		d.Synapses[i] = SynapseDescriptor{ID: s.ID, Pre: s.Pre, Post: s.Post, Delay: s.Delay}
	}
	return d
}

// Matches reports whether d describes the same structure as g.
func (d GraphDescriptor) Matches(g *Graph) error {
	other := g.Describe()
	if len(d.Endpoints) != len(other.Endpoints) {
		return fmt.Errorf("snapshot has %d endpoints, graph has %d", len(d.Endpoints), len(other.Endpoints))
	}
	for i := range d.Endpoints {
		if d.Endpoints[i] != other.Endpoints[i] {
			return fmt.Errorf("endpoint %d differs: snapshot %s (%s), graph %s (%s)", i,
				d.Endpoints[i].Name, d.Endpoints[i].Kind, other.Endpoints[i].Name, other.Endpoints[i].Kind)
		}
	}
	if len(d.Synapses) != len(other.Synapses) {
		return fmt.Errorf("snapshot has %d synapses, graph has %d", len(d.Synapses), len(other.Synapses))
	}
	for i := range d.Synapses {
		if d.Synapses[i] != other.Synapses[i] {
			return fmt.Errorf("synapse %s wiring differs", g.Name(other.Synapses[i].ID))
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
