package sim

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// memberKind tags the local names of a scope.
type memberKind int

const (
	memberRelay memberKind = iota
	memberNeuron
	memberSynapse
	memberWindow
	memberChannel
	memberGroup
)

type member struct {
	kind  memberKind
	index int        // neuron/synapse/window/channel index, or child scope index
	id    EndpointID // endpoint for relays, synapses, windows and channels
}

// scope is the compile-time view of one Group.
type scope struct {
	group     *Group
	prefix    string // qualified prefix of members, "" for the root
	portName  string // qualified prefix of ports, "" for the root
	info      int
	members   map[string]member
	children  []*scope
	ports     map[string]PortDef
	resolved  map[string]EndpointID
	resolving map[string]bool
}

type compiler struct {
	g      *Graph
	scopes []*scope
}

// Compile flattens root into a validated Graph. It either returns a complete Graph or
// a *GraphValidationError; nothing is partially applied.
func Compile(root *Group) (*Graph, error) {
	if root == nil {
		return nil, invalid("", "nil root group")
	}
	c := &compiler{g: &Graph{byName: make(map[string]EndpointID)}}
	rootScope, err := c.declare(root, "", "", -1)
	if err != nil {
		return nil, err
	}
	n := len(c.g.endpoints)
	c.g.fanout = make([][]int, n)
	c.g.observers = make([][]int, n)
	c.g.postOf = make([][]int, n)
	if err := c.wire(rootScope); err != nil {
		return nil, err
	}
	logrus.Debugf("compiled %q: %d endpoints, %d neurons, %d synapses, %d windows, %d channels",
		root.Name, n, len(c.g.neurons), len(c.g.synapses), len(c.g.windows), len(c.g.channels))
	return c.g, nil
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "./ ")
}

func (c *compiler) addEndpoint(name string, kind EndpointKind, owner int, port string) (EndpointID, error) {
	if _, exists := c.g.byName[name]; exists {
		return NoEndpoint, invalid(name, "duplicate endpoint name")
	}
	id := EndpointID(len(c.g.endpoints))
	c.g.endpoints = append(c.g.endpoints, Endpoint{ID: id, Name: name, Kind: kind, Owner: owner, Port: port})
	c.g.byName[name] = id
	return id, nil
}

// declare registers every endpoint of g and its descendants.
func (c *compiler) declare(g *Group, prefix, portName string, parent int) (*scope, error) {
	path := strings.TrimSuffix(prefix, "/")
	if path == "" {
		path = g.Name
	}
	s := &scope{
		group:     g,
		prefix:    prefix,
		portName:  portName,
		info:      len(c.g.groups),
		members:   make(map[string]member),
		ports:     make(map[string]PortDef),
		resolved:  make(map[string]EndpointID),
		resolving: make(map[string]bool),
	}
	c.scopes = append(c.scopes, s)
	c.g.groups = append(c.g.groups, GroupInfo{
		Name:    path,
		Parent:  parent,
		Inputs:  make(map[string]EndpointID),
		Outputs: make(map[string]EndpointID),
	})
	claim := func(name string, m member) error {
		if !validName(name) {
			return invalid(path, "invalid member name %q", name)
		}
		if _, dup := s.members[name]; dup {
			return invalid(prefix+name, "duplicate member name")
		}
		s.members[name] = m
		return nil
	}
	addMember := func(id EndpointID) {
		c.g.groups[s.info].Members = append(c.g.groups[s.info].Members, id)
	}

	for _, r := range g.Relays {
		if err := claim(r, member{kind: memberRelay}); err != nil {
			return nil, err
		}
		id, err := c.addEndpoint(prefix+r, KindRelay, -1, "")
		if err != nil {
			return nil, err
		}
		s.members[r] = member{kind: memberRelay, id: id}
		addMember(id)
	}

	for _, def := range g.Neurons {
		if err := c.declareNeuron(s, def, claim, addMember); err != nil {
			return nil, err
		}
	}

	for _, def := range g.Windows {
		idx := len(c.g.windows)
		if err := claim(def.Name, member{kind: memberWindow, index: idx}); err != nil {
			return nil, err
		}
		id, err := c.addEndpoint(prefix+def.Name, KindWindow, idx, "")
		if err != nil {
			return nil, err
		}
		out, err := c.addEndpoint(prefix+def.Name+".out", KindWindowOutput, idx, "out")
		if err != nil {
			return nil, err
		}
		mode := def.Mode
		if mode == "" {
			mode = WindowRolling
		}
		c.g.windows = append(c.g.windows, &WindowNode{
			ID: id, Output: out, Name: prefix + def.Name, Span: def.Span, Mode: mode,
			MinSources: def.MinSources, Cooldown: def.Cooldown, Retain: def.Retain,
		})
		s.members[def.Name] = member{kind: memberWindow, index: idx, id: id}
		addMember(id)
		addMember(out)
	}

	for _, def := range g.Channels {
		idx := len(c.g.channels)
		if err := claim(def.Name, member{kind: memberChannel, index: idx}); err != nil {
			return nil, err
		}
		id, err := c.addEndpoint(prefix+def.Name, KindChannel, idx, "")
		if err != nil {
			return nil, err
		}
		c.g.channels = append(c.g.channels, &ChannelNode{ID: id, Name: prefix + def.Name, Initial: def.Initial})
		s.members[def.Name] = member{kind: memberChannel, index: idx, id: id}
		addMember(id)
	}

	for _, def := range g.Synapses {
		idx := len(c.g.synapses)
		if err := claim(def.Name, member{kind: memberSynapse, index: idx}); err != nil {
			return nil, err
		}
		id, err := c.addEndpoint(prefix+def.Name, KindSynapse, idx, "")
		if err != nil {
			return nil, err
		}
		c.g.synapses = append(c.g.synapses, &SynapseNode{
			ID: id, Name: prefix + def.Name, Pre: NoEndpoint, Post: NoEndpoint,
			Weight: def.Weight, Delay: def.Delay, Plasticity: def.Plasticity,
		})
		if def.Bounds != nil {
			b := *def.Bounds
			c.g.synapses[idx].Bounds = &b
		}
		s.members[def.Name] = member{kind: memberSynapse, index: idx, id: id}
		addMember(id)
	}

	for _, sub := range g.Groups {
		if sub == nil {
			return nil, invalid(path, "nil nested group")
		}
		idx := len(s.children)
		if err := claim(sub.Name, member{kind: memberGroup, index: idx}); err != nil {
			return nil, err
		}
		child, err := c.declare(sub, prefix+sub.Name+"/", prefix+sub.Name+".", s.info)
		if err != nil {
			return nil, err
		}
		s.children = append(s.children, child)
	}

	for _, ports := range [][]PortDef{g.Inputs, g.Outputs} {
		for _, p := range ports {
			if !validName(p.Name) {
				return nil, invalid(path, "invalid port name %q", p.Name)
			}
			if _, dup := s.ports[p.Name]; dup {
				return nil, invalid(portName+p.Name, "duplicate group port")
			}
			s.ports[p.Name] = p
		}
	}
	return s, nil
}

func (c *compiler) declareNeuron(s *scope, def NeuronDef, claim func(string, member) error, addMember func(EndpointID)) error {
	idx := len(c.g.neurons)
	if err := claim(def.Name, member{kind: memberNeuron, index: idx}); err != nil {
		return err
	}
	name := s.prefix + def.Name
	if def.Model == nil {
		return invalid(name, "neuron has no model")
	}
	inputs, outputs := def.Inputs, def.Outputs
	declared, hasPorts := def.Model.(interface{ InputPorts() []string })
	if inputs == nil {
		if hasPorts {
			inputs = declared.InputPorts()
		} else {
			inputs = []string{"in"}
		}
	}
	if outputs == nil {
		outputs = []string{"out"}
	}
	if len(outputs) == 0 {
		return invalid(name, "neuron has no outputs")
	}
	if hasPorts {
		known := make(map[string]bool, len(inputs))
		for _, p := range inputs {
			known[p] = true
		}
		for _, p := range declared.InputPorts() {
			if !known[p] {
				return invalid(name, "model reads undeclared input port %q", p)
			}
		}
	}
	body, err := c.addEndpoint(name, KindNeuron, idx, "")
	if err != nil {
		return err
	}
	node := &NeuronNode{ID: body, Name: name, Model: def.Model}
	seen := make(map[string]bool)
	for _, p := range inputs {
		if !validName(p) || seen[p] {
			return invalid(name, "invalid or duplicate port %q", p)
		}
		seen[p] = true
		id, err := c.addEndpoint(name+"."+p, KindNeuronInput, idx, p)
		if err != nil {
			return err
		}
		node.Inputs = append(node.Inputs, id)
	}
	for _, p := range outputs {
		if !validName(p) || seen[p] {
			return invalid(name, "invalid or duplicate port %q", p)
		}
		seen[p] = true
		id, err := c.addEndpoint(name+"."+p, KindNeuronOutput, idx, p)
		if err != nil {
			return err
		}
		node.Outputs = append(node.Outputs, id)
	}
	c.g.neurons = append(c.g.neurons, node)
	addMember(body)
	for _, id := range node.Inputs {
		addMember(id)
	}
	for _, id := range node.Outputs {
		addMember(id)
	}
	return nil
}

// resolve maps a local reference in s to an endpoint.
func (c *compiler) resolve(s *scope, ref string) (EndpointID, error) {
	where := s.prefix + ref
	head, tail, dotted := strings.Cut(ref, ".")
	if dotted && strings.Contains(tail, ".") {
		return NoEndpoint, invalid(where, "malformed reference")
	}
	m, isMember := s.members[head]
	if dotted {
		if !isMember {
			return NoEndpoint, invalid(where, "dangling reference: no member %q", head)
		}
		switch m.kind {
		case memberGroup:
			return c.resolvePort(s.children[m.index], tail)
		case memberNeuron, memberWindow:
			if id, ok := c.g.byName[s.prefix+ref]; ok {
				return id, nil
			}
		}
		return NoEndpoint, invalid(where, "dangling reference: %q has no port %q", head, tail)
	}
	if isMember {
		switch m.kind {
		case memberNeuron:
			return NoEndpoint, invalid(where, "neuron body is not addressable; name one of its ports")
		case memberGroup:
			return NoEndpoint, invalid(where, "group is not addressable; name one of its ports")
		}
		return m.id, nil
	}
	if _, ok := s.ports[ref]; ok {
		return c.resolvePort(s, ref)
	}
	return NoEndpoint, invalid(where, "dangling reference")
}

// resolvePort follows a group port alias chain, rejecting cycles.
func (c *compiler) resolvePort(s *scope, name string) (EndpointID, error) {
	if id, ok := s.resolved[name]; ok {
		return id, nil
	}
	def, ok := s.ports[name]
	if !ok {
		return NoEndpoint, invalid(s.portName+name, "unresolved group port")
	}
	if s.resolving[name] {
		return NoEndpoint, invalid(s.portName+name, "cyclic group port aliasing")
	}
	s.resolving[name] = true
	defer delete(s.resolving, name)
	id, err := c.resolve(s, def.Target)
	if err != nil {
		return NoEndpoint, err
	}
	s.resolved[name] = id
	return id, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// wire resolves every reference in s and its descendants.
func (c *compiler) wire(s *scope) error {
	g := s.group

	for _, ports := range []struct {
		defs []PortDef
		out  map[string]EndpointID
	}{{g.Inputs, c.g.groups[s.info].Inputs}, {g.Outputs, c.g.groups[s.info].Outputs}} {
		for _, p := range ports.defs {
			id, err := c.resolvePort(s, p.Name)
			if err != nil {
				return err
			}
			ports.out[p.Name] = id
			qualified := s.portName + p.Name
			if prev, taken := c.g.byName[qualified]; taken && prev != id {
				return invalid(qualified, "group port name collides with an endpoint")
			}
			c.g.byName[qualified] = id
		}
	}

	for _, def := range g.Synapses {
		idx := s.members[def.Name].index
		syn := c.g.synapses[idx]
		name := syn.Name
		pre, err := c.resolve(s, def.Pre)
		if err != nil {
			return err
		}
		post, err := c.resolve(s, def.Post)
		if err != nil {
			return err
		}
		if k := c.g.endpoints[pre].Kind; !k.emits() {
			return invalid(name, "pre endpoint %s is a %s and cannot emit", c.g.Name(pre), k)
		}
		if k := c.g.endpoints[post].Kind; !k.receives() {
			return invalid(name, "post endpoint %s is a %s and cannot receive", c.g.Name(post), k)
		}
		if !finite(def.Delay) || def.Delay < 0 {
			return invalid(name, "negative or non-finite delay %v", def.Delay)
		}
		if !finite(def.Weight) {
			return invalid(name, "non-finite weight %v", def.Weight)
		}
		if v, ok := def.Plasticity.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return invalid(name, "%v", err)
			}
		}
		if syn.Bounds != nil {
			if err := syn.Bounds.Validate(); err != nil {
				return invalid(name, "%v", err)
			}
			if _, clamped := syn.Bounds.Clamp(def.Weight); clamped {
				return invalid(name, "initial weight %v outside bounds [%v, %v]", def.Weight, syn.Bounds.Min, syn.Bounds.Max)
			}
		}
		syn.Pre, syn.Post = pre, post
		c.g.fanout[pre] = append(c.g.fanout[pre], idx)
		if ep := c.g.endpoints[post]; ep.Kind == KindNeuronInput {
			n := c.g.neurons[ep.Owner]
			n.Incoming = append(n.Incoming, idx)
		} else {
			c.g.postOf[post] = append(c.g.postOf[post], idx)
		}
	}

	for _, def := range g.Windows {
		m := s.members[def.Name]
		w := c.g.windows[m.index]
		if !finite(def.Span) || def.Span <= 0 {
			return invalid(w.Name, "span must be positive and finite, got %v", def.Span)
		}
		if w.Mode != WindowRolling && w.Mode != WindowFixed {
			return invalid(w.Name, "unknown window mode %q", w.Mode)
		}
		if def.MinSources < 1 {
			return invalid(w.Name, "min sources must be at least 1, got %d", def.MinSources)
		}
		if !finite(def.Cooldown) || def.Cooldown < 0 {
			return invalid(w.Name, "cooldown must be non-negative, got %v", def.Cooldown)
		}
		if len(def.Subscribe) == 0 {
			return invalid(w.Name, "window subscribes to nothing")
		}
		for _, ref := range def.Subscribe {
			id, err := c.resolve(s, ref)
			if err != nil {
				return err
			}
			switch k := c.g.endpoints[id].Kind; k {
			case KindSynapse, KindNeuron, KindWindow:
				return invalid(w.Name, "cannot subscribe to %s %s", k, c.g.Name(id))
			}
			if id == w.Output {
				return invalid(w.Name, "window cannot subscribe to its own output")
			}
			w.Subscribed = append(w.Subscribed, id)
			c.g.observers[id] = append(c.g.observers[id], m.index)
		}
	}

	for _, def := range g.Channels {
		ch := c.g.channels[s.members[def.Name].index]
		if !finite(def.Initial) {
			return invalid(ch.Name, "non-finite initial value")
		}
		for _, ref := range def.Subscribers {
			id, err := c.resolve(s, ref)
			if err != nil {
				return err
			}
			switch k := c.g.endpoints[id].Kind; k {
			case KindRelay, KindNeuronInput, KindWindow, KindSynapse:
			default:
				return invalid(ch.Name, "subscriber %s is a %s", c.g.Name(id), k)
			}
			ch.Subscribers = append(ch.Subscribers, id)
		}
	}

	for _, child := range s.children {
		if err := c.wire(child); err != nil {
			return err
		}
	}
	return nil
}
