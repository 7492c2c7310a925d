package sim

// channelRuntime holds the run-scoped value of a broadcast channel.
type channelRuntime struct {
	node  *ChannelNode
	value float64
}

func newChannelRuntime(node *ChannelNode) *channelRuntime {
	return &channelRuntime{node: node, value: node.Initial}
}

// publish stores value and returns one spike per subscriber carrying it.
// Subscribers receive the emit's interval; delivery order follows subscriber declaration.
func (c *channelRuntime) publish(value float64, iv Interval) []Spike {
	c.value = value
	out := make([]Spike, 0, len(c.node.Subscribers))
	for _, sub := range c.node.Subscribers {
		out = append(out, Spike{
			Source:      c.node.ID,
			Destination: sub,
			Via:         NoEndpoint,
			Interval:    iv,
			Payload:     Value(value),
		})
	}
	return out
}

// processEnv is the view of a Pathway handed to NeuronModel.Process.
type processEnv struct {
	p *Pathway
}

func (e processEnv) Now() float64 { return e.p.clock }

func (e processEnv) Broadcast(name string) (float64, bool) {
	id, ok := e.p.graph.Lookup(name)
	if !ok {
		return 0, false
	}
	ep := e.p.graph.endpoints[id]
	if ep.Kind != KindChannel {
		return 0, false
	}
	return e.p.channels[ep.Owner].value, true
}
