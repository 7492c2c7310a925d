package sim

import (
	"context"
	"testing"
)

// fixedEnv is a ProcessEnv frozen at one time with no broadcast channels.
type fixedEnv float64

func (e fixedEnv) Now() float64                   { return float64(e) }
func (fixedEnv) Broadcast(string) (float64, bool) { return 0, false }

// drive builds a unit-amplitude input on port.
func drive(port string, weight float64) Input {
	return Input{Port: port, Spike: Spike{Source: NoEndpoint, Destination: NoEndpoint, Via: NoEndpoint}, Weight: weight}
}

func mustCompile(t *testing.T, g *Group) *Graph {
	t.Helper()
	graph, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile(%s): %v", g.Name, err)
	}
	return graph
}

// at returns precise input spikes at the given times.
func at(times ...float64) []InputSpike {
	out := make([]InputSpike, len(times))
	for i, t := range times {
		out[i] = InputSpike{Interval: At(t)}
	}
	return out
}

func testConfig(maxTime float64) RunConfig {
	cfg := DefaultRunConfig()
	cfg.MaxTime = maxTime
	return cfg
}

func runGraph(t *testing.T, g *Graph, inputs Inputs, cfg RunConfig) *RunResult {
	t.Helper()
	res, err := Run(context.Background(), g, inputs, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

// deliveries returns the start times of every spike delivered to the named endpoint.
func deliveries(g *Graph, res *RunResult, name string) []float64 {
	var out []float64
	for _, s := range res.SpikesTo(g.MustLookup(name)) {
		out = append(out, s.Interval.Start)
	}
	return out
}

// latchGroup is a set/reset latch: S starts q firing every 0.1 through a feedback
// synapse and R inhibits it.
func latchGroup() *Group {
	q := MustLIF(LIFParams{Tau: 0.05, Threshold: 1})
	return NewGroup("latch").
		Relay("s", "r").
		Neuron("q", q, nil, nil).
		Connect("s", "q.in", 1, 0.001).
		Connect("r", "q.in", -2, 0.001).
		Connect("q.out", "q.in", 1, 0.1).
		Input("S", "s").
		Input("R", "r").
		Output("Q", "q.out")
}

// coincidenceGroup has relays x and y observed by window w.
func coincidenceGroup(def WindowDef) *Group {
	def.Name = "w"
	def.Subscribe = []string{"x", "y"}
	return NewGroup("coinc").Relay("x", "y").AddWindow(def)
}
