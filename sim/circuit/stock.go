package circuit

import (
	"fmt"
	"sort"

	"github.com/pathway-sim/pathway-sim/sim"
)

// Transmission delay used by the stock circuits.
const stockDelay = 0.001

var stock = map[string]func() *sim.Group{
	"half-adder": HalfAdder,
	"sr-latch":   SRLatch,
}

// Stock returns a fresh copy of the named stock circuit.
func Stock(name string) (*sim.Group, error) {
	build, ok := stock[name]
	if !ok {
		return nil, fmt.Errorf("unknown stock circuit %q; available: %v", name, StockNames())
	}
	return build(), nil
}

// StockNames lists the stock circuits in sorted order.
func StockNames() []string {
	names := make([]string, 0, len(stock))
	for n := range stock {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HalfAdder adds two one-bit spike inputs A and B.
//
// CARRY is a LIF neuron that needs both inputs in the same delivery. SUM is a
// dendritic LIF computing XOR: an "either" branch excites the soma and a "both"
// branch with negative gain cancels it when A and B coincide.
func HalfAdder() *sim.Group {
	carry := sim.MustLIF(sim.LIFParams{Tau: 0.05, Threshold: 1.5})
	sum := sim.MustDendriticLIF(sim.DendriticLIFParams{
		Compartments: []sim.Compartment{
			{Name: "either", Inputs: map[string]float64{"a": 1, "b": 1}, Tau: 0.05, Threshold: 0.5},
			{Name: "both", Inputs: map[string]float64{"a": 1, "b": 1}, Tau: 0.05, Threshold: 1.5, Gain: sim.Value(-1)},
		},
		Combine:       sim.CombineSum,
		SomaThreshold: 0.5,
	})
	return sim.NewGroup("half-adder").
		Relay("a", "b").
		Neuron("carry", carry, nil, nil).
		Neuron("sum", sum, nil, nil).
		Connect("a", "carry.in", 1, stockDelay).
		Connect("b", "carry.in", 1, stockDelay).
		Connect("a", "sum.a", 1, stockDelay).
		Connect("b", "sum.b", 1, stockDelay).
		Input("A", "a").
		Input("B", "b").
		Output("SUM", "sum.out").
		Output("CARRY", "carry.out")
}

// SRLatch is a set/reset latch. A spike on S starts Q firing every 0.1 time units
// through a self-exciting feedback synapse; a spike on R inhibits Q and stops it.
func SRLatch() *sim.Group {
	q := sim.MustLIF(sim.LIFParams{Tau: 0.05, Threshold: 1})
	return sim.NewGroup("sr-latch").
		Relay("s", "r").
		Neuron("q", q, nil, nil).
		Connect("s", "q.in", 1, stockDelay).
		Connect("r", "q.in", -2, stockDelay).
		Connect("q.out", "q.in", 1, 0.1).
		Input("S", "s").
		Input("R", "r").
		Output("Q", "q.out")
}
