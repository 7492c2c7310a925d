package sim

import (
	"errors"
	"strings"
	"testing"
)

func TestCompile_InvalidGroups_ReturnGraphValidationError(t *testing.T) {
	lif := func() NeuronModel { return MustLIF(LIFParams{Threshold: 1}) }
	tests := []struct {
		name    string
		group   *Group
		wantMsg string
	}{
		{
			name:    "dangling reference",
			group:   NewGroup("g").Relay("a").Connect("a", "nowhere", 1, 0),
			wantMsg: "dangling reference",
		},
		{
			name:    "dangling neuron port",
			group:   NewGroup("g").Relay("a").Neuron("n", lif(), nil, nil).Connect("a", "n.missing", 1, 0),
			wantMsg: "has no port",
		},
		{
			name:    "negative delay",
			group:   NewGroup("g").Relay("a", "b").Connect("a", "b", 1, -0.1),
			wantMsg: "negative",
		},
		{
			name:    "cyclic port aliasing",
			group:   NewGroup("g").Relay("a").Input("X", "Y").Input("Y", "X").Connect("a", "X", 1, 0),
			wantMsg: "cyclic",
		},
		{
			name:    "neuron body addressed",
			group:   NewGroup("g").Relay("a").Neuron("n", lif(), nil, nil).Connect("a", "n", 1, 0),
			wantMsg: "not addressable",
		},
		{
			name:    "duplicate member",
			group:   NewGroup("g").Relay("a", "a"),
			wantMsg: "duplicate",
		},
		{
			name:    "input port cannot emit",
			group:   NewGroup("g").Relay("a").Neuron("n", lif(), nil, nil).Connect("n.in", "a", 1, 0),
			wantMsg: "cannot emit",
		},
		{
			name:    "initial weight outside bounds",
			group:   NewGroup("g").Relay("a", "b").ConnectPlastic("a", "b", 5, 0, DefaultSTDP(), WeightBounds{Min: 0, Max: 1}),
			wantMsg: "outside bounds",
		},
		{
			name:    "window without span",
			group:   NewGroup("g").Relay("a").AddWindow(WindowDef{Name: "w", Subscribe: []string{"a"}, MinSources: 1}),
			wantMsg: "span",
		},
		{
			name:    "invalid name",
			group:   NewGroup("g").Relay("a.b"),
			wantMsg: "invalid member name",
		},
		{
			name:    "unresolved group port",
			group:   NewGroup("g").Relay("a").Add(NewGroup("inner").Relay("x")).Connect("a", "inner.X", 1, 0),
			wantMsg: "unresolved group port",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// WHEN the group is compiled
			g, err := Compile(tc.group)

			// THEN no graph is produced and the error is a GraphValidationError
			if g != nil {
				t.Error("Compile returned a graph alongside an error")
			}
			var gve *GraphValidationError
			if !errors.As(err, &gve) {
				t.Fatalf("error = %v, want *GraphValidationError", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestCompile_NestedGroup_ResolvesPorts(t *testing.T) {
	// GIVEN an inner group exposing relay x as port X, driven from the parent
	inner := NewGroup("inner").Relay("x").Input("X", "x")
	root := NewGroup("root").Relay("src").Add(inner).Connect("src", "inner.X", 1, 0.5).Input("IN", "src")

	// WHEN compiled
	g := mustCompile(t, root)

	// THEN the port alias and the qualified member name resolve to one endpoint
	port, ok := g.Lookup("inner.X")
	if !ok {
		t.Fatal("port inner.X not resolvable")
	}
	if member := g.MustLookup("inner/x"); port != member {
		t.Errorf("inner.X -> %d, inner/x -> %d", port, member)
	}
	if g.MustLookup("IN") != g.MustLookup("src") {
		t.Error("root port IN does not alias src")
	}

	// AND the synapse targets the inner relay
	fan := g.Fanout(g.MustLookup("src"))
	if len(fan) != 1 || fan[0].Post != port || fan[0].Delay != 0.5 {
		t.Errorf("fanout of src = %+v", fan)
	}

	// AND group membership is recorded
	groups := g.Groups()
	if len(groups) != 2 || groups[1].Name != "inner" || groups[1].Parent != 0 {
		t.Fatalf("groups = %+v", groups)
	}
	if len(groups[1].Members) != 1 || groups[1].Members[0] != port {
		t.Errorf("inner members = %v, want [%d]", groups[1].Members, port)
	}
}

func TestCompile_NeuronPorts_Defaults(t *testing.T) {
	// GIVEN a LIF neuron with default ports and a dendritic neuron with declared ones
	g := mustCompile(t, NewGroup("g").
		Neuron("l", MustLIF(LIFParams{Threshold: 1}), nil, nil).
		Neuron("d", xorNeuron(), nil, nil))

	// THEN the LIF gets in/out and the dendritic neuron gets its compartment ports
	for _, name := range []string{"l.in", "l.out", "d.a", "d.b", "d.out"} {
		if _, ok := g.Lookup(name); !ok {
			t.Errorf("missing endpoint %s", name)
		}
	}
	n, ok := g.NeuronOf(g.MustLookup("d.a"))
	if !ok || n.Name != "d" {
		t.Errorf("NeuronOf(d.a) = %v, %v", n, ok)
	}
	if ep, _ := g.Endpoint(g.MustLookup("l")); ep.Kind != KindNeuron {
		t.Errorf("kind of l = %s, want neuron", ep.Kind)
	}
}

func TestGraphDescriptor_Matches(t *testing.T) {
	a := mustCompile(t, latchGroup())
	b := mustCompile(t, latchGroup())
	if err := a.Describe().Matches(b); err != nil {
		t.Errorf("identical circuits do not match: %v", err)
	}
	other := mustCompile(t, NewGroup("g").Relay("s"))
	if err := a.Describe().Matches(other); err == nil {
		t.Error("different circuits matched")
	}
}
