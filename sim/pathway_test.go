package sim

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestPathway_Lifecycle(t *testing.T) {
	// GIVEN a pathway over an uncompiled group
	p := NewPathway(latchGroup(), testConfig(1))
	if p.Status() != StatusBuilding {
		t.Fatalf("new pathway status = %s, want building", p.Status())
	}

	// WHEN it is started before Build THEN it refuses
	if err := p.Start(nil); err == nil {
		t.Error("Start succeeded on a building pathway")
	}

	// WHEN built THEN it is Ready with a graph
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Status() != StatusReady || p.Graph() == nil {
		t.Fatalf("after Build: status %s, graph %v", p.Status(), p.Graph())
	}
	if err := p.Build(); err == nil {
		t.Error("second Build succeeded")
	}

	// WHEN run THEN it completes
	res := p.Run(context.Background(), Inputs{p.Graph().MustLookup("S"): at(0)})
	if res.Status != StatusCompleted || p.Status() != StatusCompleted {
		t.Errorf("after Run: result %s, pathway %s", res.Status, p.Status())
	}

	// AND a completed pathway cannot be restarted
	if err := p.Start(nil); err == nil {
		t.Error("Start succeeded on a completed pathway")
	}
	defer func() {
		if recover() == nil {
			t.Error("Run on a completed pathway did not panic")
		}
	}()
	p.Run(context.Background(), nil)
}

func TestPathway_Build_InvalidGroup_StaysBuilding(t *testing.T) {
	p := NewPathway(NewGroup("g").Relay("a").Connect("a", "b", 1, 0), testConfig(1))
	if err := p.Build(); err == nil {
		t.Fatal("Build accepted a dangling reference")
	}
	if p.Status() != StatusBuilding || p.Graph() != nil {
		t.Errorf("after failed Build: status %s, graph %v", p.Status(), p.Graph())
	}
}

func TestPathway_InvalidConfig_Rejected(t *testing.T) {
	g := mustCompile(t, latchGroup())
	if _, err := NewPathwayFromGraph(g, RunConfig{MaxTime: -1}); err == nil {
		t.Error("negative max time accepted")
	}
	if _, err := Run(context.Background(), g, nil, RunConfig{MaxTime: 1, TieBreak: "lifo"}); err == nil {
		t.Error("unknown tie-break accepted")
	}
}

func TestPathway_InvalidInputs_FailRun(t *testing.T) {
	g := mustCompile(t, latchGroup())
	tests := []struct {
		name   string
		inputs Inputs
	}{
		{"negative time", Inputs{g.MustLookup("s"): at(-0.5)}},
		{"start after end", Inputs{g.MustLookup("s"): {{Interval: Interval{Start: 1, End: 0.5}}}}},
		{"neuron body", Inputs{g.MustLookup("q"): at(0)}},
		{"unknown endpoint", Inputs{EndpointID(999): at(0)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// WHEN the run is seeded with an invalid spike
			res := runGraph(t, g, tc.inputs, testConfig(1))

			// THEN it fails with a SchedulingError naming the event and delivers nothing
			if res.Status != StatusFailed {
				t.Fatalf("status = %s, want failed", res.Status)
			}
			var se *SchedulingError
			if !errors.As(res.Err, &se) {
				t.Fatalf("error = %v, want *SchedulingError", res.Err)
			}
			if res.FailedEvent == nil || res.Reason == "" {
				t.Errorf("failed result missing event or reason: %+v", res)
			}
			if len(res.SpikeLog) != 0 {
				t.Errorf("delivered %d spikes before failing", len(res.SpikeLog))
			}
		})
	}
}

// faultyNeuron answers every batch with a fixed emission, or with err when set.
type faultyNeuron struct {
	emission Emission
	err      error
	calls    int
}

func (n *faultyNeuron) Kind() string { return "faulty" }

func (n *faultyNeuron) Process(env ProcessEnv, inputs []Input) ([]Emission, error) {
	n.calls++
	if n.err != nil {
		return nil, n.err
	}
	return []Emission{n.emission}, nil
}

func (n *faultyNeuron) Potential() float64 { return 0 }

func (n *faultyNeuron) State() NeuronState {
	return NeuronState{Kind: n.Kind(), SpikeCount: n.calls}
}

func (n *faultyNeuron) Restore(s NeuronState) error {
	n.calls = s.SpikeCount
	return nil
}

func (n *faultyNeuron) Clone() NeuronModel {
	c := *n
	return &c
}

// faultyGroup feeds relay a to a plastic LIF neuron "good" and to "bad" in the
// same delivery batch; good is processed first.
func faultyGroup(bad *faultyNeuron) *Group {
	return NewGroup("faulty").
		Relay("a").
		Neuron("good", MustLIF(LIFParams{Threshold: 0.5}), nil, nil).
		Neuron("bad", bad, nil, nil).
		ConnectPlastic("a", "good.in", 1, 0.001, DefaultSTDP(), WeightBounds{Min: 0, Max: 2}).
		Connect("a", "bad.in", 1, 0.001)
}

func TestPathway_NeuronFailure_RollsBackBatch(t *testing.T) {
	tests := []struct {
		name     string
		bad      *faultyNeuron
		wantDest string
	}{
		{"process error", &faultyNeuron{err: errors.New("saturated")}, "bad.in"},
		{"unknown output port", &faultyNeuron{emission: Emission{Port: "nope"}}, "bad.in"},
		{"negative latency", &faultyNeuron{emission: Emission{Latency: -1}}, "bad.in"},
		{"NaN latency", &faultyNeuron{emission: Emission{Latency: math.NaN()}}, "bad.in"},
		{"non-finite payload", &faultyNeuron{emission: Emission{Payload: Value(math.Inf(1))}}, "bad.out"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN the state after the input batch at 0.1, before the neurons see it at 0.101
			g := mustCompile(t, faultyGroup(tc.bad))
			inputs := Inputs{g.MustLookup("a"): at(0.1)}
			before := runGraph(t, g, inputs, testConfig(0.1))
			if before.Status != StatusCompleted {
				t.Fatalf("baseline status = %s (%s)", before.Status, before.Reason)
			}

			// WHEN bad fails in the batch where good fires
			res := runGraph(t, g, inputs, testConfig(1))

			// THEN the run fails on bad's event
			if res.Status != StatusFailed {
				t.Fatalf("status = %s, want failed", res.Status)
			}
			var se *SchedulingError
			if !errors.As(res.Err, &se) {
				t.Fatalf("error = %v, want *SchedulingError", res.Err)
			}
			if res.FailedEvent == nil || g.Name(res.FailedEvent.Spike.Destination) != tc.wantDest {
				t.Fatalf("failed event = %+v, want destination %s", res.FailedEvent, tc.wantDest)
			}

			// AND none of the failed batch's effects are visible
			if res.Clock != before.Clock {
				t.Errorf("clock = %v, want %v", res.Clock, before.Clock)
			}
			if !reflect.DeepEqual(res.SpikeLog, before.SpikeLog) {
				t.Errorf("spike log has %d spikes, want %d", len(res.SpikeLog), len(before.SpikeLog))
			}
			if !reflect.DeepEqual(res.FinalStates, before.FinalStates) {
				t.Errorf("final states changed:\n got %+v\nwant %+v", res.FinalStates, before.FinalStates)
			}
			if !reflect.DeepEqual(res.Traces, before.Traces) {
				t.Error("traces recorded effects of the failed batch")
			}
			if len(res.Warnings) != 0 {
				t.Errorf("warnings = %v, want none", res.Warnings)
			}
		})
	}
}

func TestPathway_HealthyBatch_CommitsNeuronAndSynapseState(t *testing.T) {
	// GIVEN the same circuit with a well-behaved bad neuron
	g := mustCompile(t, faultyGroup(&faultyNeuron{}))

	// WHEN run
	res := runGraph(t, g, Inputs{g.MustLookup("a"): at(0.1)}, testConfig(1))

	// THEN good fired, its synapse saw the post spike and bad emitted once
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", res.Status, res.Reason)
	}
	if n := res.FinalStates.Neurons[g.MustLookup("good")].SpikeCount; n != 1 {
		t.Errorf("good spike count = %d, want 1", n)
	}
	if st := res.FinalStates.Synapses[g.MustLookup("syn0")]; !st.HasPost || st.Weight <= 1 {
		t.Errorf("syn0 state = %+v, want potentiated with a post spike", st)
	}
	if got := deliveries(g, res, "bad.out"); len(got) != 1 {
		t.Errorf("bad.out deliveries = %v, want one", got)
	}
}

func TestPathway_Advance_RejectsNonFiniteUntil(t *testing.T) {
	g := mustCompile(t, NewGroup("g").Relay("a"))
	p, _ := NewPathwayFromGraph(g, testConfig(1))
	if err := p.Start(Inputs{g.MustLookup("a"): at(0.5, 5, 50)}); err != nil {
		t.Fatal(err)
	}
	for _, until := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := p.Advance(context.Background(), until); err == nil {
			t.Errorf("Advance(%v) accepted", until)
		}
	}
	if p.Clock() != 0 || p.Pending() != 3 || p.Status() != StatusRunning {
		t.Errorf("after rejected advances: clock %v pending %d status %s", p.Clock(), p.Pending(), p.Status())
	}
}

func TestPathway_BatchIntegration_SimultaneousInputs(t *testing.T) {
	// GIVEN a neuron needing two unit inputs and two relays feeding it
	grp := NewGroup("and").
		Relay("a", "b").
		Neuron("n", MustLIF(LIFParams{Tau: 0.01, Threshold: 1.5}), nil, nil).
		Connect("a", "n.in", 1, 0.001).
		Connect("b", "n.in", 1, 0.001)
	g := mustCompile(t, grp)

	// WHEN both relays spike together, then separately
	res := runGraph(t, g, Inputs{g.MustLookup("a"): at(0, 0.5), g.MustLookup("b"): at(0, 0.7)}, testConfig(1))

	// THEN only the coincident pair fires the neuron
	if got := deliveries(g, res, "n.out"); len(got) != 1 || got[0] != 0.001 {
		t.Errorf("n.out deliveries = %v, want [0.001]", got)
	}
}

func TestPathway_IntervalPropagation(t *testing.T) {
	// GIVEN an uncertain input and a neuron with latency
	grp := NewGroup("iv").
		Relay("a").
		Neuron("n", MustLIF(LIFParams{Threshold: 1, Latency: 0.01}), nil, nil).
		Connect("a", "n.in", 1, 0.05)
	g := mustCompile(t, grp)

	// WHEN a spike with interval [0.1, 0.2] arrives
	in := Interval{Start: 0.1, End: 0.2}
	res := runGraph(t, g, Inputs{g.MustLookup("a"): {{Interval: in}}}, testConfig(1))

	// THEN the output keeps the width, shifted by delay and latency
	out := res.SpikesTo(g.MustLookup("n.out"))
	want := in.Shift(0.05).Shift(0.01)
	if len(out) != 1 || out[0].Interval != want {
		t.Errorf("n.out = %v, want one spike at %s", out, want)
	}
}

func TestPathway_MaxTime_StopsAtHorizon(t *testing.T) {
	// GIVEN inputs before and after the horizon
	g := mustCompile(t, NewGroup("g").Relay("a"))
	p, err := NewPathwayFromGraph(g, testConfig(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Start(Inputs{g.MustLookup("a"): at(0.5, 1, 1.5)}); err != nil {
		t.Fatal(err)
	}

	// WHEN finished
	res := p.Finish(context.Background())

	// THEN deliveries at or before MaxTime happen and later ones stay queued
	if got := deliveries(g, res, "a"); len(got) != 2 {
		t.Errorf("deliveries = %v, want [0.5 1]", got)
	}
	if res.Clock != 1 || res.Truncated {
		t.Errorf("clock = %v truncated = %v, want 1 and false", res.Clock, res.Truncated)
	}
	if p.Pending() != 1 {
		t.Errorf("pending = %d, want 1", p.Pending())
	}
}

func TestPathway_Cancelled_Truncates(t *testing.T) {
	// GIVEN a running latch
	g := mustCompile(t, latchGroup())
	p, _ := NewPathwayFromGraph(g, testConfig(10))
	if err := p.Start(Inputs{g.MustLookup("S"): at(0)}); err != nil {
		t.Fatal(err)
	}

	// WHEN finished with a cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Finish(ctx)

	// THEN the run completes truncated with the queue discarded
	if res.Status != StatusCompleted || !res.Truncated {
		t.Errorf("status = %s truncated = %v, want completed and truncated", res.Status, res.Truncated)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d after truncation", p.Pending())
	}
}

func TestPathway_Latch_SetAndReset(t *testing.T) {
	// GIVEN the latch
	g := mustCompile(t, latchGroup())

	// WHEN set at 0 and reset at 0.55
	res := runGraph(t, g, Inputs{g.MustLookup("S"): at(0), g.MustLookup("R"): at(0.55)}, testConfig(2))

	// THEN Q fires every 0.1 from 0.001 until the reset
	got := deliveries(g, res, "Q")
	if len(got) != 6 {
		t.Fatalf("Q fired %d times (%v), want 6", len(got), got)
	}
	if got[0] != 0.001 || got[5] > 0.55 {
		t.Errorf("Q times = %v", got)
	}
}

func TestPathway_Deterministic(t *testing.T) {
	// GIVEN the same graph and inputs
	g := mustCompile(t, latchGroup())
	inputs := Inputs{g.MustLookup("S"): at(0, 0.33), g.MustLookup("R"): at(0.72)}

	// WHEN run twice
	a := runGraph(t, g, inputs, testConfig(2))
	b := runGraph(t, g, inputs, testConfig(2))

	// THEN spike logs and final states are identical
	if !reflect.DeepEqual(a.SpikeLog, b.SpikeLog) {
		t.Error("spike logs differ between identical runs")
	}
	if !reflect.DeepEqual(a.FinalStates, b.FinalStates) {
		t.Error("final states differ between identical runs")
	}
}

func TestPathway_TieBreak_OrdersSimultaneousDeliveries(t *testing.T) {
	// GIVEN r fanning out to b before a, declared a then b
	grp := NewGroup("tie").Relay("a", "b", "r").Connect("r", "b", 1, 1).Connect("r", "a", 1, 1)
	g := mustCompile(t, grp)
	inputs := Inputs{g.MustLookup("r"): at(0)}
	a, b := g.MustLookup("a"), g.MustLookup("b")

	tests := []struct {
		policy string
		want   []EndpointID
	}{
		{TieBreakFIFO, []EndpointID{b, a}},
		{TieBreakDestination, []EndpointID{a, b}},
	}
	for _, tc := range tests {
		t.Run(tc.policy, func(t *testing.T) {
			cfg := testConfig(2)
			cfg.TieBreak = tc.policy
			res := runGraph(t, g, inputs, cfg)
			var got []EndpointID
			for _, s := range res.SpikeLog[1:] {
				got = append(got, s.Destination)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("delivery order = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPathway_Emit_BroadcastsToSubscribers(t *testing.T) {
	// GIVEN a channel with a relay subscriber
	g := mustCompile(t, NewGroup("g").Relay("r").Channel("c", 0.25, "r"))
	p, _ := NewPathwayFromGraph(g, testConfig(1))

	// WHEN a non-channel emit is attempted THEN it is rejected and the pathway stays Ready
	if err := p.Emit("r", 1, At(0)); err == nil {
		t.Error("Emit to a relay succeeded")
	}
	if err := p.Emit("c", 1, At(-1)); err == nil {
		t.Error("Emit before the clock succeeded")
	}
	if p.Status() != StatusReady {
		t.Fatalf("status after rejected emits = %s", p.Status())
	}

	// WHEN the channel is written at 0.2
	if err := p.Emit("c", 0.75, At(0.2)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	res := p.Finish(context.Background())

	// THEN the subscriber receives the value and the channel keeps it
	out := res.SpikesTo(g.MustLookup("r"))
	if len(out) != 1 || out[0].Interval.Start != 0.2 || out[0].Amplitude() != 0.75 {
		t.Errorf("subscriber deliveries = %v", out)
	}
	if v := res.FinalStates.Channels[g.MustLookup("c")]; v != 0.75 {
		t.Errorf("channel value = %v, want 0.75", v)
	}
}

// gatedNeuron fires on any input while the "gate" channel is positive.
type gatedNeuron struct{ fired int }

func (n *gatedNeuron) Kind() string { return "gated" }

func (n *gatedNeuron) Process(env ProcessEnv, inputs []Input) ([]Emission, error) {
	if v, ok := env.Broadcast("gate"); !ok || v <= 0 || len(inputs) == 0 {
		return nil, nil
	}
	n.fired++
	return []Emission{{}}, nil
}

func (n *gatedNeuron) Potential() float64 { return 0 }

func (n *gatedNeuron) State() NeuronState {
	return NeuronState{Kind: n.Kind(), SpikeCount: n.fired}
}

func (n *gatedNeuron) Restore(s NeuronState) error {
	n.fired = s.SpikeCount
	return nil
}

func (n *gatedNeuron) Clone() NeuronModel {
	c := *n
	return &c
}

func TestPathway_ProcessEnv_ReadsBroadcast(t *testing.T) {
	// GIVEN a gated neuron and a closed gate channel
	grp := NewGroup("g").
		Relay("a").
		Neuron("n", &gatedNeuron{}, nil, nil).
		Connect("a", "n.in", 1, 0).
		Channel("gate", 0)
	g := mustCompile(t, grp)
	p, _ := NewPathwayFromGraph(g, testConfig(1))

	// WHEN the gate opens at 0.5 and inputs arrive before and after
	if err := p.Emit("gate", 1, At(0.5)); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(Inputs{g.MustLookup("a"): at(0.2, 0.8)}); err != nil {
		t.Fatal(err)
	}
	res := p.Finish(context.Background())

	// THEN only the input after the gate opened fires the neuron
	if got := deliveries(g, res, "n.out"); len(got) != 1 || got[0] != 0.8 {
		t.Errorf("n.out deliveries = %v, want [0.8]", got)
	}
}

func TestPathway_AdvanceThenFinish_MatchesRun(t *testing.T) {
	g := mustCompile(t, latchGroup())
	inputs := Inputs{g.MustLookup("S"): at(0), g.MustLookup("R"): at(0.45)}
	whole := runGraph(t, g, inputs, testConfig(1))

	// GIVEN a pathway advanced in steps
	p, _ := NewPathwayFromGraph(g, testConfig(1))
	if err := p.Start(inputs); err != nil {
		t.Fatal(err)
	}
	for _, until := range []float64{0.1, 0.25, 0.6} {
		if err := p.Advance(context.Background(), until); err != nil {
			t.Fatalf("Advance(%v): %v", until, err)
		}
		if p.Status() != StatusRunning || p.Clock() > until {
			t.Fatalf("after Advance(%v): status %s clock %v", until, p.Status(), p.Clock())
		}
	}
	stepped := p.Finish(context.Background())

	// THEN the result equals the uninterrupted run
	if !reflect.DeepEqual(whole.SpikeLog, stepped.SpikeLog) {
		t.Error("stepped run diverged from uninterrupted run")
	}
}

func TestRunResult_Summary(t *testing.T) {
	g := mustCompile(t, NewGroup("g").Relay("a"))
	res := runGraph(t, g, Inputs{g.MustLookup("a"): at(0.5)}, testConfig(1))
	if want := "completed at t=0.5: 1 spikes delivered, 0 warnings"; res.Summary() != want {
		t.Errorf("Summary() = %q, want %q", res.Summary(), want)
	}
}
