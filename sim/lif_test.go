package sim

import (
	"math"
	"reflect"
	"testing"
)

func TestLIF_FiresAtThreshold_HardReset(t *testing.T) {
	// GIVEN a LIF neuron without leak, threshold 1
	n := MustLIF(LIFParams{Threshold: 1})

	// WHEN two inputs of 0.5 arrive in one delivery
	out, err := n.Process(fixedEnv(0.1), []Input{drive("in", 0.5), drive("in", 0.5)})

	// THEN it fires once and resets to zero
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("emissions = %d, want 1", len(out))
	}
	if n.Potential() != 1 {
		t.Errorf("sampled potential = %v, want 1", n.Potential())
	}
	if s := n.State(); s.Potential != 0 || s.SpikeCount != 1 {
		t.Errorf("state after fire = %+v, want potential 0 and one spike", s)
	}
}

func TestLIF_Leak_DecaysBetweenDeliveries(t *testing.T) {
	// GIVEN a LIF neuron with tau 0.1 charged to 0.8 at t=0
	n := MustLIF(LIFParams{Tau: 0.1, Threshold: 1})
	if _, err := n.Process(fixedEnv(0), []Input{drive("in", 0.8)}); err != nil {
		t.Fatal(err)
	}

	// WHEN 0.5 more arrives one time constant later
	out, _ := n.Process(fixedEnv(0.1), []Input{drive("in", 0.5)})

	// THEN the decayed sum stays below threshold
	want := 0.8*math.Exp(-1) + 0.5
	if len(out) != 0 {
		t.Errorf("fired with potential %v, want no fire", n.Potential())
	}
	if math.Abs(n.Potential()-want) > 1e-12 {
		t.Errorf("potential = %v, want %v", n.Potential(), want)
	}
}

func TestLIF_SubtractReset_KeepsRemainder(t *testing.T) {
	// GIVEN a subtract-reset neuron
	n := MustLIF(LIFParams{Threshold: 1, Reset: ResetSubtract})

	// WHEN driven to 1.25
	out, _ := n.Process(fixedEnv(0), []Input{drive("in", 1.25)})

	// THEN it fires and keeps 0.25
	if len(out) != 1 || n.State().Potential != 0.25 {
		t.Errorf("emissions=%d potential=%v, want 1 and 0.25", len(out), n.State().Potential)
	}
}

func TestLIF_Refractory_IgnoresInput(t *testing.T) {
	// GIVEN a neuron with refractory period 0.5 that fired at t=0
	n := MustLIF(LIFParams{Threshold: 1, Refractory: 0.5})
	if out, _ := n.Process(fixedEnv(0), []Input{drive("in", 1)}); len(out) != 1 {
		t.Fatal("expected the first input to fire")
	}

	// WHEN a suprathreshold input arrives inside the refractory period and another after it
	during, _ := n.Process(fixedEnv(0.2), []Input{drive("in", 2)})
	after, _ := n.Process(fixedEnv(0.6), []Input{drive("in", 2)})

	// THEN only the later one fires
	if len(during) != 0 {
		t.Error("fired during refractory period")
	}
	if len(after) != 1 {
		t.Error("did not fire after refractory period")
	}
}

func TestLIF_Latency_ShiftsEmission(t *testing.T) {
	n := MustLIF(LIFParams{Threshold: 1, Latency: 0.25})
	out, _ := n.Process(fixedEnv(0), []Input{drive("in", 1)})
	if len(out) != 1 || out[0].Latency != 0.25 {
		t.Errorf("emissions = %+v, want one with latency 0.25", out)
	}
}

func TestLIF_StateRestore_RoundTrip(t *testing.T) {
	// GIVEN a neuron with some history
	n := MustLIF(LIFParams{Tau: 0.2, Threshold: 2})
	_, _ = n.Process(fixedEnv(0.3), []Input{drive("in", 1.5)})

	// WHEN its state is restored into a fresh clone of the prototype
	fresh := MustLIF(LIFParams{Tau: 0.2, Threshold: 2})
	if err := fresh.Restore(n.State()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// THEN both respond identically to the same input
	a, _ := n.Process(fixedEnv(0.35), []Input{drive("in", 1)})
	b, _ := fresh.Process(fixedEnv(0.35), []Input{drive("in", 1)})
	if len(a) != len(b) || !reflect.DeepEqual(n.State(), fresh.State()) {
		t.Errorf("diverged after restore: %+v vs %+v", n.State(), fresh.State())
	}
}

func TestLIF_Restore_RejectsOtherKind(t *testing.T) {
	n := MustLIF(LIFParams{Threshold: 1})
	if err := n.Restore(NeuronState{Kind: "dlif"}); err == nil {
		t.Error("expected error restoring dlif state into lif")
	}
}

func TestLIF_Clone_IsIndependent(t *testing.T) {
	// GIVEN a prototype and its clone
	proto := MustLIF(LIFParams{Threshold: 10})
	clone := proto.Clone()

	// WHEN the clone integrates input
	_, _ = clone.Process(fixedEnv(0), []Input{drive("in", 3)})

	// THEN the prototype is untouched
	if proto.State().Potential != 0 {
		t.Errorf("prototype potential = %v, want 0", proto.State().Potential)
	}
}

func TestLIFParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		params LIFParams
	}{
		{"zero threshold", LIFParams{}},
		{"nan tau", LIFParams{Threshold: 1, Tau: math.NaN()}},
		{"unknown reset", LIFParams{Threshold: 1, Reset: "soft"}},
		{"negative refractory", LIFParams{Threshold: 1, Refractory: -1}},
		{"negative latency", LIFParams{Threshold: 1, Latency: -0.1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewLIF(tc.params); err == nil {
				t.Errorf("NewLIF(%+v) accepted invalid params", tc.params)
			}
		})
	}
}
