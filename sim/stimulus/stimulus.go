// Package stimulus turns YAML stimulus definitions into input spike streams.
// Generated trains are seeded through sim.StimulusRNG, so the same seed always
// produces the same inputs.
package stimulus

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pathway-sim/pathway-sim/sim"
)

// Stream kinds.
const (
	KindExplicit = "explicit"
	KindRegular  = "regular"
	KindPoisson  = "poisson"
)

var validKinds = map[string]bool{KindExplicit: true, KindRegular: true, KindPoisson: true}

// MaxStreamSpikes bounds the spikes one generated stream may produce (the expected
// count for poisson streams).
const MaxStreamSpikes = 1_000_000

// Spec is a complete stimulus definition.
type Spec struct {
	Seed    int64        `yaml:"seed"`
	Streams []StreamSpec `yaml:"streams"`
	Emits   []EmitSpec   `yaml:"emits,omitempty"`
}

// StreamSpec generates spikes for one target endpoint.
type StreamSpec struct {
	// Name selects an isolated random stream; unnamed streams share the master seed.
	Name   string `yaml:"name,omitempty"`
	Target string `yaml:"target"`
	Kind   string `yaml:"kind"`

	Times []float64 `yaml:"times,omitempty"` // explicit

	Start  float64 `yaml:"start,omitempty"`  // regular, poisson
	Stop   float64 `yaml:"stop,omitempty"`   // regular, poisson
	Period float64 `yaml:"period,omitempty"` // regular
	Count  int     `yaml:"count,omitempty"`  // regular; 0 means until Stop
	Rate   float64 `yaml:"rate,omitempty"`   // poisson, spikes per time unit

	// Width is the interval width of every spike; Jitter adds a uniform [0, Jitter) width.
	Width   float64  `yaml:"width,omitempty"`
	Jitter  float64  `yaml:"jitter,omitempty"`
	Payload *float64 `yaml:"payload,omitempty"`
}

// EmitSpec is an explicit broadcast channel write.
type EmitSpec struct {
	Channel string  `yaml:"channel"`
	Value   float64 `yaml:"value"`
	At      float64 `yaml:"at"`
}

// Load reads and parses a YAML stimulus file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stimulus: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML stimulus document.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing stimulus: %w", err)
	}
	return &spec, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks that all fields in the spec are valid.
func (s *Spec) Validate() error {
	for i, st := range s.Streams {
		if err := st.validate(); err != nil {
			return fmt.Errorf("stream %d (%s): %w", i, st.Target, err)
		}
	}
	for i, e := range s.Emits {
		if e.Channel == "" {
			return fmt.Errorf("emit %d: channel is required", i)
		}
		if !finite(e.Value) || !finite(e.At) || e.At < 0 {
			return fmt.Errorf("emit %d: value and time must be finite, time non-negative", i)
		}
	}
	return nil
}

func (st StreamSpec) validate() error {
	if st.Target == "" {
		return fmt.Errorf("target is required")
	}
	if !validKinds[st.Kind] {
		return fmt.Errorf("unknown kind %q; valid: explicit, regular, poisson", st.Kind)
	}
	if !finite(st.Width) || st.Width < 0 || !finite(st.Jitter) || st.Jitter < 0 {
		return fmt.Errorf("width and jitter must be non-negative and finite")
	}
	if st.Payload != nil && !finite(*st.Payload) {
		return fmt.Errorf("payload must be finite")
	}
	switch st.Kind {
	case KindExplicit:
		for _, t := range st.Times {
			if !finite(t) || t < 0 {
				return fmt.Errorf("time %v must be non-negative and finite", t)
			}
		}
	case KindRegular:
		if !finite(st.Period) || st.Period <= 0 {
			return fmt.Errorf("period must be positive, got %v", st.Period)
		}
		if st.Count < 0 || st.Count > MaxStreamSpikes {
			return fmt.Errorf("count must be in [0, %d], got %d", MaxStreamSpikes, st.Count)
		}
		if !finite(st.Stop) {
			return fmt.Errorf("stop must be finite, got %v", st.Stop)
		}
		if st.Count == 0 && st.Stop <= st.Start {
			return fmt.Errorf("regular stream needs count or stop > start")
		}
		if st.Count == 0 && (st.Stop-st.Start)/st.Period >= MaxStreamSpikes {
			return fmt.Errorf("regular stream would generate more than %d spikes", MaxStreamSpikes)
		}
	case KindPoisson:
		if !finite(st.Rate) || st.Rate <= 0 {
			return fmt.Errorf("rate must be positive, got %v", st.Rate)
		}
		if !finite(st.Stop) || st.Stop <= st.Start {
			return fmt.Errorf("poisson stream needs stop > start")
		}
		if st.Rate*(st.Stop-st.Start) > MaxStreamSpikes {
			return fmt.Errorf("poisson stream expects more than %d spikes", MaxStreamSpikes)
		}
	}
	if !finite(st.Start) || st.Start < 0 {
		return fmt.Errorf("start must be non-negative and finite")
	}
	return nil
}

// Materialize resolves stream targets against g and generates every spike.
// Streams are generated in declaration order; several streams may share a target.
func (s *Spec) Materialize(g *sim.Graph) (sim.Inputs, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rng := sim.NewStimulusRNG(s.Seed)
	jitter := rng.Jitter()
	inputs := make(sim.Inputs)
	for i, st := range s.Streams {
		id, ok := g.Lookup(st.Target)
		if !ok {
			return nil, fmt.Errorf("stream %d: unknown target %q", i, st.Target)
		}
		src := rng.Shared()
		if st.Name != "" {
			src = rng.Named(st.Name)
		}
		for _, t := range st.times(src) {
			width := st.Width
			if st.Jitter > 0 {
				width += jitter.Float64() * st.Jitter
			}
			inputs[id] = append(inputs[id], sim.InputSpike{
				Interval: sim.Interval{Start: t, End: t + width},
				Payload:  st.Payload,
			})
		}
	}
	return inputs, nil
}

// times returns the stream's spike start times in generation order.
func (st StreamSpec) times(src *rand.Rand) []float64 {
	switch st.Kind {
	case KindExplicit:
		return append([]float64(nil), st.Times...)
	case KindRegular:
		var out []float64
		for k := 0; st.Count == 0 || k < st.Count; k++ {
			t := st.Start + float64(k)*st.Period
			if st.Count == 0 && t > st.Stop {
				break
			}
			out = append(out, t)
		}
		return out
	case KindPoisson:
		var out []float64
		for t := st.Start + src.ExpFloat64()/st.Rate; t <= st.Stop; t += src.ExpFloat64() / st.Rate {
			out = append(out, t)
		}
		return out
	}
	return nil
}

// ScheduleEmits queues the explicit channel writes on p, which must be Ready or Running.
func (s *Spec) ScheduleEmits(p *sim.Pathway) error {
	for i, e := range s.Emits {
		if err := p.Emit(e.Channel, e.Value, sim.At(e.At)); err != nil {
			return fmt.Errorf("emit %d: %w", i, err)
		}
	}
	return nil
}
