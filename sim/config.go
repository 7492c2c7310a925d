package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pathway-sim/pathway-sim/sim/trace"
)

// RunConfig groups the parameters of one run. It is loadable from a YAML file.
type RunConfig struct {
	// MaxTime is the simulated-time horizon: batches starting after it are not processed.
	MaxTime float64 `json:"max_time" yaml:"max_time"`
	// TieBreak names the policy ordering spikes with identical intervals ("fifo" default).
	TieBreak string `json:"tie_break" yaml:"tie_break"`
	// TraceLevel selects what the trace recorder keeps ("none", "spikes", "full").
	TraceLevel string `json:"trace_level" yaml:"trace_level"`
	// TieBreaker overrides TieBreak with a custom policy. Not loadable from YAML.
	TieBreaker TieBreaker `json:"-" yaml:"-"`
}

// DefaultRunConfig returns a one time-unit FIFO run recording spike times.
func DefaultRunConfig() RunConfig {
	return RunConfig{MaxTime: 1, TieBreak: TieBreakFIFO, TraceLevel: string(trace.TraceLevelSpikes)}
}

// LoadRunConfig reads and parses a YAML run configuration file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
// Fields absent from the file keep their DefaultRunConfig values.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	cfg := DefaultRunConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the horizon and policy names.
func (c RunConfig) Validate() error {
	if math.IsNaN(c.MaxTime) || math.IsInf(c.MaxTime, 0) {
		return fmt.Errorf("max_time must be finite, got %v", c.MaxTime)
	}
	if c.MaxTime < 0 {
		return fmt.Errorf("max_time must be non-negative, got %v", c.MaxTime)
	}
	if c.TieBreaker == nil && !ValidTieBreaks[c.TieBreak] {
		return fmt.Errorf("unknown tie-break policy %q; valid: fifo, source, destination", c.TieBreak)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace level %q; valid: none, spikes, full", c.TraceLevel)
	}
	return nil
}

// ordering builds the canonical Ordering for the configured tie-break policy.
func (c RunConfig) ordering() (Ordering, error) {
	if c.TieBreaker != nil {
		return NewOrdering(c.TieBreaker), nil
	}
	tb, err := NewTieBreaker(c.TieBreak)
	if err != nil {
		return Ordering{}, err
	}
	return NewOrdering(tb), nil
}

func (c RunConfig) traceLevel() trace.TraceLevel {
	if c.TraceLevel == "" {
		return trace.TraceLevelNone
	}
	return trace.TraceLevel(c.TraceLevel)
}
