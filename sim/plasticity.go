package sim

import (
	"fmt"
	"math"
	"strings"
)

// Plasticity rule names.
const (
	PlasticityNone   = "none"
	PlasticitySTDP   = "stdp"
	PlasticityReward = "reward-stdp"
)

// NormalizePlasticityRuleName maps accepted aliases onto canonical rule names.
func NormalizePlasticityRuleName(rule string) string {
	switch strings.ToLower(strings.TrimSpace(rule)) {
	case "", PlasticityNone:
		return PlasticityNone
	case PlasticitySTDP, "pair-stdp":
		return PlasticitySTDP
	case PlasticityReward, "rstdp", "r-stdp":
		return PlasticityReward
	default:
		return strings.ToLower(strings.TrimSpace(rule))
	}
}

// PlasticityRule computes a weight change from relative spike timing.
type PlasticityRule interface {
	Name() string
	// WeightChange returns Δw for dt = post − pre. modulation is the synapse's
	// current neuromodulatory level; rules that ignore it must not depend on it.
	WeightChange(dt, modulation float64) float64
}

// STDP is pair-based spike-timing-dependent plasticity.
// Causal pairs (dt > 0) potentiate, anti-causal pairs (dt < 0) depress,
// both decaying exponentially with |dt|. Pairs further apart than Window
// (when Window > 0) and simultaneous pairs leave the weight unchanged.
type STDP struct {
	APlus    float64
	AMinus   float64
	TauPlus  float64
	TauMinus float64
	Window   float64
}

// DefaultSTDP returns commonly used STDP constants.
func DefaultSTDP() STDP {
	return STDP{APlus: 0.01, AMinus: 0.012, TauPlus: 0.02, TauMinus: 0.02, Window: 0.1}
}

func (r STDP) Name() string { return PlasticitySTDP }

// Validate checks parameter ranges.
func (r STDP) Validate() error {
	if r.TauPlus <= 0 || r.TauMinus <= 0 {
		return fmt.Errorf("stdp time constants must be positive, got tau_plus=%v tau_minus=%v", r.TauPlus, r.TauMinus)
	}
	if r.APlus < 0 || r.AMinus < 0 {
		return fmt.Errorf("stdp amplitudes must be non-negative, got a_plus=%v a_minus=%v", r.APlus, r.AMinus)
	}
	if r.Window < 0 {
		return fmt.Errorf("stdp window must be non-negative, got %v", r.Window)
	}
	return nil
}

func (r STDP) WeightChange(dt, _ float64) float64 {
	if dt == 0 || math.IsNaN(dt) {
		return 0
	}
	if r.Window > 0 && math.Abs(dt) > r.Window {
		return 0
	}
	if dt > 0 {
		return r.APlus * math.Exp(-dt/r.TauPlus)
	}
	return -r.AMinus * math.Exp(dt/r.TauMinus)
}

// RewardSTDP scales STDP by the synapse's modulation level, which a broadcast
// channel sets when the synapse subscribes to it.
type RewardSTDP struct {
	STDP
}

func (r RewardSTDP) Name() string { return PlasticityReward }

func (r RewardSTDP) WeightChange(dt, modulation float64) float64 {
	return modulation * r.STDP.WeightChange(dt, modulation)
}

// WeightBounds clamps plastic weights into [Min, Max].
type WeightBounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate checks Min <= Max.
func (b WeightBounds) Validate() error {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) || b.Min > b.Max {
		return fmt.Errorf("weight bounds [%v, %v] are empty", b.Min, b.Max)
	}
	return nil
}

// Clamp returns w limited to the bounds and whether clamping happened.
func (b WeightBounds) Clamp(w float64) (float64, bool) {
	switch {
	case w < b.Min:
		return b.Min, true
	case w > b.Max:
		return b.Max, true
	}
	return w, false
}
