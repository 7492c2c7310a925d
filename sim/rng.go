package sim

import (
	"hash/fnv"
	"math/rand"
)

// StimulusRNG derives the random sources of stimulus generation from one seed.
// Unnamed trains share a generator seeded with the seed itself. Width jitter and
// every named train get their own generator seeded with seed ^ fnv64a(label), so
// adding a named train never shifts the draws of another. Not safe for concurrent use.
type StimulusRNG struct {
	seed    int64
	sources map[string]*rand.Rand
}

const jitterLabel = "jitter"

// NewStimulusRNG creates the generators for seed. They are created on first use.
func NewStimulusRNG(seed int64) *StimulusRNG {
	return &StimulusRNG{seed: seed, sources: make(map[string]*rand.Rand)}
}

// Seed returns the seed every generator derives from.
func (r *StimulusRNG) Seed() int64 { return r.seed }

// Shared returns the generator of unnamed trains.
func (r *StimulusRNG) Shared() *rand.Rand { return r.source("", r.seed) }

// Jitter returns the generator of interval width jitter.
func (r *StimulusRNG) Jitter() *rand.Rand {
	return r.source(jitterLabel, r.seed^labelHash(jitterLabel))
}

// Named returns the generator of the train called name.
func (r *StimulusRNG) Named(name string) *rand.Rand {
	label := trainLabel(name)
	return r.source(label, r.seed^labelHash(label))
}

func (r *StimulusRNG) source(label string, seed int64) *rand.Rand {
	if src, ok := r.sources[label]; ok {
		return src
	}
	src := rand.New(rand.NewSource(seed))
	r.sources[label] = src
	return src
}

func trainLabel(name string) string { return "train:" + name }

func labelHash(label string) int64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	return int64(h.Sum64())
}
