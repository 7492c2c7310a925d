// Package trace records per-endpoint membrane samples and spike times during a run.
// This package has no dependencies on sim/; endpoints are plain integer ids so the
// recorded data can be exported as JSON and consumed by plotting tools.
package trace

import "sort"

// TraceLevel controls how much a Recorder keeps.
type TraceLevel string

const (
	// TraceLevelNone disables recording (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSpikes records spike times only.
	TraceLevelSpikes TraceLevel = "spikes"
	// TraceLevelFull records spike times and membrane potential samples.
	TraceLevelFull TraceLevel = "full"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelSpikes: true,
	TraceLevelFull:   true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Sample is one membrane potential reading.
type Sample struct {
	Time  float64 `json:"t"`
	Value float64 `json:"v"`
}

// Series is everything recorded for one endpoint.
type Series struct {
	Samples []Sample  `json:"samples,omitempty"`
	Spikes  []float64 `json:"spikes,omitempty"`
}

// Recorder collects series keyed by endpoint id.
type Recorder struct {
	Level  TraceLevel      `json:"level"`
	Series map[int]*Series `json:"series"`
}

// NewRecorder creates a Recorder ready for recording.
func NewRecorder(level TraceLevel) *Recorder {
	return &Recorder{Level: level, Series: make(map[int]*Series)}
}

func (r *Recorder) series(endpoint int) *Series {
	s, ok := r.Series[endpoint]
	if !ok {
		s = &Series{}
		r.Series[endpoint] = s
	}
	return s
}

// RecordSample appends a membrane sample. Only kept at TraceLevelFull.
func (r *Recorder) RecordSample(endpoint int, t, v float64) {
	if r == nil || r.Level != TraceLevelFull {
		return
	}
	s := r.series(endpoint)
	s.Samples = append(s.Samples, Sample{Time: t, Value: v})
}

// RecordSpike appends a spike time.
func (r *Recorder) RecordSpike(endpoint int, t float64) {
	if r == nil || (r.Level != TraceLevelSpikes && r.Level != TraceLevelFull) {
		return
	}
	s := r.series(endpoint)
	s.Spikes = append(s.Spikes, t)
}

// Endpoints returns the recorded endpoint ids in ascending order.
func (r *Recorder) Endpoints() []int {
	if r == nil {
		return nil
	}
	ids := make([]int, 0, len(r.Series))
	for id := range r.Series {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Clone returns a deep copy.
func (r *Recorder) Clone() *Recorder {
	if r == nil {
		return nil
	}
	out := NewRecorder(r.Level)
	for id, s := range r.Series {
		out.Series[id] = &Series{
			Samples: append([]Sample(nil), s.Samples...),
			Spikes:  append([]float64(nil), s.Spikes...),
		}
	}
	return out
}
