package trace

// EndpointSummary aggregates statistics for one endpoint's series.
type EndpointSummary struct {
	Endpoint   int
	SpikeCount int
	FirstSpike float64
	LastSpike  float64
	Rate       float64 // spikes per unit time over the summarized duration
	MeanISI    float64 // mean inter-spike interval; 0 with fewer than two spikes
	PeakValue  float64
	MinValue   float64
}

// TraceSummary aggregates statistics from a Recorder.
type TraceSummary struct {
	Duration    float64
	TotalSpikes int
	Endpoints   []EndpointSummary // ascending endpoint id
}

// Summarize computes per-endpoint statistics over duration.
// Safe for nil or empty recorders (returns zero-value fields).
func Summarize(r *Recorder, duration float64) *TraceSummary {
	summary := &TraceSummary{Duration: duration}
	if r == nil {
		return summary
	}
	for _, id := range r.Endpoints() {
		s := r.Series[id]
		es := EndpointSummary{Endpoint: id, SpikeCount: len(s.Spikes)}
		if n := len(s.Spikes); n > 0 {
			es.FirstSpike = s.Spikes[0]
			es.LastSpike = s.Spikes[n-1]
			if n > 1 {
				es.MeanISI = (es.LastSpike - es.FirstSpike) / float64(n-1)
			}
			if duration > 0 {
				es.Rate = float64(n) / duration
			}
		}
		for i, smp := range s.Samples {
			if i == 0 || smp.Value > es.PeakValue {
				es.PeakValue = smp.Value
			}
			if i == 0 || smp.Value < es.MinValue {
				es.MinValue = smp.Value
			}
		}
		summary.TotalSpikes += es.SpikeCount
		summary.Endpoints = append(summary.Endpoints, es)
	}
	return summary
}
