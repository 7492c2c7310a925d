package sim

import (
	"math"
	"slices"
)

// WindowEntry is a buffered spike together with the endpoint it was observed at.
type WindowEntry struct {
	Event    Event      `json:"event"`
	Endpoint EndpointID `json:"endpoint"`
}

// WindowState is the mutable state of a window during a run.
type WindowState struct {
	Buffer    []WindowEntry `json:"buffer,omitempty"`
	LastFire  float64       `json:"last_fire"`
	HasFired  bool          `json:"has_fired"`
	FireCount int           `json:"fire_count"`
}

type windowRuntime struct {
	node  *WindowNode
	state WindowState
}

func newWindowRuntime(node *WindowNode) *windowRuntime {
	return &windowRuntime{node: node}
}

// observe buffers ev (seen at endpoint at), evicts expired entries and evaluates the
// coincidence predicate. It returns the number of distinct endpoints when the window fires.
func (w *windowRuntime) observe(ev Event, at EndpointID, clock float64, order Ordering) (int, bool) {
	entry := WindowEntry{Event: ev, Endpoint: at}
	pos, _ := slices.BinarySearchFunc(w.state.Buffer, entry, func(a, b WindowEntry) int {
		return order.Compare(a.Event, b.Event)
	})
	w.state.Buffer = slices.Insert(w.state.Buffer, pos, entry)
	w.evict(clock)

	distinct := w.distinct()
	if distinct < w.node.MinSources {
		return 0, false
	}
	if w.node.Cooldown > 0 && w.state.HasFired && clock-w.state.LastFire < w.node.Cooldown {
		return 0, false
	}
	w.state.LastFire, w.state.HasFired = clock, true
	w.state.FireCount++
	if !w.node.Retain {
		w.state.Buffer = nil
	}
	return distinct, true
}

// evict drops entries that are outside the window at clock.
func (w *windowRuntime) evict(clock float64) {
	horizon := clock - w.node.Span
	bucket := math.Inf(-1)
	if w.node.Mode == WindowFixed {
		bucket = math.Floor(clock/w.node.Span) * w.node.Span
	}
	w.state.Buffer = slices.DeleteFunc(w.state.Buffer, func(e WindowEntry) bool {
		iv := e.Event.Spike.Interval
		return iv.End < horizon || iv.Start < bucket
	})
}

// distinct counts distinct endpoints in canonical buffer order.
func (w *windowRuntime) distinct() int {
	seen := make(map[EndpointID]struct{}, len(w.state.Buffer))
	for _, e := range w.state.Buffer {
		seen[e.Endpoint] = struct{}{}
	}
	return len(seen)
}

func (w *windowRuntime) snapshot() WindowState {
	s := w.state
	s.Buffer = slices.Clone(w.state.Buffer)
	return s
}
