package sim

import "fmt"

// Event is a Spike owned by the event queue, tagged with the sequence number
// assigned when it was enqueued.
type Event struct {
	Spike Spike  `json:"spike"`
	Seq   uint64 `json:"seq"`
}

// Start returns the event's delivery time.
func (e Event) Start() float64 {
	return e.Spike.Interval.Start
}

// sameKey reports whether two events share both interval bounds.
func sameKey(a, b Event) bool {
	return a.Spike.Interval.Start == b.Spike.Interval.Start && a.Spike.Interval.End == b.Spike.Interval.End
}

// TieBreaker orders spikes whose intervals are identical. It runs before the
// sequence-number fallback, so it can never reorder spikes in time.
type TieBreaker interface {
	Name() string
	Compare(a, b Spike) int
}

// Tie-break policy names accepted by RunConfig.
const (
	TieBreakFIFO        = "fifo"
	TieBreakSource      = "source"
	TieBreakDestination = "destination"
)

// ValidTieBreaks is the set of recognized tie-break policy names.
var ValidTieBreaks = map[string]bool{"": true, TieBreakFIFO: true, TieBreakSource: true, TieBreakDestination: true}

type fifoTieBreak struct{}

func (fifoTieBreak) Name() string           { return TieBreakFIFO }
func (fifoTieBreak) Compare(_, _ Spike) int { return 0 }

type sourceTieBreak struct{}

func (sourceTieBreak) Name() string { return TieBreakSource }
func (sourceTieBreak) Compare(a, b Spike) int {
	if c := compareIDs(a.Source, b.Source); c != 0 {
		return c
	}
	return compareIDs(a.Destination, b.Destination)
}

type destinationTieBreak struct{}

func (destinationTieBreak) Name() string { return TieBreakDestination }
func (destinationTieBreak) Compare(a, b Spike) int {
	if c := compareIDs(a.Destination, b.Destination); c != 0 {
		return c
	}
	return compareIDs(a.Source, b.Source)
}

func compareIDs(a, b EndpointID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// NewTieBreaker returns the named tie-break policy.
func NewTieBreaker(name string) (TieBreaker, error) {
	switch name {
	case "", TieBreakFIFO:
		return fifoTieBreak{}, nil
	case TieBreakSource:
		return sourceTieBreak{}, nil
	case TieBreakDestination:
		return destinationTieBreak{}, nil
	default:
		return nil, fmt.Errorf("unknown tie-break policy %q", name)
	}
}

// Ordering is the canonical total order over events:
// interval start → interval end → tie-break policy → sequence number.
// Queue pops, window buffers and plasticity pairing all use it.
type Ordering struct {
	tieBreak TieBreaker
}

// NewOrdering builds an Ordering around tb. A nil tb means FIFO.
func NewOrdering(tb TieBreaker) Ordering {
	if tb == nil {
		tb = fifoTieBreak{}
	}
	return Ordering{tieBreak: tb}
}

// Compare returns -1, 0 or 1. It only returns 0 for events with equal sequence numbers.
func (o Ordering) Compare(a, b Event) int {
	ai, bi := a.Spike.Interval, b.Spike.Interval
	if ai.Start != bi.Start {
		if ai.Start < bi.Start {
			return -1
		}
		return 1
	}
	// Narrower (earlier-ending) intervals resolve first.
	if ai.End != bi.End {
		if ai.End < bi.End {
			return -1
		}
		return 1
	}
	if o.tieBreak != nil {
		if c := o.tieBreak.Compare(a.Spike, b.Spike); c != 0 {
			return c
		}
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

// Less reports whether a is ordered before b.
func (o Ordering) Less(a, b Event) bool {
	return o.Compare(a, b) < 0
}

// TieBreakName returns the name of the installed tie-break policy.
func (o Ordering) TieBreakName() string {
	if o.tieBreak == nil {
		return TieBreakFIFO
	}
	return o.tieBreak.Name()
}
