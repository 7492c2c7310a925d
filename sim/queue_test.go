package sim

import (
	"testing"
)

func ev(start, end float64, seq uint64, src, dst EndpointID) Event {
	return Event{Spike: Spike{Source: src, Destination: dst, Via: NoEndpoint, Interval: Interval{Start: start, End: end}}, Seq: seq}
}

func TestEventQueue_PopNext_CanonicalOrder(t *testing.T) {
	// GIVEN events scheduled out of order, including a wide and a narrow interval at the same start
	q := NewEventQueue(NewOrdering(nil))
	q.Schedule(ev(2, 2, 0, 0, 1))
	q.Schedule(ev(1, 1.5, 1, 0, 1))
	q.Schedule(ev(1, 1, 2, 0, 1))
	q.Schedule(ev(0.5, 0.5, 3, 0, 1))

	// WHEN all are popped
	var got []uint64
	for {
		e, ok := q.PopNext()
		if !ok {
			break
		}
		got = append(got, e.Seq)
	}

	// THEN start ascends and the narrower interval wins a start tie
	want := []uint64{3, 2, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("popped %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pop %d: seq %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEventQueue_PopBatch_GroupsIdenticalIntervals(t *testing.T) {
	// GIVEN three events at [1,1] and one at [1,2]
	q := NewEventQueue(NewOrdering(nil))
	q.Schedule(ev(1, 1, 5, 0, 1))
	q.Schedule(ev(1, 2, 6, 0, 1))
	q.Schedule(ev(1, 1, 3, 0, 1))
	q.Schedule(ev(1, 1, 4, 0, 1))

	// WHEN one batch is popped
	batch := q.PopBatch()

	// THEN it holds exactly the [1,1] events in sequence order
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
	for i, seq := range []uint64{3, 4, 5} {
		if batch[i].Seq != seq {
			t.Errorf("batch[%d].Seq = %d, want %d", i, batch[i].Seq, seq)
		}
	}
	if q.Len() != 1 {
		t.Errorf("remaining = %d, want 1", q.Len())
	}
}

func TestEventQueue_PopBatch_Empty_ReturnsNil(t *testing.T) {
	// GIVEN an empty queue
	q := NewEventQueue(NewOrdering(nil))

	// WHEN PopBatch and Peek are called
	// THEN nothing is returned
	if b := q.PopBatch(); b != nil {
		t.Errorf("PopBatch on empty queue = %v, want nil", b)
	}
	if _, ok := q.Peek(); ok {
		t.Error("Peek on empty queue reported an event")
	}
}

func TestEventQueue_Sorted_DoesNotDrain(t *testing.T) {
	// GIVEN a queue with three events
	q := NewEventQueue(NewOrdering(nil))
	q.Schedule(ev(3, 3, 0, 0, 1))
	q.Schedule(ev(1, 1, 1, 0, 1))
	q.Schedule(ev(2, 2, 2, 0, 1))

	// WHEN Sorted is called
	sorted := q.Sorted()

	// THEN the copy is ordered and the queue is intact
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Start() > sorted[i].Start() {
			t.Errorf("Sorted out of order at %d: %v", i, sorted)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len after Sorted = %d, want 3", q.Len())
	}

	// WHEN Clear is called THEN the queue empties
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", q.Len())
	}
}

func TestOrdering_TieBreakPolicies(t *testing.T) {
	// GIVEN two events with identical intervals; the later-enqueued one has the smaller ids
	early := ev(1, 1, 0, 4, 9)
	late := ev(1, 1, 1, 2, 3)

	tests := []struct {
		policy    string
		wantFirst uint64
	}{
		{TieBreakFIFO, 0},
		{TieBreakSource, 1},
		{TieBreakDestination, 1},
	}
	for _, tc := range tests {
		t.Run(tc.policy, func(t *testing.T) {
			tb, err := NewTieBreaker(tc.policy)
			if err != nil {
				t.Fatalf("NewTieBreaker: %v", err)
			}
			o := NewOrdering(tb)
			first := early
			if o.Less(late, early) {
				first = late
			}
			if first.Seq != tc.wantFirst {
				t.Errorf("%s ordered seq %d first, want %d", tc.policy, first.Seq, tc.wantFirst)
			}
			if o.TieBreakName() != tc.policy {
				t.Errorf("TieBreakName = %q, want %q", o.TieBreakName(), tc.policy)
			}
		})
	}
}

func TestOrdering_TieBreakNeverReordersTime(t *testing.T) {
	// GIVEN a destination tie-break and an earlier event with a larger destination
	tb, _ := NewTieBreaker(TieBreakDestination)
	o := NewOrdering(tb)
	earlier := ev(1, 1, 9, 0, 99)
	later := ev(1.5, 1.5, 0, 0, 0)

	// THEN time still decides
	if !o.Less(earlier, later) {
		t.Error("tie-break reordered events in time")
	}
}

func TestNewTieBreaker_Unknown_ReturnsError(t *testing.T) {
	if _, err := NewTieBreaker("random"); err == nil {
		t.Error("expected error for unknown tie-break policy")
	}
}
