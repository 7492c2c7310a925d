package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pathway-sim/pathway-sim/sim/trace"
)

// Pathway owns one run over a compiled Graph: runtime component state, the event
// queue, the clock and the run configuration. It is not safe for concurrent use.
//
// Lifecycle: Building -> Ready -> Running -> Completed | Failed.
type Pathway struct {
	root   *Group
	graph  *Graph
	config RunConfig
	order  Ordering
	status RunStatus

	queue   *EventQueue
	clock   float64
	nextSeq uint64

	neurons  []NeuronModel
	synapses []*synapseRuntime
	windows  []*windowRuntime
	channels []*channelRuntime

	spikeLog  []Spike
	warnings  []PlasticityBoundsError
	traces    *trace.Recorder
	failure   error
	truncated bool
}

// NewPathway creates a Building pathway for root. Call Build before Start.
func NewPathway(root *Group, cfg RunConfig) *Pathway {
	return &Pathway{root: root, config: cfg, status: StatusBuilding}
}

// NewPathwayFromGraph creates a Ready pathway over an already compiled graph.
func NewPathwayFromGraph(g *Graph, cfg RunConfig) (*Pathway, error) {
	if g == nil {
		return nil, errors.New("nil graph")
	}
	p := &Pathway{config: cfg, status: StatusBuilding}
	if err := p.init(g); err != nil {
		return nil, err
	}
	return p, nil
}

// Build compiles and validates the group tree. On error the pathway stays Building
// and no graph is installed.
func (p *Pathway) Build() error {
	if p.status != StatusBuilding {
		return fmt.Errorf("build: pathway is %s", p.status)
	}
	g, err := Compile(p.root)
	if err != nil {
		return err
	}
	return p.init(g)
}

// init installs g and fresh runtime state, moving the pathway to Ready.
func (p *Pathway) init(g *Graph) error {
	if err := p.config.Validate(); err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	order, err := p.config.ordering()
	if err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	p.graph = g
	p.order = order
	p.queue = NewEventQueue(order)
	p.clock = 0
	p.nextSeq = 0

	p.neurons = make([]NeuronModel, len(g.neurons))
	for i, n := range g.neurons {
		p.neurons[i] = n.Model.Clone()
	}
	p.synapses = make([]*synapseRuntime, len(g.synapses))
	for i, s := range g.synapses {
		p.synapses[i] = newSynapseRuntime(s)
	}
	p.windows = make([]*windowRuntime, len(g.windows))
	for i, w := range g.windows {
		p.windows[i] = newWindowRuntime(w)
	}
	p.channels = make([]*channelRuntime, len(g.channels))
	for i, c := range g.channels {
		p.channels[i] = newChannelRuntime(c)
	}

	p.spikeLog = nil
	p.warnings = nil
	p.traces = trace.NewRecorder(p.config.traceLevel())
	p.failure = nil
	p.truncated = false
	p.status = StatusReady
	return nil
}

// Status returns the lifecycle state.
func (p *Pathway) Status() RunStatus { return p.status }

// Graph returns the compiled graph, or nil while Building.
func (p *Pathway) Graph() *Graph { return p.graph }

// Clock returns the current simulated time.
func (p *Pathway) Clock() float64 { return p.clock }

// Config returns the run configuration.
func (p *Pathway) Config() RunConfig { return p.config }

// Pending returns the number of queued events.
func (p *Pathway) Pending() int {
	if p.queue == nil {
		return 0
	}
	return p.queue.Len()
}

// Start seeds the queue with inputs and moves the pathway to Running.
// Streams are seeded in ascending endpoint order, each in its given order, so
// sequence numbers are reproducible. An invalid input fails the run.
func (p *Pathway) Start(inputs Inputs) error {
	if p.status != StatusReady {
		return fmt.Errorf("start: pathway is %s, want %s", p.status, StatusReady)
	}
	ids := make([]EndpointID, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var spikes []Spike
	for _, id := range ids {
		for _, in := range inputs[id] {
			spikes = append(spikes, Spike{
				Source:      NoEndpoint,
				Destination: id,
				Via:         NoEndpoint,
				Interval:    in.Interval,
				Payload:     in.Payload,
			})
		}
	}
	p.status = StatusRunning
	if err := p.enqueue(spikes); err != nil {
		return err
	}
	logrus.Infof("[t=%g] Simulation started: %d endpoints, %d input spikes, max_time=%g, tie_break=%s",
		p.clock, p.graph.Len(), len(spikes), p.config.MaxTime, p.order.TieBreakName())
	return nil
}

// Emit schedules an explicit write of value to the named broadcast channel at the
// given interval. It is accepted while Ready or Running; a rejected emit leaves
// the pathway untouched.
func (p *Pathway) Emit(channel string, value float64, at Interval) error {
	if p.status != StatusReady && p.status != StatusRunning {
		return fmt.Errorf("emit: pathway is %s", p.status)
	}
	id, ok := p.graph.Lookup(channel)
	if !ok || p.graph.endpoints[id].Kind != KindChannel {
		return fmt.Errorf("emit: %q is not a broadcast channel", channel)
	}
	ev := Event{
		Spike: Spike{Source: NoEndpoint, Destination: id, Via: NoEndpoint, Interval: at, Payload: Value(value)},
		Seq:   p.nextSeq,
	}
	if err := p.check(ev); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	p.queue.Schedule(ev)
	p.nextSeq++
	return nil
}

// Run seeds inputs and runs to completion. It panics if the pathway is not Ready.
func (p *Pathway) Run(ctx context.Context, inputs Inputs) *RunResult {
	if p.status != StatusReady {
		panic(fmt.Sprintf("Run called on a %s pathway", p.status))
	}
	if err := p.Start(inputs); err != nil {
		return p.Result()
	}
	return p.Finish(ctx)
}

// Advance processes every batch starting at or before until (capped at MaxTime)
// and leaves the pathway Running. It returns ctx.Err() when stopped early and the
// failure when the run fails.
func (p *Pathway) Advance(ctx context.Context, until float64) error {
	if p.status != StatusRunning {
		return fmt.Errorf("advance: pathway is %s, want %s", p.status, StatusRunning)
	}
	if !finite(until) {
		return fmt.Errorf("advance: until must be finite, got %v", until)
	}
	if err := p.runUntil(ctx, math.Min(until, p.config.MaxTime)); err != nil {
		return err
	}
	if p.status == StatusFailed {
		return p.failure
	}
	return nil
}

// Finish runs to MaxTime and returns the result. A Ready pathway is started with no
// inputs first. When ctx is cancelled the remaining queue is discarded and the
// run completes with Truncated set.
func (p *Pathway) Finish(ctx context.Context) *RunResult {
	switch p.status {
	case StatusReady:
		if err := p.Start(nil); err != nil {
			return p.Result()
		}
	case StatusRunning:
	default:
		return p.Result()
	}

	if err := p.runUntil(ctx, p.config.MaxTime); err != nil {
		logrus.Infof("[t=%g] Stop signal received, discarding %d queued events", p.clock, p.queue.Len())
		p.queue.Clear()
		p.truncated = true
	}
	if p.status == StatusRunning {
		p.status = StatusCompleted
		logrus.Infof("[t=%g] Simulation ended: %d spikes delivered", p.clock, len(p.spikeLog))
	}
	return p.Result()
}

// runUntil pops and processes batches until the head of the queue starts after
// limit, the queue empties, the run fails or ctx is done. The stop signal is
// checked once per batch.
func (p *Pathway) runUntil(ctx context.Context, limit float64) error {
	for p.status == StatusRunning {
		if err := ctx.Err(); err != nil {
			return err
		}
		head, ok := p.queue.Peek()
		if !ok || head.Start() > limit {
			return nil
		}
		p.processBatch(p.queue.PopBatch())
	}
	return nil
}

// batch accumulates the effects of one delivery key. Neurons process clones and
// trace points are buffered until commit; synapse, window and channel state is
// saved the first time the batch touches it so a failure can roll it back.
type batch struct {
	iv     Interval
	order  []int // neurons in first-arrival order
	inputs map[int][]Input
	first  map[int]Event
	staged []Spike

	clock    float64
	logLen   int
	warnLen  int
	next     map[int]NeuronModel
	synapses map[int]SynapseState
	windows  map[int]WindowState
	channels map[int]float64
	samples  []tracePoint
	spikes   []tracePoint
}

type tracePoint struct {
	endpoint int
	t, v     float64
}

func (p *Pathway) newBatch(iv Interval) *batch {
	return &batch{
		iv:       iv,
		inputs:   make(map[int][]Input),
		first:    make(map[int]Event),
		clock:    p.clock,
		logLen:   len(p.spikeLog),
		warnLen:  len(p.warnings),
		next:     make(map[int]NeuronModel),
		synapses: make(map[int]SynapseState),
		windows:  make(map[int]WindowState),
		channels: make(map[int]float64),
	}
}

func (b *batch) gather(neuron int, in Input, ev Event) {
	if _, ok := b.inputs[neuron]; !ok {
		b.order = append(b.order, neuron)
		b.first[neuron] = ev
	}
	b.inputs[neuron] = append(b.inputs[neuron], in)
}

func (p *Pathway) synapse(b *batch, si int) *synapseRuntime {
	if _, ok := b.synapses[si]; !ok {
		b.synapses[si] = p.synapses[si].state
	}
	return p.synapses[si]
}

func (p *Pathway) window(b *batch, wi int) *windowRuntime {
	if _, ok := b.windows[wi]; !ok {
		b.windows[wi] = p.windows[wi].snapshot()
	}
	return p.windows[wi]
}

func (p *Pathway) channel(b *batch, ci int) *channelRuntime {
	if _, ok := b.channels[ci]; !ok {
		b.channels[ci] = p.channels[ci].value
	}
	return p.channels[ci]
}

// processBatch delivers every event of one (start, end) key. The batch is applied
// atomically: either every effect is committed or the pathway is left as it was
// before the batch and the run fails.
func (p *Pathway) processBatch(events []Event) {
	for _, ev := range events {
		if err := p.check(ev); err != nil {
			p.fail(err)
			return
		}
	}
	b := p.newBatch(events[0].Spike.Interval)
	p.clock = events[0].Start()
	logrus.Debugf("[t=%g] Delivering %d events", p.clock, len(events))

	for _, ev := range events {
		p.spikeLog = append(p.spikeLog, ev.Spike)
		p.deliver(ev, b)
	}
	for _, idx := range b.order {
		if err := p.fire(idx, b); err != nil {
			p.abort(b, err)
			return
		}
	}
	staged, err := p.prepare(b.staged)
	if err != nil {
		p.abort(b, err)
		return
	}
	p.commit(b, staged)
}

// commit installs the batch's neuron states, traces and staged events.
func (p *Pathway) commit(b *batch, staged []Event) {
	for idx, m := range b.next {
		p.neurons[idx] = m
	}
	for _, s := range b.samples {
		p.traces.RecordSample(s.endpoint, s.t, s.v)
	}
	for _, s := range b.spikes {
		p.traces.RecordSpike(s.endpoint, s.t)
	}
	p.schedule(staged)
}

// abort restores the state saved by b and fails the run with err.
func (p *Pathway) abort(b *batch, err error) {
	for si, st := range b.synapses {
		p.synapses[si].state = st
	}
	for wi, st := range b.windows {
		p.windows[wi].state = st
	}
	for ci, v := range b.channels {
		p.channels[ci].value = v
	}
	p.spikeLog = p.spikeLog[:b.logLen]
	p.warnings = p.warnings[:b.warnLen]
	p.clock = b.clock
	p.fail(err)
}

// deliver applies one event to its destination and to every window observing it.
func (p *Pathway) deliver(ev Event, b *batch) {
	dest := ev.Spike.Destination
	ep := p.graph.endpoints[dest]
	switch ep.Kind {
	case KindRelay, KindNeuronOutput, KindWindowOutput:
		for _, si := range p.graph.fanout[dest] {
			syn := p.synapse(b, si)
			b.staged = append(b.staged, syn.transmit(ev.Spike))
			p.warn(syn.onPre(ev.Start()))
		}
	case KindNeuronInput:
		b.gather(ep.Owner, Input{Port: ep.Port, Spike: ev.Spike, Weight: p.weightOf(ev.Spike.Via)}, ev)
	case KindWindow:
		p.observe(ep.Owner, ev, ev.Spike.Source, b)
	case KindChannel:
		b.staged = append(b.staged, p.channel(b, ep.Owner).publish(ev.Spike.Amplitude(), ev.Spike.Interval)...)
	case KindSynapse:
		p.synapse(b, ep.Owner).state.Modulation = ev.Spike.Amplitude()
	}
	for _, wi := range p.graph.observers[dest] {
		p.observe(wi, ev, dest, b)
	}
	for _, si := range p.graph.postOf[dest] {
		p.warn(p.synapse(b, si).onPost(ev.Start()))
	}
}

// weightOf returns the current weight of the synapse that carried a spike.
func (p *Pathway) weightOf(via EndpointID) float64 {
	if via == NoEndpoint {
		return 1
	}
	return p.synapses[p.graph.endpoints[via].Owner].state.Weight
}

func (p *Pathway) observe(wi int, ev Event, key EndpointID, b *batch) {
	w := p.window(b, wi)
	count, fired := w.observe(ev, key, p.clock, p.order)
	if !fired {
		return
	}
	logrus.Debugf("[t=%g] Window %s fired with %d sources", p.clock, w.node.Name, count)
	b.staged = append(b.staged, Spike{
		Source:      w.node.ID,
		Destination: w.node.Output,
		Via:         NoEndpoint,
		Interval:    ev.Spike.Interval,
		Payload:     Value(float64(count)),
	})
	b.spikes = append(b.spikes, tracePoint{endpoint: int(w.node.ID), t: ev.Start()})
}

// fire runs a clone of one neuron over its gathered inputs and stages its output
// spikes. The clone replaces the neuron only when the batch commits.
func (p *Pathway) fire(idx int, b *batch) error {
	node := p.graph.neurons[idx]
	model := p.neurons[idx].Clone()
	emissions, err := model.Process(processEnv{p: p}, b.inputs[idx])
	if err != nil {
		return &SchedulingError{Reason: fmt.Sprintf("neuron %s: %v", node.Name, err), Event: b.first[idx]}
	}
	b.next[idx] = model
	b.samples = append(b.samples, tracePoint{endpoint: int(node.ID), t: p.clock, v: model.Potential()})

	for _, em := range emissions {
		if !finite(em.Latency) || em.Latency < 0 {
			return &SchedulingError{Reason: fmt.Sprintf("neuron %s: invalid emission latency %v", node.Name, em.Latency), Event: b.first[idx]}
		}
		outs := node.Outputs
		if em.Port != "" {
			out, ok := p.outputPort(node, em.Port)
			if !ok {
				return &SchedulingError{Reason: fmt.Sprintf("neuron %s: no output port %q", node.Name, em.Port), Event: b.first[idx]}
			}
			outs = []EndpointID{out}
		}
		iv := b.iv.Shift(em.Latency)
		for _, out := range outs {
			b.staged = append(b.staged, Spike{
				Source:      node.ID,
				Destination: out,
				Via:         NoEndpoint,
				Interval:    iv,
				Payload:     em.Payload,
			})
		}
		logrus.Debugf("[t=%g] Neuron %s fired", p.clock, node.Name)
		b.spikes = append(b.spikes, tracePoint{endpoint: int(node.ID), t: iv.Start})
		for _, si := range node.Incoming {
			p.warn(p.synapse(b, si).onPost(iv.Start))
		}
	}
	return nil
}

func (p *Pathway) outputPort(node *NeuronNode, port string) (EndpointID, bool) {
	for _, out := range node.Outputs {
		if p.graph.endpoints[out].Port == port {
			return out, true
		}
	}
	return NoEndpoint, false
}

// enqueue validates and schedules spikes. Any invalid event fails the run and
// nothing is queued.
func (p *Pathway) enqueue(spikes []Spike) error {
	events, err := p.prepare(spikes)
	if err != nil {
		return p.fail(err)
	}
	p.schedule(events)
	return nil
}

// prepare assigns the next sequence numbers to spikes and validates every
// resulting event. It changes no state.
func (p *Pathway) prepare(spikes []Spike) ([]Event, error) {
	events := make([]Event, len(spikes))
	for i, s := range spikes {
		events[i] = Event{Spike: s, Seq: p.nextSeq + uint64(i)}
		if err := p.check(events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (p *Pathway) schedule(events []Event) {
	for _, ev := range events {
		p.queue.Schedule(ev)
	}
	p.nextSeq += uint64(len(events))
}

// check validates an event against the graph and the clock.
func (p *Pathway) check(ev Event) error {
	s := ev.Spike
	if err := s.Interval.Validate(); err != nil {
		return &SchedulingError{Reason: err.Error(), Event: ev}
	}
	ep, ok := p.graph.Endpoint(s.Destination)
	if !ok {
		return &SchedulingError{Reason: fmt.Sprintf("unknown destination endpoint %d", s.Destination), Event: ev}
	}
	if ep.Kind == KindNeuron {
		return &SchedulingError{Reason: fmt.Sprintf("neuron %s is not addressable, target one of its ports", ep.Name), Event: ev}
	}
	if s.Payload != nil && !finite(*s.Payload) {
		return &SchedulingError{Reason: fmt.Sprintf("non-finite payload %v", *s.Payload), Event: ev}
	}
	if s.Interval.Start < p.clock {
		return &SchedulingError{Reason: fmt.Sprintf("spike at %g precedes clock %g", s.Interval.Start, p.clock), Event: ev}
	}
	return nil
}

func (p *Pathway) fail(err error) error {
	p.status = StatusFailed
	p.failure = err
	logrus.Errorf("[t=%g] Simulation failed: %v", p.clock, err)
	return err
}

func (p *Pathway) warn(w *PlasticityBoundsError) {
	if w != nil {
		p.warnings = append(p.warnings, *w)
	}
}

// Result returns a copy of the run's current outcome.
func (p *Pathway) Result() *RunResult {
	r := &RunResult{
		Status:      p.status,
		Clock:       p.clock,
		Truncated:   p.truncated,
		SpikeLog:    slices.Clone(p.spikeLog),
		FinalStates: p.states(),
		Warnings:    slices.Clone(p.warnings),
		Traces:      p.traces.Clone(),
	}
	if p.failure != nil {
		r.Err = p.failure
		r.Reason = p.failure.Error()
		var se *SchedulingError
		if errors.As(p.failure, &se) {
			ev := se.Event
			r.FailedEvent = &ev
		}
	}
	return r
}

// states exports every component's state keyed by endpoint id.
func (p *Pathway) states() FinalStates {
	fs := FinalStates{
		Neurons:  make(map[EndpointID]NeuronState, len(p.neurons)),
		Synapses: make(map[EndpointID]SynapseState, len(p.synapses)),
		Windows:  make(map[EndpointID]WindowState, len(p.windows)),
		Channels: make(map[EndpointID]float64, len(p.channels)),
	}
	for i, m := range p.neurons {
		fs.Neurons[p.graph.neurons[i].ID] = m.State()
	}
	for _, s := range p.synapses {
		fs.Synapses[s.node.ID] = s.state
	}
	for _, w := range p.windows {
		fs.Windows[w.node.ID] = w.snapshot()
	}
	for _, c := range p.channels {
		fs.Channels[c.node.ID] = c.value
	}
	return fs
}

// Run executes one run of g with inputs under cfg. The error reports an invalid
// configuration; run failures are reported through RunResult.Status.
func Run(ctx context.Context, g *Graph, inputs Inputs, cfg RunConfig) (*RunResult, error) {
	p, err := NewPathwayFromGraph(g, cfg)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, inputs), nil
}
