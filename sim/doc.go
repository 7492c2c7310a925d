// Package sim provides the discrete-event engine for spiking circuits.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - spike.go: Interval-valued spikes and endpoint ids
//   - order.go: the canonical event ordering every component shares
//   - pathway.go: the run loop, batch delivery and the lifecycle state machine
//
// # Architecture
//
// Circuits are authored as a tree of Groups (group.go) and flattened by Compile
// (compile.go) into an immutable Graph of integer-addressed endpoints (graph.go).
// A Pathway clones the graph's neuron prototypes and owns all mutable state for one
// run. Sub-packages build on the core:
//   - sim/circuit/: YAML circuit definitions, the neuron kind registry, stock circuits
//   - sim/stimulus/: input spike trains (explicit, regular, Poisson)
//   - sim/checkpoint/: snapshot codec and stores (memory, SQLite)
//   - sim/trace/: membrane and spike time series recording
//
// # Key Interfaces
//
//   - NeuronModel: integrate the inputs of one delivery time and decide whether to fire
//   - PlasticityRule: weight change for a pre/post timing difference
//   - TieBreaker: order spikes whose intervals are identical
//
// Every run is single-threaded and deterministic: the same graph, inputs and
// RunConfig produce the same spike log and final states.
package sim
