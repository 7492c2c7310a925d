package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pathway-sim/pathway-sim/sim"
	"github.com/pathway-sim/pathway-sim/sim/checkpoint"
	"github.com/pathway-sim/pathway-sim/sim/circuit"
)

// stockPrefix selects a stock circuit instead of a file, e.g. --circuit stock:half-adder.
const stockPrefix = "stock:"

// loadCircuit compiles the circuit named by ref and returns it with a display name.
func loadCircuit(ref string) (*sim.Graph, string, error) {
	if ref == "" {
		return nil, "", fmt.Errorf("no circuit given; use --circuit <file.yaml> or --circuit %s<name> (%s)",
			stockPrefix, strings.Join(circuit.StockNames(), ", "))
	}
	var (
		root *sim.Group
		err  error
	)
	if name, ok := strings.CutPrefix(ref, stockPrefix); ok {
		root, err = circuit.Stock(name)
	} else {
		root, err = circuit.LoadGroup(ref)
	}
	if err != nil {
		return nil, "", err
	}
	g, err := sim.Compile(root)
	if err != nil {
		return nil, "", err
	}
	return g, circuitName(ref), nil
}

func circuitName(ref string) string {
	if strings.HasPrefix(ref, stockPrefix) {
		return ref
	}
	return strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
}

// openStore creates and initializes the configured checkpoint store.
func openStore(ctx context.Context, kind, path string) (checkpoint.Store, error) {
	store, err := checkpoint.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s store: %w", kind, err)
	}
	return store, nil
}
