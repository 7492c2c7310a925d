package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pathway-sim/pathway-sim/sim"
	"github.com/pathway-sim/pathway-sim/sim/checkpoint"
)

var checkpointID string // Stored checkpoint to resume or inspect

// resumeCmd continues a run from a stored checkpoint
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a run from a stored checkpoint",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		override := func(cfg *sim.RunConfig) { applyFlagOverrides(cmd, cfg) }
		report, err := resumeSimulation(ctx, circuitRef, checkpointID, storeKind, dbPath, override, traceOut)
		if err != nil {
			logrus.Fatalf("Resume failed: %v", err)
		}
		if err := report.Print(os.Stdout); err != nil {
			logrus.Fatalf("Writing results: %v", err)
		}
	},
}

// resumeSimulation restores checkpoint id over the circuit at ref and runs it to the
// end. override may adjust the stored run config before the restore.
func resumeSimulation(ctx context.Context, ref, id, kind, path string, override func(*sim.RunConfig), tracePath string) (*Report, error) {
	if !checkpoint.ValidID(id) {
		return nil, fmt.Errorf("invalid checkpoint id %q", id)
	}
	g, name, err := loadCircuit(ref)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, kind, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = checkpoint.CloseIfSupported(store) }()

	record, ok, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("checkpoint %s not found", id)
	}
	if record.Circuit != name {
		logrus.Warnf("Checkpoint %s was taken on circuit %s, resuming on %s", id, record.Circuit, name)
	}

	cfg := record.Snapshot.Config
	if override != nil {
		override(&cfg)
	}
	p, err := sim.Restore(g, record.Snapshot, cfg)
	if err != nil {
		return nil, err
	}
	logrus.Infof("[t=%g] Resumed checkpoint %s with %d queued events", p.Clock(), id, p.Pending())

	res := p.Finish(ctx)
	if tracePath != "" {
		if err := writeTraces(tracePath, res.Traces); err != nil {
			return nil, err
		}
	}
	report := NewReport(name, g, res)
	report.CheckpointID = id
	return report, nil
}

func init() {
	resumeCmd.Flags().StringVar(&circuitRef, "circuit", "", "Circuit YAML file, or stock:<name>")
	resumeCmd.Flags().StringVar(&checkpointID, "checkpoint", "", "Checkpoint id to resume")
	resumeCmd.Flags().Float64Var(&maxTime, "max-time", 1, "Override the stored simulated-time horizon")
	resumeCmd.Flags().StringVar(&traceOut, "trace-out", "", "Write recorded traces as JSON to this file")
	addStoreFlags(resumeCmd)

	rootCmd.AddCommand(resumeCmd)
}
