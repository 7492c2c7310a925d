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
	"github.com/pathway-sim/pathway-sim/sim/stimulus"
)

var (
	circuitRef   string  // Circuit file or stock:<name>
	stimulusPath string  // Stimulus YAML file
	configPath   string  // Run config YAML file
	maxTime      float64 // Simulated-time horizon
	tieBreak     string  // Tie-break policy name
	traceLevel   string  // Trace recording level
	checkpointAt float64 // Time at which to store a checkpoint; negative disables
	traceOut     string  // Trace JSON output path
)

// runOptions is everything runSimulation needs, resolved from flags.
type runOptions struct {
	Circuit      string
	Stimulus     string
	Config       sim.RunConfig
	CheckpointAt float64
	StoreKind    string
	DBPath       string
	TraceOut     string
}

// runCmd executes a simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a circuit against a stimulus",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveRunConfig(cmd, configPath)
		if err != nil {
			logrus.Fatalf("Invalid run config: %v", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		report, err := runSimulation(ctx, runOptions{
			Circuit:      circuitRef,
			Stimulus:     stimulusPath,
			Config:       cfg,
			CheckpointAt: checkpointAt,
			StoreKind:    storeKind,
			DBPath:       dbPath,
			TraceOut:     traceOut,
		})
		if err != nil {
			logrus.Fatalf("Simulation setup failed: %v", err)
		}
		if err := report.Print(os.Stdout); err != nil {
			logrus.Fatalf("Writing results: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// resolveRunConfig loads path (if any) and applies the flags the user set explicitly.
func resolveRunConfig(cmd *cobra.Command, path string) (sim.RunConfig, error) {
	cfg := sim.DefaultRunConfig()
	if path != "" {
		loaded, err := sim.LoadRunConfig(path)
		if err != nil {
			return sim.RunConfig{}, err
		}
		cfg = *loaded
	}
	applyFlagOverrides(cmd, &cfg)
	return cfg, cfg.Validate()
}

func applyFlagOverrides(cmd *cobra.Command, cfg *sim.RunConfig) {
	if cmd.Flags().Changed("max-time") {
		cfg.MaxTime = maxTime
	}
	if cmd.Flags().Changed("tie-break") {
		cfg.TieBreak = tieBreak
	}
	if cmd.Flags().Changed("trace-level") {
		cfg.TraceLevel = traceLevel
	}
}

// runSimulation runs one circuit end to end, optionally storing a checkpoint on the way.
// Run failures are reported in the returned Report; the error covers setup problems.
func runSimulation(ctx context.Context, opts runOptions) (*Report, error) {
	g, name, err := loadCircuit(opts.Circuit)
	if err != nil {
		return nil, err
	}
	inputs := sim.Inputs{}
	var stim *stimulus.Spec
	if opts.Stimulus != "" {
		if stim, err = stimulus.Load(opts.Stimulus); err != nil {
			return nil, err
		}
		if inputs, err = stim.Materialize(g); err != nil {
			return nil, err
		}
	}

	p, err := sim.NewPathwayFromGraph(g, opts.Config)
	if err != nil {
		return nil, err
	}
	if stim != nil {
		if err := stim.ScheduleEmits(p); err != nil {
			return nil, err
		}
	}
	var checkpointID string
	if err := p.Start(inputs); err == nil && opts.CheckpointAt >= 0 {
		checkpointID, err = saveCheckpoint(ctx, p, name, opts)
		if err != nil {
			return nil, err
		}
	}

	res := p.Finish(ctx)
	if opts.TraceOut != "" {
		if err := writeTraces(opts.TraceOut, res.Traces); err != nil {
			return nil, err
		}
	}
	report := NewReport(name, g, res)
	report.CheckpointID = checkpointID
	return report, nil
}

// saveCheckpoint advances p to opts.CheckpointAt and stores a snapshot. It stores
// nothing when the run fails or is stopped first.
func saveCheckpoint(ctx context.Context, p *sim.Pathway, name string, opts runOptions) (string, error) {
	if err := p.Advance(ctx, opts.CheckpointAt); err != nil {
		logrus.Warnf("No checkpoint stored: %v", err)
		return "", nil
	}
	snap, err := p.Snapshot()
	if err != nil {
		return "", err
	}
	store, err := openStore(ctx, opts.StoreKind, opts.DBPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = checkpoint.CloseIfSupported(store) }()

	record := checkpoint.NewRecord(name, snap)
	if err := store.Save(ctx, record); err != nil {
		return "", fmt.Errorf("saving checkpoint: %w", err)
	}
	logrus.Infof("[t=%g] Stored checkpoint %s", snap.Clock, record.ID)
	return record.ID, nil
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&circuitRef, "circuit", "", "Circuit YAML file, or stock:<name>")
	cmd.Flags().Float64Var(&maxTime, "max-time", 1, "Simulated-time horizon")
	cmd.Flags().StringVar(&tieBreak, "tie-break", sim.TieBreakFIFO, "Tie-break policy for identical intervals (fifo, source, destination)")
	cmd.Flags().StringVar(&traceLevel, "trace-level", "spikes", "Trace recording level (none, spikes, full)")
	cmd.Flags().StringVar(&traceOut, "trace-out", "", "Write recorded traces as JSON to this file")
}

func init() {
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&stimulusPath, "stimulus", "", "Stimulus YAML file")
	runCmd.Flags().StringVar(&configPath, "config", "", "Run config YAML file")
	runCmd.Flags().Float64Var(&checkpointAt, "checkpoint-at", -1, "Store a checkpoint after processing everything up to this time")
	addStoreFlags(runCmd)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
