package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"neurax/internal/config"
	"neurax/internal/printer"
	"neurax/pkg/neurax"
)

var (
	runConfigPath string
	runNodes      int
	runSteps      int
	runTopology   string
	runSeed       int64
	runSize       int
	runTimeSteps  int
	runIntensity  float64
	runWorkers    int
	runRedisURL   string
	runInstance   string
	runSaveStates bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a neuron mesh",
	Long: `Run a mesh of field neurons for a number of rounds.

Every round each node shares its knowledge package, then all nodes step
against the packages of their topology neighbours. Step records are written
to the run store and to the run's artifact directory.

Settings come from a neurax.yml file when --config is given and are then
overridden by any flag set on the command line.

Examples:
  # Three fully connected nodes for ten rounds
  neuraxctl run

  # Ring of five nodes exchanging through Redis
  neuraxctl run --nodes 5 --topology ring --redis-url redis://localhost:6379

  # Use a config file and keep the final neuron states
  neuraxctl run --config neurax.yml --save-states`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to a neurax.yml config file")
	runCmd.Flags().IntVar(&runNodes, "nodes", 0, "Number of neurons")
	runCmd.Flags().IntVar(&runSteps, "steps", 0, "Number of rounds")
	runCmd.Flags().StringVar(&runTopology, "topology", "", "Mesh topology (full, ring or none)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Base random seed; node i uses seed+i")
	runCmd.Flags().IntVar(&runSize, "size", 0, "Spatial edge length of each field")
	runCmd.Flags().IntVar(&runTimeSteps, "time-steps", 0, "Time slots per field")
	runCmd.Flags().Float64Var(&runIntensity, "intensity", 0, "Base stimulus intensity")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Parallel node steps per round (0 = all CPUs)")
	runCmd.Flags().StringVar(&runRedisURL, "redis-url", "", "Exchange knowledge through Redis at this URL")
	runCmd.Flags().StringVar(&runInstance, "instance", "", "Redis namespace for the knowledge exchange")
	runCmd.Flags().BoolVar(&runSaveStates, "save-states", false, "Save every neuron's final state")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := neurax.Options{
		StoreKind: cfg.Storage.Backend,
		DBPath:    cfg.Storage.Path,
		RunsDir:   cfg.Output.Dir,
		BusKind:   cfg.Exchange.Backend,
		Verbose:   cfg.Logging.Verbose,
	}
	if cfg.Exchange.Backend == "redis" {
		bus, err := connectRedisBus(ctx, cfg.Exchange.RedisURL, cfg.Exchange.Instance)
		if err != nil {
			return err
		}
		defer bus.Close()
		opts.Bus = bus
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}
	defer client.Close()

	params := cfg.Neuron.Params
	printer.Step("Running %d nodes for %d rounds (%s topology)\n", cfg.Mesh.Nodes, cfg.Mesh.Steps, cfg.Mesh.Topology)
	summary, runErr := client.Run(ctx, neurax.RunRequest{
		Nodes:         cfg.Mesh.Nodes,
		Steps:         cfg.Mesh.Steps,
		Size:          cfg.Neuron.Size,
		TimeSteps:     cfg.Neuron.TimeSteps,
		Intensity:     cfg.Neuron.Intensity,
		Seed:          cfg.Mesh.Seed,
		Topology:      cfg.Mesh.Topology,
		InitialWeight: cfg.Mesh.InitialWeight,
		Workers:       cfg.Mesh.Workers,
		Params:        &params,
		SaveStates:    runSaveStates,
		StatesDir:     cfg.Output.StateDir,
	})
	if summary.RunID == "" {
		return printer.Error("run failed", runErr.Error(), nil)
	}

	rows := make([][]string, 0, len(summary.Rounds))
	for _, r := range summary.Rounds {
		rows = append(rows, []string{
			strconv.Itoa(r.Round),
			formatFloat(r.MeanActivation),
			formatFloat(r.MeanPEffective),
			formatFloat(r.MeanConsensus),
			strconv.Itoa(r.PackagesReceived),
		})
	}
	printer.Table([]string{"ROUND", "ACTIVATION", "P_EFF", "CONSENSUS", "PACKAGES"}, rows)
	printer.Println()

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			printer.Warning("Run %s cancelled after %s of %s rounds\n",
				summary.RunID, humanize.Comma(int64(len(summary.Rounds))), humanize.Comma(int64(cfg.Mesh.Steps)))
			return nil
		}
		return printer.ErrorWithContext(
			"run failed",
			runErr.Error(),
			map[string]string{"Run": summary.RunID, "Artifacts": summary.ArtifactsDir},
			nil,
		)
	}

	printer.Success("Run %s completed\n", summary.RunID)
	printer.Info("  Artifacts: %s\n", summary.ArtifactsDir)
	if summary.StatesDir != "" {
		printer.Info("  States:    %s\n", summary.StatesDir)
	}
	printer.Info("  Mean activation: %s\n", formatFloat(summary.MeanActivation))
	return nil
}

// loadRunConfig reads the optional config file and applies flags that were
// set explicitly.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if runConfigPath != "" {
		loaded, err := config.Load(runConfigPath)
		if err != nil {
			return nil, printer.Error(
				"invalid configuration",
				err.Error(),
				[]string{fmt.Sprintf("Check %s against the documented neurax.yml layout", runConfigPath)},
			)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
	}

	flags := cmd.Flags()
	if flags.Changed("nodes") {
		cfg.Mesh.Nodes = runNodes
	}
	if flags.Changed("steps") {
		cfg.Mesh.Steps = runSteps
	}
	if flags.Changed("topology") {
		cfg.Mesh.Topology = runTopology
	}
	if flags.Changed("seed") {
		cfg.Mesh.Seed = runSeed
	}
	if flags.Changed("size") {
		cfg.Neuron.Size = runSize
	}
	if flags.Changed("time-steps") {
		cfg.Neuron.TimeSteps = runTimeSteps
	}
	if flags.Changed("intensity") {
		cfg.Neuron.Intensity = runIntensity
	}
	if flags.Changed("workers") {
		cfg.Mesh.Workers = runWorkers
	}
	if flags.Changed("redis-url") {
		cfg.Exchange.Backend = "redis"
		cfg.Exchange.RedisURL = runRedisURL
	}
	if flags.Changed("instance") {
		cfg.Exchange.Instance = runInstance
	}
	if flags.Changed("runs-dir") || runConfigPath == "" {
		cfg.Output.Dir = runsDir
	}
	if flags.Changed("store") || runConfigPath == "" {
		cfg.Storage.Backend = storeKind
	}
	if flags.Changed("db") {
		cfg.Storage.Path = dbPath
	}
	if verbose {
		cfg.Logging.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
