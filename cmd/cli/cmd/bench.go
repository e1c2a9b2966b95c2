package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/global-done/internal/bench"
	"github.com/global-done/internal/repository"
	"github.com/global-done/internal/storage"
	"github.com/global-done/pkg/telemetry"
)

var (
	// Bench command flags
	benchEpisodes int
	benchWarmup   int
	benchModes    []string
	benchOutput   string
	benchSave     bool
	benchUpload   bool
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the detector against baseline strategies",
	Long: `Benchmark the hierarchical detector against a naive linear scan and a
binomial-tree allreduce over the same simulated workload. Every mode runs
the same number of timed episodes after a warmup, and the per-episode
latency is measured at process 0.

The report is written as JSON to the output directory. With --save the
per-mode aggregates are also recorded in the run-history database, and
with --upload the compressed report is pushed to object storage.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVarP(&runNPEs, "npes", "n", 0, "Number of processes in the job")
	benchCmd.Flags().IntVarP(&runLeafSize, "leaf-size", "g", 0, "Processes per leaf group")
	benchCmd.Flags().IntVarP(&runBranch, "branch-factor", "k", 0, "Child groups per internal group")
	benchCmd.Flags().StringVarP(&runPolicy, "policy", "p", "", "Leader election policy: last_arrival or first_observer")
	benchCmd.Flags().StringVarP(&runBroadcast, "broadcast", "b", "", "Release broadcast topology: flat or tree")
	benchCmd.Flags().IntVarP(&benchEpisodes, "episodes", "e", 0, "Timed episodes per mode")
	benchCmd.Flags().IntVar(&benchWarmup, "warmup", 0, "Untimed warmup episodes per mode")
	benchCmd.Flags().StringSliceVarP(&benchModes, "modes", "m", nil, "Benchmark modes: detector, naive, allreduce")
	benchCmd.Flags().StringVarP(&benchOutput, "output", "o", "", "Output directory for the report")
	benchCmd.Flags().BoolVar(&benchSave, "save", false, "Record per-mode aggregates in the run-history database")
	benchCmd.Flags().BoolVar(&benchUpload, "upload", false, "Upload the compressed report to object storage")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("episodes") {
		cfg.Bench.Episodes = benchEpisodes
	}
	if flags.Changed("warmup") {
		cfg.Bench.Warmup = benchWarmup
	}
	if flags.Changed("modes") {
		cfg.Bench.Modes = benchModes
	}
	if flags.Changed("output") {
		cfg.Bench.OutputDir = benchOutput
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()

	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed: %v", err)
		}
	}()

	opts := []bench.Option{bench.WithLogger(logger)}

	if benchSave {
		db, err := repository.NewGormDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("open run-history database: %w", err)
		}
		repos := repository.NewRepositories(db, cfg.Database.Type)
		defer repos.Close()
		opts = append(opts, bench.WithRepository(repos.Run))
	}

	if benchUpload {
		store, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("open report storage: %w", err)
		}
		opts = append(opts, bench.WithStorage(store))
	}

	harness := bench.New(cfg, opts...)
	report, err := harness.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s finished in %s\n", report.RunUUID, report.Duration)
	for _, res := range report.Results {
		fmt.Printf("  %-10s episodes=%d min=%dus avg=%.1fus max=%dus\n",
			res.Mode, res.Summary.Count, res.Summary.MinUs, res.Summary.AvgUs, res.Summary.MaxUs)
	}
	fmt.Printf("Report: %s\n", cfg.ReportPath(report.RunUUID))
	return nil
}
