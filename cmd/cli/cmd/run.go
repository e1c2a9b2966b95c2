package cmd

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/global-done/internal/detector"
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
	"github.com/global-done/pkg/config"
	"github.com/global-done/pkg/model"
	"github.com/global-done/pkg/utils"
)

var (
	// Run command flags
	runNPEs      int
	runLeafSize  int
	runBranch    int
	runPolicy    string
	runBroadcast string
	runWorkMaxMs int
	runSeed      int64
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single completion detection episode",
	Long: `Run one episode of global completion detection across an in-process
SPMD job. Each process performs a pseudo-random amount of simulated work,
then enters the detector; the episode ends when every process has been
released by the exit protocol.

The root process prints the completion latency aggregate to stdout.`,
	RunE: runEpisode,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runNPEs, "npes", "n", 0, "Number of processes in the job")
	runCmd.Flags().IntVarP(&runLeafSize, "leaf-size", "g", 0, "Processes per leaf group")
	runCmd.Flags().IntVarP(&runBranch, "branch-factor", "k", 0, "Child groups per internal group")
	runCmd.Flags().StringVarP(&runPolicy, "policy", "p", "", "Leader election policy: last_arrival or first_observer")
	runCmd.Flags().StringVarP(&runBroadcast, "broadcast", "b", "", "Release broadcast topology: flat or tree")
	runCmd.Flags().IntVar(&runWorkMaxMs, "work-max-ms", 5, "Upper bound for simulated work per process, in milliseconds")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "Seed for the simulated work schedule")
}

// loadConfig loads the configuration file (or defaults) and applies the
// topology and protocol flags the caller set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("npes") {
		cfg.Runtime.NPEs = runNPEs
	}
	if flags.Changed("leaf-size") {
		cfg.Detect.LeafSize = runLeafSize
	}
	if flags.Changed("branch-factor") {
		cfg.Detect.BranchFactor = runBranch
	}
	if flags.Changed("policy") {
		cfg.Detect.Policy = runPolicy
	}
	if flags.Changed("broadcast") {
		cfg.Detect.Broadcast = runBroadcast
	}
	return cfg, nil
}

func runEpisode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !verbose {
		level := utils.ParseLogLevel(cfg.Log.Level)
		if cfg.Detect.DebugTrace {
			level = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(level, os.Stdout)
	}

	policy, err := model.ParsePolicy(cfg.Detect.Policy)
	if err != nil {
		return err
	}
	bcast, err := model.ParseBroadcast(cfg.Detect.Broadcast)
	if err != nil {
		return err
	}

	npes := cfg.Runtime.NPEs
	topo, err := topology.Plan(npes, cfg.Detect.LeafSize, cfg.Detect.BranchFactor)
	if err != nil {
		return err
	}

	poll := time.Duration(cfg.Runtime.PollIntervalUs) * time.Microsecond
	det, err := detector.New(policy, bcast,
		detector.WithLogger(logger),
		detector.WithPollInterval(poll),
	)
	if err != nil {
		return err
	}

	job, err := substrate.NewJob(npes,
		substrate.WithLogger(logger),
		substrate.WithPollInterval(poll),
		substrate.WithHeapSlots(cfg.Runtime.HeapSlots),
	)
	if err != nil {
		return err
	}

	logger.Info("Starting detection episode (npes=%d, leaf=%d, branch=%d, policy=%s, broadcast=%s)",
		npes, cfg.Detect.LeafSize, cfg.Detect.BranchFactor, policy, bcast)

	started := time.Now()
	code, err := job.Run(cmd.Context(), func(h substrate.Handle) error {
		arena, jobErr := registry.New(h, topo)
		if jobErr != nil {
			return jobErr
		}

		rng := rand.New(rand.NewSource(runSeed + int64(h.Rank())))
		workStart := time.Now()
		if runWorkMaxMs > 0 {
			time.Sleep(time.Duration(rng.Intn(runWorkMaxMs)+1) * time.Millisecond)
		}
		return det.Run(h, arena, time.Since(workStart))
	})
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("detection job exited with code %d", code)
	}

	logger.Info("Episode complete in %v", time.Since(started).Round(time.Microsecond))
	return nil
}
