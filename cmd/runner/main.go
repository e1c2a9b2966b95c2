package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/global-done/internal/detector"
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
	"github.com/global-done/pkg/config"
	"github.com/global-done/pkg/model"
	"github.com/global-done/pkg/utils"
)

// Version information (injected by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	npes        = flag.Int("n", 0, "Number of processes (defaults to configuration)")
	leafSize    = flag.Int("g", 0, "Processes per leaf group (defaults to configuration)")
	branch      = flag.Int("k", 0, "Child groups per internal group (defaults to configuration)")
	policyName  = flag.String("policy", "", "Election policy: last_arrival or first_observer")
	bcastName   = flag.String("bcast", "", "Broadcast topology: flat or tree")
	workMaxMs   = flag.Int("work-max", 5, "Upper bound for simulated work per process, in milliseconds")
	seed        = flag.Int64("seed", 1, "Seed for the simulated work schedule")
	verbose     = flag.Bool("v", false, "Verbose output")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `%s - run one global completion detection episode

Defaults come from the configuration file and environment (including the
legacy GLOBAL_GROUP_SIZE and GLOBAL_BRANCH_K variables); flags override.

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s (commit %s, built %s)\n", os.Args[0], Version, GitCommit, BuildTime)
		return
	}

	logLevel := utils.LevelInfo
	if *verbose {
		logLevel = utils.LevelDebug
	}
	logger := utils.NewDefaultLogger(logLevel, os.Stdout)

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("Load configuration: %v", err)
		os.Exit(1)
	}
	if *npes > 0 {
		cfg.Runtime.NPEs = *npes
	}
	if *leafSize > 0 {
		cfg.Detect.LeafSize = *leafSize
	}
	if *branch > 0 {
		cfg.Detect.BranchFactor = *branch
	}
	if *policyName != "" {
		cfg.Detect.Policy = *policyName
	}
	if *bcastName != "" {
		cfg.Detect.Broadcast = *bcastName
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}
	if !*verbose {
		level := utils.ParseLogLevel(cfg.Log.Level)
		if cfg.Detect.DebugTrace {
			level = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(level, os.Stdout)
	}

	policy, err := model.ParsePolicy(cfg.Detect.Policy)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	bcast, err := model.ParseBroadcast(cfg.Detect.Broadcast)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	topo, err := topology.Plan(cfg.Runtime.NPEs, cfg.Detect.LeafSize, cfg.Detect.BranchFactor)
	if err != nil {
		logger.Error("Plan topology: %v", err)
		os.Exit(1)
	}

	poll := time.Duration(cfg.Runtime.PollIntervalUs) * time.Microsecond
	det, err := detector.New(policy, bcast,
		detector.WithLogger(logger),
		detector.WithPollInterval(poll),
	)
	if err != nil {
		logger.Error("Build detector: %v", err)
		os.Exit(1)
	}

	job, err := substrate.NewJob(cfg.Runtime.NPEs,
		substrate.WithLogger(logger),
		substrate.WithPollInterval(poll),
		substrate.WithHeapSlots(cfg.Runtime.HeapSlots),
	)
	if err != nil {
		logger.Error("Build job: %v", err)
		os.Exit(1)
	}

	logger.Info("Starting episode: npes=%d leaf=%d branch=%d policy=%s broadcast=%s",
		cfg.Runtime.NPEs, cfg.Detect.LeafSize, cfg.Detect.BranchFactor, policy, bcast)

	started := time.Now()
	code, err := job.Run(context.Background(), func(h substrate.Handle) error {
		arena, jobErr := registry.New(h, topo)
		if jobErr != nil {
			return jobErr
		}

		rng := rand.New(rand.NewSource(*seed + int64(h.Rank())))
		workStart := time.Now()
		if *workMaxMs > 0 {
			time.Sleep(time.Duration(rng.Intn(*workMaxMs)+1) * time.Millisecond)
		}
		return det.Run(h, arena, time.Since(workStart))
	})
	if err != nil {
		logger.Error("Episode failed: %v", err)
		os.Exit(1)
	}

	logger.Info("Episode complete in %v", time.Since(started).Round(time.Microsecond))
	os.Exit(code)
}
