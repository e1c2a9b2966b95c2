package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/global-done/internal/detector"
	"github.com/global-done/internal/registry"
	"github.com/global-done/internal/substrate"
	"github.com/global-done/internal/topology"
	"github.com/global-done/pkg/model"
)

// selftestEpisodes is the number of episodes run per combination; replay
// over a reset arena is part of what the check verifies.
const selftestEpisodes = 2

// selftestCase is one protocol combination checked by the self test.
type selftestCase struct {
	npes      int
	leafSize  int
	branch    int
	policy    model.Policy
	broadcast model.Broadcast
}

// selftestCmd represents the selftest command
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Verify the detection protocol end to end",
	Long: `Run detection episodes across every election policy and broadcast
topology combination and check the protocol invariants after each one:
every group elected exactly one leader from its own span, every group
reached the done state, and the root collected an acknowledgement from
every other process.

Exits with code 2 if any check fails.`,
	RunE: runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}

func runSelftest(cmd *cobra.Command, args []string) error {
	var cases []selftestCase
	for _, policy := range []model.Policy{model.PolicyLastArrival, model.PolicyFirstObserver} {
		for _, bcast := range []model.Broadcast{model.BroadcastFlat, model.BroadcastTree} {
			cases = append(cases,
				selftestCase{npes: 1, leafSize: 4, branch: 2, policy: policy, broadcast: bcast},
				selftestCase{npes: 9, leafSize: 4, branch: 2, policy: policy, broadcast: bcast},
				selftestCase{npes: 16, leafSize: 4, branch: 2, policy: policy, broadcast: bcast},
			)
		}
	}

	var failures []string
	for _, tc := range cases {
		name := fmt.Sprintf("npes=%d policy=%s broadcast=%s", tc.npes, tc.policy, tc.broadcast)
		logger.Info("Checking %s", name)
		if errs := runSelftestCase(cmd, tc); len(errs) > 0 {
			for _, e := range errs {
				failures = append(failures, fmt.Sprintf("%s: %s", name, e))
			}
		}
	}

	if len(failures) > 0 {
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "FAIL %s\n", f)
		}
		fmt.Fprintf(os.Stderr, "self test failed: %d check(s)\n", len(failures))
		os.Exit(2)
	}

	fmt.Printf("self test passed: %d combination(s), %d episode(s) each\n", len(cases), selftestEpisodes)
	return nil
}

// runSelftestCase runs the episodes for one combination and returns the
// invariant violations observed by process 0.
func runSelftestCase(cmd *cobra.Command, tc selftestCase) []string {
	topo, err := topology.Plan(tc.npes, tc.leafSize, tc.branch)
	if err != nil {
		return []string{err.Error()}
	}

	det, err := detector.New(tc.policy, tc.broadcast,
		detector.WithLogger(logger),
		detector.WithStatsSink(io.Discard),
	)
	if err != nil {
		return []string{err.Error()}
	}

	job, err := substrate.NewJob(tc.npes, substrate.WithLogger(logger))
	if err != nil {
		return []string{err.Error()}
	}

	var failures []string
	code, err := job.Run(cmd.Context(), func(h substrate.Handle) error {
		arena, jobErr := registry.New(h, topo)
		if jobErr != nil {
			return jobErr
		}
		rng := rand.New(rand.NewSource(int64(h.Rank()) + 1))

		for ep := 0; ep < selftestEpisodes; ep++ {
			h.Barrier()
			time.Sleep(time.Duration(rng.Intn(2)+1) * time.Millisecond)

			workStart := time.Now()
			if jobErr := det.Run(h, arena, time.Since(workStart)); jobErr != nil {
				return jobErr
			}

			h.Barrier()
			if h.Rank() == 0 {
				failures = append(failures, checkEpisode(topo, arena, ep)...)
			}
			h.Barrier()
			arena.Reset(h)
		}
		return nil
	})
	if err != nil {
		return append(failures, err.Error())
	}
	if code != 0 {
		return append(failures, fmt.Sprintf("job exited with code %d", code))
	}
	return failures
}

// checkEpisode verifies the post-episode invariants from process 0's view.
func checkEpisode(topo *topology.Topology, arena *registry.Arena, ep int) []string {
	var failures []string

	for level := 0; level < topo.Levels; level++ {
		for idx := 0; idx < topo.Groups(level); idx++ {
			g := topology.GroupRef{Level: level, Index: idx}
			if !arena.IsDone(g) {
				failures = append(failures, fmt.Sprintf("episode %d: group %v not done", ep, g))
			}
			leader := arena.Leader(g)
			if leader == registry.LeaderUnset {
				failures = append(failures, fmt.Sprintf("episode %d: group %v has no leader", ep, g))
				continue
			}
			lo := int64(topo.Anchor(g))
			hi := lo + int64(topo.Span(level))
			if n := int64(topo.NPEs); hi > n {
				hi = n
			}
			if leader < lo || leader >= hi {
				failures = append(failures, fmt.Sprintf(
					"episode %d: group %v leader %d outside span [%d, %d)", ep, g, leader, lo, hi))
			}
		}
	}

	if want := int64(topo.NPEs - 1); arena.ExitAcks() != want {
		failures = append(failures, fmt.Sprintf(
			"episode %d: exit ledger has %d ack(s), want %d", ep, arena.ExitAcks(), want))
	}
	return failures
}
