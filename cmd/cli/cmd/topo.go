package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/global-done/internal/topology"
)

var topoGroups bool

// topoCmd represents the topo command
var topoCmd = &cobra.Command{
	Use:   "topo",
	Short: "Print the planned group hierarchy",
	Long: `Plan the completion group hierarchy for the given process count, leaf
group size and branch factor, and print one line per level. With --groups
every group is listed with its anchor process, member count and span.`,
	RunE: runTopo,
}

func init() {
	rootCmd.AddCommand(topoCmd)

	topoCmd.Flags().IntVarP(&runNPEs, "npes", "n", 0, "Number of processes in the job")
	topoCmd.Flags().IntVarP(&runLeafSize, "leaf-size", "g", 0, "Processes per leaf group")
	topoCmd.Flags().IntVarP(&runBranch, "branch-factor", "k", 0, "Child groups per internal group")
	topoCmd.Flags().BoolVar(&topoGroups, "groups", false, "List every group with anchor, members and span")
}

func runTopo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	topo, err := topology.Plan(cfg.Runtime.NPEs, cfg.Detect.LeafSize, cfg.Detect.BranchFactor)
	if err != nil {
		return err
	}

	fmt.Printf("npes=%d leaf_size=%d branch_factor=%d levels=%d root_pe=%d\n",
		topo.NPEs, topo.LeafSize, topo.Branch, topo.Levels, topo.RootPE())

	for level := 0; level < topo.Levels; level++ {
		fmt.Printf("level %d: %d group(s), span %d\n", level, topo.Groups(level), topo.Span(level))
		if !topoGroups {
			continue
		}
		for idx := 0; idx < topo.Groups(level); idx++ {
			g := topology.GroupRef{Level: level, Index: idx}
			fmt.Printf("  %v anchor=%d members=%d children=%d\n",
				g, topo.Anchor(g), topo.Members(g), topo.Children(g))
		}
	}
	return nil
}
