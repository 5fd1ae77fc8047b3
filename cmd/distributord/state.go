package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/stratum/pkg/clusterstate"
	"github.com/cuemby/stratum/pkg/types"
)

// state operates on a serialized ClusterState file directly (the
// single-line text ClusterState.Serialize produces), without dialing a
// live node: the wire RPC to fetch/publish a running node's state is
// out of scope (spec.md §1), so these subcommands are the offline,
// apply-a-file counterpart of the teacher's "cluster info"/"apply".
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or edit a serialized ClusterState file",
}

var stateShowCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Print a ClusterState file's fields in human-readable form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := readClusterState(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("version:            %d\n", cs.Version())
		fmt.Printf("cluster:            %s\n", cs.Cluster())
		fmt.Printf("distribution bits:  %d\n", cs.DistributionBits())
		fmt.Printf("distributor nodes:  %d\n", cs.NodeCount(types.NodeTypeDistributor))
		fmt.Printf("storage nodes:      %d\n", cs.NodeCount(types.NodeTypeStorage))
		fmt.Println()
		fmt.Println("storage node states:")
		cs.ForEachNode(types.NodeTypeStorage, func(n types.Node, ns types.NodeState) {
			fmt.Printf("  [%d] state=%s capacity=%.2f min_used_bits=%d\n", n.Index, ns.State, ns.Capacity, ns.MinUsedBits)
		})
		return nil
	},
}

var stateSetNodeCmd = &cobra.Command{
	Use:   "set-node FILE",
	Short: "Set one storage node's state in a ClusterState file and rewrite it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetUint16("index")
		stateCode, _ := cmd.Flags().GetString("state")
		capacity, _ := cmd.Flags().GetFloat64("capacity")
		minUsedBits, _ := cmd.Flags().GetUint8("min-used-bits")
		output, _ := cmd.Flags().GetString("output")

		cs, err := readClusterState(args[0])
		if err != nil {
			return err
		}

		st, err := types.ParseState(stateCode[0])
		if err != nil {
			return fmt.Errorf("distributord: %w", err)
		}

		cs, err = cs.WithNodeState(types.Node{Type: types.NodeTypeStorage, Index: index},
			types.NodeState{State: st, Capacity: capacity, MinUsedBits: minUsedBits})
		if err != nil {
			return fmt.Errorf("distributord: set node state: %w", err)
		}

		if output == "" {
			output = args[0]
		}
		if err := os.WriteFile(output, []byte(cs.Serialize()+"\n"), 0o644); err != nil {
			return fmt.Errorf("distributord: write %s: %w", output, err)
		}
		fmt.Printf("wrote updated state to %s (version %d)\n", output, cs.Version())
		return nil
	},
}

func init() {
	stateSetNodeCmd.Flags().Uint16("index", 0, "Storage node index")
	stateSetNodeCmd.Flags().String("state", "u", "Single-character node state code (u, i, m, r, d, s)")
	stateSetNodeCmd.Flags().Float64("capacity", 1.0, "Node capacity weight")
	stateSetNodeCmd.Flags().Uint8("min-used-bits", 0, "Node's minimum used-bits floor")
	stateSetNodeCmd.Flags().String("output", "", "Output file (defaults to overwriting the input file)")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateSetNodeCmd)
}

func readClusterState(path string) (clusterstate.ClusterState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return clusterstate.ClusterState{}, fmt.Errorf("distributord: read %s: %w", path, err)
	}
	cs, err := clusterstate.Parse(string(data))
	if err != nil {
		return clusterstate.ClusterState{}, fmt.Errorf("distributord: parse %s: %w", path, err)
	}
	return cs, nil
}
