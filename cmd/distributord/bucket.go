package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuemby/stratum/pkg/bucket"
	"github.com/cuemby/stratum/pkg/topology"
	"github.com/cuemby/stratum/pkg/types"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Offline bucket-placement utilities",
}

var bucketIdealNodesCmd = &cobra.Command{
	Use:   "ideal-nodes",
	Short: "Compute a bucket's ideal storage nodes against a ClusterState and Distribution file",
	RunE:  runBucketIdealNodes,
}

func init() {
	bucketIdealNodesCmd.Flags().String("state-file", "", "Path to a serialized ClusterState file (required)")
	bucketIdealNodesCmd.Flags().String("distribution-file", "", "Path to a serialized Distribution file (required)")
	bucketIdealNodesCmd.Flags().String("bucket-id", "", "Bucket id as usedBits/rawHex, e.g. 16/0x00ab")
	bucketIdealNodesCmd.Flags().Int("redundancy", 2, "Redundancy to compute placement for")
	bucketIdealNodesCmd.Flags().String("up-states", string(types.UpStatesUpInit), "Up-state set: u, ui, or uim")
	_ = bucketIdealNodesCmd.MarkFlagRequired("state-file")
	_ = bucketIdealNodesCmd.MarkFlagRequired("distribution-file")
	_ = bucketIdealNodesCmd.MarkFlagRequired("bucket-id")

	bucketCmd.AddCommand(bucketIdealNodesCmd)
}

func runBucketIdealNodes(cmd *cobra.Command, args []string) error {
	stateFile, _ := cmd.Flags().GetString("state-file")
	distFile, _ := cmd.Flags().GetString("distribution-file")
	bucketIDFlag, _ := cmd.Flags().GetString("bucket-id")
	redundancy, _ := cmd.Flags().GetInt("redundancy")
	upStates, _ := cmd.Flags().GetString("up-states")

	cs, err := readClusterState(stateFile)
	if err != nil {
		return err
	}

	distData, err := os.ReadFile(distFile)
	if err != nil {
		return fmt.Errorf("distributord: read %s: %w", distFile, err)
	}
	dist, err := topology.ParseDistribution(string(distData))
	if err != nil {
		return fmt.Errorf("distributord: parse %s: %w", distFile, err)
	}

	id, err := parseBucketIDFlag(bucketIDFlag)
	if err != nil {
		return err
	}

	nodes, err := topology.IdealNodes(dist, cs, id, types.NodeTypeStorage, types.UseCase(upStates), redundancy)
	if err != nil {
		return fmt.Errorf("distributord: compute ideal nodes: %w", err)
	}

	fmt.Printf("ideal nodes for bucket %s: %v\n", id.String(), nodes)
	return nil
}

// parseBucketIDFlag parses "usedBits/rawHex", e.g. "16/0x00ab".
func parseBucketIDFlag(s string) (bucket.ID, error) {
	var usedBitsStr, rawStr string
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			usedBitsStr, rawStr = s[:i], s[i+1:]
			break
		}
	}
	if usedBitsStr == "" || rawStr == "" {
		return bucket.ID{}, fmt.Errorf("distributord: --bucket-id must be usedBits/rawHex, got %q", s)
	}

	usedBits, err := strconv.ParseUint(usedBitsStr, 10, 8)
	if err != nil {
		return bucket.ID{}, fmt.Errorf("distributord: invalid used-bits %q: %w", usedBitsStr, err)
	}
	raw, err := strconv.ParseUint(rawStr, 0, 64)
	if err != nil {
		return bucket.ID{}, fmt.Errorf("distributord: invalid raw id %q: %w", rawStr, err)
	}

	id, err := bucket.New(uint8(usedBits), raw)
	if err != nil {
		return bucket.ID{}, fmt.Errorf("distributord: %w", err)
	}
	return id, nil
}
