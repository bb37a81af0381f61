package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"miniledger/core"
)

// estimateCmd exposes core.EstimateQuorumSuccess as an operator diagnostic:
// "if N peers each have a P% chance of not responding before timeout, how
// often does a consensus round still land on a decisive verdict?" It never
// feeds back into the live protocol.
func estimateCmd() *cobra.Command {
	var totalPeers int
	var dropProb float64
	var rounds int

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Monte Carlo estimate of consensus round decisiveness under peer drops",
		Run: func(cmd *cobra.Command, args []string) {
			result := core.EstimateQuorumSuccess(totalPeers, dropProb, rounds)
			fmt.Fprintf(cmd.OutOrStdout(), "decisive verdict rate: %.4f (peers=%d, drop_prob=%.3f, rounds=%d)\n", result, totalPeers, dropProb, rounds)
		},
	}
	cmd.Flags().IntVar(&totalPeers, "peers", 4, "total registry peers including self")
	cmd.Flags().Float64Var(&dropProb, "drop-prob", 0.01, "probability a peer fails to respond before timeout")
	cmd.Flags().IntVar(&rounds, "rounds", 10000, "number of Monte Carlo trials")
	return cmd
}
