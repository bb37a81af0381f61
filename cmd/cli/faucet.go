package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"miniledger/core"
)

func faucetCmd() *cobra.Command {
	var node, registryPath, pkHex string

	cmd := &cobra.Command{
		Use:   "faucet",
		Short: "submit a Faucet request crediting an existing account",
		Run: func(cmd *cobra.Command, args []string) {
			if pkHex == "" {
				fail(cmd, fmt.Errorf("--pk is required"))
				return
			}
			target := node
			var err error
			if target == "" {
				target, err = firstRegistryAddr(registryPath)
				if err != nil {
					fail(cmd, err)
					return
				}
			}
			msg := core.FaucetMsg{Action: core.ActionFaucet, PublicKey: pkHex}
			if err := submit(target, msg); err != nil {
				fail(cmd, err)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted faucet request for %s\n", pkHex)
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "validator address:port to submit to (default: first registry entry)")
	cmd.Flags().StringVar(&registryPath, "config", "", "accepted_ports.json path")
	cmd.Flags().StringVar(&pkHex, "pk", "", "account public key, hex-encoded")
	return cmd
}
