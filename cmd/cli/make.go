package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"miniledger/core"
)

// accountDetails is what `make` prints (and, in integration-test mode,
// persists) — the keypair a caller needs to sign future Transaction
// requests with this account.
type accountDetails struct {
	PublicKey      string `json:"public_key"`
	PublicKeyHash  string `json:"public_key_hash"`
	PrivateKeyHex  string `json:"private_key"`
}

func makeCmd() *cobra.Command {
	var node, registryPath, integrationFile string

	cmd := &cobra.Command{
		Use:   "make",
		Short: "generate a keypair and submit an AccountCreation request",
		Run: func(cmd *cobra.Command, args []string) {
			kp, err := core.GenerateKeypair()
			if err != nil {
				fail(cmd, err)
				return
			}
			pkHex := core.PublicKeyHex(kp.Public)
			keyHash := core.HashPubKey(kp.Public)
			keyHashHex := hex.EncodeToString(keyHash[:])

			target := node
			if target == "" {
				target, err = firstRegistryAddr(registryPath)
				if err != nil {
					fail(cmd, err)
					return
				}
			}

			msg := core.AccountCreationMsg{
				Action:        core.ActionAccountCreation,
				PublicKey:     pkHex,
				PublicKeyHash: keyHashHex,
			}
			if err := submit(target, msg); err != nil {
				fail(cmd, err)
				return
			}

			details := accountDetails{
				PublicKey:     pkHex,
				PublicKeyHash: keyHashHex,
				PrivateKeyHex: hex.EncodeToString(kp.Private.Serialize()),
			}
			data, _ := json.MarshalIndent(details, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if integrationFile != "" {
				if err := os.WriteFile(integrationFile, data, 0o600); err != nil {
					fail(cmd, err)
				}
			}
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "validator address:port to submit to (default: first registry entry)")
	cmd.Flags().StringVar(&registryPath, "config", "", "accepted_ports.json path")
	cmd.Flags().StringVar(&integrationFile, "out", "", "persist generated account details to this file (integration-test mode)")
	return cmd
}
