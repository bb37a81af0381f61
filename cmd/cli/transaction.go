package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"

	"miniledger/core"
)

func transactionCmd() *cobra.Command {
	var node, registryPath, skHex, recipientHex, amountStr string
	var nonce uint64

	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "sign and submit a Transaction request",
		Run: func(cmd *cobra.Command, args []string) {
			if skHex == "" || recipientHex == "" || amountStr == "" {
				fail(cmd, fmt.Errorf("--sk, --to, and --amount are required"))
				return
			}

			skRaw, err := hex.DecodeString(skHex)
			if err != nil {
				fail(cmd, fmt.Errorf("decode --sk: %w", err))
				return
			}
			priv := secp256k1.PrivKeyFromBytes(skRaw)
			senderPKHex := core.PublicKeyHex(priv.PubKey())

			amount, err := strconv.ParseUint(amountStr, 10, 64)
			if err != nil {
				fail(cmd, fmt.Errorf("parse --amount: %w", err))
				return
			}

			digest := core.TxMessageDigest(senderPKHex, recipientHex, amount, nonce)
			sigHex, err := core.SignHex(priv, digest)
			if err != nil {
				fail(cmd, err)
				return
			}

			target := node
			if target == "" {
				target, err = firstRegistryAddr(registryPath)
				if err != nil {
					fail(cmd, err)
					return
				}
			}

			msg := core.TransactionMsg{
				Action:             core.ActionTransaction,
				SenderPublicKey:    senderPKHex,
				Signature:          sigHex,
				RecipientPublicKey: recipientHex,
				Amount:             amountStr,
				Nonce:              nonce,
			}
			if err := submit(target, msg); err != nil {
				fail(cmd, err)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted transaction %s -> %s amount %s nonce %d\n", senderPKHex, recipientHex, amountStr, nonce)
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "validator address:port to submit to (default: first registry entry)")
	cmd.Flags().StringVar(&registryPath, "config", "", "accepted_ports.json path")
	cmd.Flags().StringVar(&skHex, "sk", "", "sender private key, hex-encoded")
	cmd.Flags().StringVar(&recipientHex, "to", "", "recipient public key, hex-encoded")
	cmd.Flags().StringVar(&amountStr, "amount", "", "amount to transfer (decimal)")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "sender's current nonce")
	return cmd
}
