// Package cli implements the user-facing entry points: make, transaction,
// faucet, validate, and the estimate diagnostic. Each subcommand is a
// package-scoped *cobra.Command builder wired into the shared root
// (rootCmd.AddCommand(xCmd())), rather than a single monolithic main.
package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"miniledger/core"
	"miniledger/pkg/config"
)

// NewRootCommand builds the "miniledger" root command with all five
// subcommands attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "miniledger",
		Short: "validator node and client CLI for the miniledger P2P ledger",
	}
	root.AddCommand(makeCmd())
	root.AddCommand(transactionCmd())
	root.AddCommand(faucetCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(estimateCmd())
	return root
}

// submit dials addr, writes the JSON-marshaled msg, and closes the
// connection: the wire protocol is one envelope per TCP connection,
// terminated by close. Returns a non-nil error on any marshal/dial/write
// failure so subcommands can set a non-zero exit code.
func submit(addr string, msg interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write to %s: %w", addr, err)
	}
	return nil
}

// firstRegistryAddr loads registryPath and returns its first entry's
// address, used as the default submission target when --node is omitted.
func firstRegistryAddr(registryPath string) (string, error) {
	if registryPath == "" {
		registryPath = config.DefaultRegistryPath
	}
	reg, err := core.LoadPeerRegistry(registryPath, 10*time.Second)
	if err != nil {
		return "", err
	}
	if len(reg.Nodes) == 0 {
		return "", fmt.Errorf("registry %s has no entries", registryPath)
	}
	return reg.Nodes[0].AddrPort(), nil
}

// fail prints err and exits non-zero on parse/IO failure.
func fail(cmd *cobra.Command, err error) {
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	os.Exit(1)
}
