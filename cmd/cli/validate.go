package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"miniledger/core"
	"miniledger/internal/nodelog"
	"miniledger/pkg/config"
)

func validateCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "start a validator node: bind, genesis, heartbeat, snapshot adoption, ingress loop",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(configDir)
			if err != nil {
				fail(cmd, err)
				return
			}

			log, err := nodelog.New(cfg.Logging.Level, cfg.Logging.File)
			if err != nil {
				fail(cmd, err)
				return
			}

			nodeCfg := core.NodeConfig{
				RegistryPath:     cfg.Node.RegistryPath,
				HeartbeatPeriod:  time.Duration(cfg.Node.HeartbeatPeriodMS) * time.Millisecond,
				HeartbeatTimeout: time.Duration(cfg.Node.HeartbeatTimeoutMS) * time.Millisecond,
				SnapshotDelay:    time.Duration(cfg.Node.SnapshotDelayMS) * time.Millisecond,
				IntegrationTest:  cfg.Node.IntegrationTest,
				PersistDir:       cfg.Node.PersistDir,
				PersistGzip:      cfg.Node.PersistGzip,
			}

			node, err := core.NewValidatorNode(nodeCfg, log)
			if err != nil {
				fail(cmd, err)
				return
			}
			if err := node.Start(); err != nil {
				fail(cmd, err)
				return
			}

			if cfg.Node.InspectAddr != "" {
				if err := node.StartInspectServer(cfg.Node.InspectAddr); err != nil {
					log.WithError(err).Warn("inspection server failed to start")
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "validator node running at %s\n", node.SelfAddr())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			node.Stop()
		},
	}
	cmd.Flags().StringVar(&configDir, "config", "", "directory searched for node.yaml (accepted_ports.json is read from node.registry_path)")
	return cmd
}
