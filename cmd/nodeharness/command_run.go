package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [-- <extra node args>...]",
		Short: "Start the node, wait for readiness and supervise it until interrupted",
		Long: `Start the node with the standard arguments plus any extra ones, wait for
the --ready pattern to appear in its log, then keep it running until it
exits or the harness receives SIGINT/SIGTERM. The node is always stopped
before the command returns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.orchestrator(cmd)
			if err != nil {
				return err
			}
			if !a.cfg.TUIEnabled {
				printBanner(cmd.OutOrStdout(), a.cfg, orch.Supervisor().Binary())
			}
			return orch.Run(cmd.Context(), a.extraArgs(args))
		},
	}
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [-- <extra node args>...]",
		Short: "Run the node with the live dashboard",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.TUIEnabled = true
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.orchestrator(cmd)
			if err != nil {
				return err
			}
			return orch.Run(cmd.Context(), a.extraArgs(args))
		},
	}
	return cmd
}
